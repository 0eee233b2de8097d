package interview

import "errors"

var (
	// ErrInvalidTransition means the event is not accepted in the current
	// phase. The session is left untouched.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrEmptyQuestions means a record without questions cannot start a session.
	ErrEmptyQuestions = errors.New("question record has no questions")
	// ErrNoSession means no session has been started yet.
	ErrNoSession = errors.New("no active session")
	// ErrEmptyAnswer means neither text nor a transcription produced a turn.
	ErrEmptyAnswer = errors.New("no answer in this turn")
)
