// Package interview runs the oral interview state machine for one session at a time.
package interview

import (
	"fmt"
	"time"

	"github.com/pavelanni/interviewer/internal/model"
)

// Session is the state of one interview. It is owned by the Orchestrator;
// callers only ever see copies returned by Snapshot.
type Session struct {
	ID            string                  `json:"id"`
	Question      model.QuestionRecord    `json:"question"`
	Utterances    []model.Utterance       `json:"utterances"`
	QuestionIndex int                     `json:"question_index"`
	Personality   model.Personality       `json:"personality"`
	Evaluation    *model.ScoredEvaluation `json:"evaluation,omitempty"`
	Phase         model.Phase             `json:"phase"`
	StartedAt     time.Time               `json:"started_at"`

	// pendingAck is set while a candidate turn waits for its acknowledgment.
	pendingAck bool
}

// NewSession creates a session in the welcome phase for rec.
func NewSession(id string, rec model.QuestionRecord, p model.Personality, now time.Time) (*Session, error) {
	if len(rec.Questions) == 0 {
		return nil, ErrEmptyQuestions
	}
	return &Session{
		ID:          id,
		Question:    rec.Clone(),
		Personality: p,
		Phase:       model.PhaseWelcome,
		StartedAt:   now,
	}, nil
}

// CurrentQuestion returns the text of the active question.
func (s *Session) CurrentQuestion() string {
	return s.Question.Questions[s.QuestionIndex]
}

// IsLastQuestion reports whether the active question is the final one.
func (s *Session) IsLastQuestion() bool {
	return s.QuestionIndex == len(s.Question.Questions)-1
}

// AwaitingAck reports whether the last candidate turn has not been acknowledged yet.
func (s *Session) AwaitingAck() bool {
	return s.pendingAck
}

func (s *Session) advance() error {
	if s.IsLastQuestion() {
		return fmt.Errorf("%w: no question after index %d", ErrInvalidTransition, s.QuestionIndex)
	}
	s.QuestionIndex++
	return nil
}

func (s *Session) setEvaluation(ev model.ScoredEvaluation) error {
	if s.Evaluation != nil {
		return fmt.Errorf("%w: session %s already evaluated", ErrInvalidTransition, s.ID)
	}
	s.Evaluation = &ev
	return nil
}

func (s *Session) clone() Session {
	c := *s
	c.Question = s.Question.Clone()
	c.Utterances = append([]model.Utterance(nil), s.Utterances...)
	if s.Evaluation != nil {
		ev := *s.Evaluation
		ev.Scores = append([]model.CriterionScore(nil), s.Evaluation.Scores...)
		c.Evaluation = &ev
	}
	return c
}

func (s *Session) record(finished time.Time) model.InterviewRecord {
	c := s.clone()
	return model.InterviewRecord{
		ID:          c.ID,
		Question:    c.Question,
		Personality: c.Personality,
		Utterances:  c.Utterances,
		Evaluation:  *c.Evaluation,
		StartedAt:   c.StartedAt,
		FinishedAt:  finished,
	}
}
