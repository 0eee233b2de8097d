package interview

import "strings"

// Transcription is the outcome of the speech-to-text step for one turn.
type Transcription struct {
	Text      string
	Attempted bool
	Err       error
}

// Turn is the single logical candidate utterance chosen for a turn.
type Turn struct {
	Text        string
	Placeholder bool
}

// Arbiter merges typed and spoken input into one turn. Typed text always wins.
type Arbiter struct {
	placeholder func(error) string
}

// NewArbiter returns an arbiter that records placeholder(err) when
// transcription fails.
func NewArbiter(placeholder func(error) string) *Arbiter {
	return &Arbiter{placeholder: placeholder}
}

// Resolve picks the utterance for this turn. ok is false when no turn is produced.
func (a *Arbiter) Resolve(typed string, t Transcription) (turn Turn, ok bool) {
	if strings.TrimSpace(typed) != "" {
		return Turn{Text: typed}, true
	}
	if !t.Attempted {
		return Turn{}, false
	}
	if t.Err != nil {
		return Turn{Text: a.placeholder(t.Err), Placeholder: true}, true
	}
	if strings.TrimSpace(t.Text) == "" {
		return Turn{}, false
	}
	return Turn{Text: t.Text}, true
}
