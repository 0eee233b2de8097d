package model

import (
	"errors"
	"fmt"
	"time"
)

// Category classifies a problem for rubric selection.
type Category string

const (
	// CategoryEthics covers values, ethics and dilemma prompts.
	CategoryEthics Category = "ethics"
	// CategoryScience covers scientific-reasoning prompts.
	CategoryScience Category = "science"
)

// ParseCategory maps a mode name to a Category. Unknown names yield ethics.
func ParseCategory(s string) Category {
	if Category(s) == CategoryScience {
		return CategoryScience
	}
	return CategoryEthics
}

// QuestionRecord is one interview prompt: a passage and its ordered questions.
type QuestionRecord struct {
	Title     string   `json:"title" yaml:"title"`
	Passage   string   `json:"passage" yaml:"passage"`
	Questions []string `json:"questions" yaml:"questions"`
	KeyPoints []string `json:"key_points" yaml:"key_points"`
	Category  Category `json:"category" yaml:"-"`
}

// Clone returns a deep copy so callers never share the question slices.
func (q QuestionRecord) Clone() QuestionRecord {
	c := q
	c.Questions = append([]string(nil), q.Questions...)
	c.KeyPoints = append([]string(nil), q.KeyPoints...)
	return c
}

// Problem is a curated corpus entry addressed by a stable identifier.
type Problem struct {
	ID             string `json:"id" yaml:"id"`
	QuestionRecord `yaml:",inline"`
}

// Role represents the speaker of an utterance.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Utterance is one turn of dialogue.
type Utterance struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
	// QuestionIndex is the question that was active when the turn was recorded.
	QuestionIndex int `json:"question_index"`
	// Placeholder marks a candidate turn substituted for a failed transcription.
	Placeholder bool      `json:"placeholder,omitempty"`
	Audio       []byte    `json:"-"`
	At          time.Time `json:"at"`
}

// Personality is the interviewer's demeanor. Each personality has one voice.
type Personality string

const (
	PersonalityStern       Personality = "stern"
	PersonalityEncouraging Personality = "encouraging"
	PersonalityAnalytical  Personality = "analytical"
)

// Personalities lists every personality in a stable order.
var Personalities = []Personality{PersonalityStern, PersonalityEncouraging, PersonalityAnalytical}

var voices = map[Personality]string{
	PersonalityStern:       "onyx",
	PersonalityEncouraging: "nova",
	PersonalityAnalytical:  "echo",
}

var personalityPrompts = map[Personality]string{
	PersonalityStern:       "cold and pressing; challenges the candidate",
	PersonalityEncouraging: "kind and encouraging",
	PersonalityAnalytical:  "logical and fact-focused",
}

// Voice returns the speech voice bound to the personality.
func (p Personality) Voice() string {
	if v, ok := voices[p]; ok {
		return v
	}
	return voices[PersonalityStern]
}

// Description is the demeanor handed to the interviewer model.
func (p Personality) Description() string {
	return personalityPrompts[p]
}

// Phase is the state of the interview state machine.
type Phase string

const (
	PhaseWelcome     Phase = "welcome"
	PhaseAwaitAnswer Phase = "await_answer"
	PhaseAck         Phase = "ack"
	PhaseAutoAdvance Phase = "auto_advance"
	PhaseEvaluating  Phase = "evaluating"
	PhaseDone        Phase = "done"
)

// Terminal reports whether the phase no longer accepts candidate input.
func (p Phase) Terminal() bool {
	return p == PhaseEvaluating || p == PhaseDone
}

// AckInstruction selects the acknowledgment policy for the interviewer.
type AckInstruction string

const (
	// AckBrief: short acknowledgment only, no follow-up probing, then wait.
	AckBrief AckInstruction = "brief"
	// AckFinal: acknowledge, declare the interview concluded, announce the score.
	AckFinal AckInstruction = "final"
)

// AckRequest is what the interviewer collaborator needs to acknowledge an answer.
type AckRequest struct {
	Personality Personality
	Question    QuestionRecord
	History     []Utterance
	Instruction AckInstruction
}

// Verdict is the final pass/fail decision.
type Verdict string

const (
	VerdictPass       Verdict = "pass"
	VerdictFail       Verdict = "fail"
	VerdictBorderline Verdict = "borderline"
)

// CriterionScore is the score for one rubric criterion.
type CriterionScore struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	MaxScore  int     `json:"max_score"`
}

// ScoredEvaluation is the rubric-based result of one interview.
type ScoredEvaluation struct {
	Rubric        string           `json:"rubric"`
	Scores        []CriterionScore `json:"scores"`
	Narrative     string           `json:"narrative"`
	ModelSentence string           `json:"model_sentence"`
	Verdict       Verdict          `json:"verdict"`
	VerdictReason string           `json:"verdict_reason"`
}

// ScoreFor returns the score recorded for a criterion.
func (e ScoredEvaluation) ScoreFor(criterion string) (CriterionScore, bool) {
	for _, s := range e.Scores {
		if s.Criterion == criterion {
			return s, true
		}
	}
	return CriterionScore{}, false
}

// Total sums the criterion scores and their maximums.
func (e ScoredEvaluation) Total() (score float64, max int) {
	for _, s := range e.Scores {
		score += s.Score
		max += s.MaxScore
	}
	return score, max
}

// ErrUnavailable is returned when a collaborator is not configured.
var ErrUnavailable = errors.New("collaborator not configured")

// CollaboratorError reports a failed call to an external collaborator.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Collaborator names used in CollaboratorError.
const (
	CollabGenerator   = "generator"
	CollabTranscriber = "transcriber"
	CollabSpeaker     = "speaker"
	CollabGrader      = "grader"
	CollabInterviewer = "interviewer"
)

// InterviewRecord is a finished interview as archived after evaluation.
type InterviewRecord struct {
	ID          string           `json:"id"`
	Question    QuestionRecord   `json:"question"`
	Personality Personality      `json:"personality"`
	Utterances  []Utterance      `json:"utterances"`
	Evaluation  ScoredEvaluation `json:"evaluation"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}
