package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/interviewer/internal/content"
	"github.com/pavelanni/interviewer/internal/model"
)

// DefaultDwell is the pause between an acknowledgment and the next question.
const DefaultDwell = 3 * time.Second

// Generator produces raw problem text in the marker format.
type Generator interface {
	Generate(ctx context.Context, topic string, mode model.Category) (string, error)
}

// Transcriber converts candidate audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Speaker renders interviewer text as audio.
type Speaker interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Interviewer writes the acknowledgment of a candidate answer.
type Interviewer interface {
	Acknowledge(ctx context.Context, req model.AckRequest) (string, error)
}

// Evaluator grades a finished interview.
type Evaluator interface {
	Evaluate(ctx context.Context, utterances []model.Utterance, q model.QuestionRecord) (model.ScoredEvaluation, error)
}

// Archiver stores finished interviews.
type Archiver interface {
	ArchiveInterview(rec model.InterviewRecord) error
}

// Phrases renders the fixed interviewer lines.
type Phrases interface {
	Welcome(question string) string
	NextQuestion(question string) string
	TranscriptionFailed(err error) string
}

// Collaborators are the external capabilities used by the orchestrator.
// Any of them may be nil; calls to a missing one fail with model.ErrUnavailable.
type Collaborators struct {
	Generator   Generator
	Transcriber Transcriber
	Speaker     Speaker
	Interviewer Interviewer
	Evaluator   Evaluator
	Archiver    Archiver
}

// Config tunes the orchestrator. Phrases is required.
type Config struct {
	Phrases Phrases
	Parser  *content.Parser
	Dwell   time.Duration
	Clock   Clock
	// IntN picks a personality index. Defaults to math/rand/v2.
	IntN func(n int) int
	// NewID creates session IDs. Defaults to random UUIDs.
	NewID func() string
	// OnPhase is called on every phase change with the orchestrator locked.
	OnPhase func(sessionID string, from, to model.Phase)
}

// Input is one candidate turn as received from the client.
type Input struct {
	Text  string
	Audio []byte
}

// Orchestrator owns the active session and applies events to it one at a time.
type Orchestrator struct {
	collab  Collaborators
	phrases Phrases
	parser  *content.Parser
	arbiter *Arbiter
	dwell   time.Duration
	clock   Clock
	intn    func(int) int
	newID   func() string
	onPhase func(string, model.Phase, model.Phase)

	mu        sync.Mutex
	session   *Session
	cancel    chan struct{}
	wg        sync.WaitGroup
	published atomic.Pointer[Session]
}

// New creates an orchestrator with no active session.
func New(collab Collaborators, cfg Config) (*Orchestrator, error) {
	if cfg.Phrases == nil {
		return nil, errors.New("interview: phrases are required")
	}
	o := &Orchestrator{
		collab:  collab,
		phrases: cfg.Phrases,
		parser:  cfg.Parser,
		arbiter: NewArbiter(cfg.Phrases.TranscriptionFailed),
		dwell:   cfg.Dwell,
		clock:   cfg.Clock,
		intn:    cfg.IntN,
		newID:   cfg.NewID,
		onPhase: cfg.OnPhase,
	}
	if o.parser == nil {
		o.parser = content.NewParser(nil)
	}
	if o.dwell <= 0 {
		o.dwell = DefaultDwell
	}
	if o.clock == nil {
		o.clock = realClock{}
	}
	if o.intn == nil {
		o.intn = rand.IntN
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o, nil
}

// Snapshot returns a copy of the active session.
func (o *Orchestrator) Snapshot() (Session, bool) {
	s := o.published.Load()
	if s == nil {
		return Session{}, false
	}
	return *s, true
}

// Audio returns the synthesized audio of the i-th utterance, if any.
func (o *Orchestrator) Audio(i int) ([]byte, bool) {
	s := o.published.Load()
	if s == nil || i < 0 || i >= len(s.Utterances) || len(s.Utterances[i].Audio) == 0 {
		return nil, false
	}
	return s.Utterances[i].Audio, true
}

// Reset discards the active session and starts a new one on rec. A record
// without questions is rejected and the active session is kept.
func (o *Orchestrator) Reset(ctx context.Context, rec model.QuestionRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	p := model.Personalities[o.intn(len(model.Personalities))]
	s, err := NewSession(o.newID(), rec, p, o.clock.Now())
	if err != nil {
		return err
	}

	o.stopDwell()
	o.cancel = make(chan struct{})
	o.session = s
	o.publish(s)
	slog.Info("interview started", "session", s.ID, "title", s.Question.Title,
		"category", s.Question.Category, "personality", s.Personality, "questions", len(s.Question.Questions))
	o.notify(s, "", model.PhaseWelcome)

	o.say(ctx, s, o.phrases.Welcome(s.CurrentQuestion()))
	o.setPhase(s, model.PhaseAwaitAnswer)
	return nil
}

// Generate asks the generator for a new problem on topic and starts a session
// on it. On failure the active session is left untouched.
func (o *Orchestrator) Generate(ctx context.Context, topic string, mode model.Category) (model.QuestionRecord, error) {
	if o.collab.Generator == nil {
		return model.QuestionRecord{}, &model.CollaboratorError{Collaborator: model.CollabGenerator, Err: model.ErrUnavailable}
	}
	raw, err := o.collab.Generator.Generate(ctx, topic, mode)
	if err != nil {
		return model.QuestionRecord{}, &model.CollaboratorError{Collaborator: model.CollabGenerator, Err: err}
	}
	rec, perr := o.parser.ParseStrict(raw)
	if perr != nil {
		slog.Warn("generated problem is malformed, using sentinel", "topic", topic, "error", perr)
		rec = o.parser.Parse(raw)
	}
	// The requested mode decides the rubric, not keywords in the generated text.
	rec.Category = mode
	if err := o.Reset(ctx, rec); err != nil {
		return model.QuestionRecord{}, err
	}
	return rec, nil
}

// Answer applies one candidate turn. Typed text wins over audio; audio is
// transcribed only when no text was typed.
func (o *Orchestrator) Answer(ctx context.Context, in Input) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.session
	if s == nil {
		return ErrNoSession
	}
	if s.Phase != model.PhaseAwaitAnswer || s.pendingAck {
		slog.Info("answer ignored", "session", s.ID, "phase", s.Phase, "pending_ack", s.pendingAck)
		return fmt.Errorf("%w: answer while %s", ErrInvalidTransition, s.Phase)
	}

	var tr Transcription
	if strings.TrimSpace(in.Text) == "" && len(in.Audio) > 0 {
		tr = o.transcribe(ctx, in.Audio)
	}
	turn, ok := o.arbiter.Resolve(in.Text, tr)
	if !ok {
		return ErrEmptyAnswer
	}

	s.Utterances = append(s.Utterances, model.Utterance{
		Role:          model.RoleCandidate,
		Text:          turn.Text,
		QuestionIndex: s.QuestionIndex,
		Placeholder:   turn.Placeholder,
		At:            o.clock.Now(),
	})
	s.pendingAck = true
	o.publish(s)

	return o.acknowledge(ctx, s)
}

// Retry re-runs the step that failed last: a pending acknowledgment or the
// evaluation of a session stuck in the evaluating phase.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.session
	if s == nil {
		return ErrNoSession
	}
	switch {
	case s.pendingAck:
		return o.acknowledge(ctx, s)
	case s.Phase == model.PhaseEvaluating && s.Evaluation == nil:
		return o.evaluate(ctx, s)
	}
	return fmt.Errorf("%w: nothing to retry while %s", ErrInvalidTransition, s.Phase)
}

// Close stops a pending auto-advance and waits for it to exit.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.stopDwell()
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) transcribe(ctx context.Context, audio []byte) Transcription {
	if o.collab.Transcriber == nil {
		return Transcription{Attempted: true, Err: model.ErrUnavailable}
	}
	text, err := o.collab.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		slog.Warn("transcription failed", "error", err)
		return Transcription{Attempted: true, Err: err}
	}
	return Transcription{Attempted: true, Text: text}
}

func (o *Orchestrator) acknowledge(ctx context.Context, s *Session) error {
	if o.collab.Interviewer == nil {
		return &model.CollaboratorError{Collaborator: model.CollabInterviewer, Err: model.ErrUnavailable}
	}
	instruction := model.AckBrief
	if s.IsLastQuestion() {
		instruction = model.AckFinal
	}
	text, err := o.collab.Interviewer.Acknowledge(ctx, model.AckRequest{
		Personality: s.Personality,
		Question:    s.Question.Clone(),
		History:     append([]model.Utterance(nil), s.Utterances...),
		Instruction: instruction,
	})
	if err != nil {
		slog.Error("acknowledgment failed", "session", s.ID, "error", err)
		return &model.CollaboratorError{Collaborator: model.CollabInterviewer, Err: err}
	}

	s.pendingAck = false
	o.say(ctx, s, text)
	o.setPhase(s, model.PhaseAck)

	if s.IsLastQuestion() {
		o.setPhase(s, model.PhaseEvaluating)
		return o.evaluate(ctx, s)
	}
	o.setPhase(s, model.PhaseAutoAdvance)
	o.scheduleAdvance(s)
	return nil
}

func (o *Orchestrator) scheduleAdvance(s *Session) {
	id := s.ID
	cancel := o.cancel
	timer := o.clock.After(o.dwell)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		select {
		case <-cancel:
			return
		case <-timer:
		}

		o.mu.Lock()
		defer o.mu.Unlock()
		cur := o.session
		if cur == nil || cur.ID != id || cur.Phase != model.PhaseAutoAdvance {
			return
		}
		if err := cur.advance(); err != nil {
			slog.Error("auto-advance rejected", "session", id, "error", err)
			return
		}
		o.say(context.Background(), cur, o.phrases.NextQuestion(cur.CurrentQuestion()))
		o.setPhase(cur, model.PhaseAwaitAnswer)
	}()
}

func (o *Orchestrator) evaluate(ctx context.Context, s *Session) error {
	if o.collab.Evaluator == nil {
		return &model.CollaboratorError{Collaborator: model.CollabGrader, Err: model.ErrUnavailable}
	}
	ev, err := o.collab.Evaluator.Evaluate(ctx, append([]model.Utterance(nil), s.Utterances...), s.Question.Clone())
	if err != nil {
		slog.Error("evaluation failed", "session", s.ID, "error", err)
		return err
	}
	if err := s.setEvaluation(ev); err != nil {
		return err
	}
	score, outOf := ev.Total()
	slog.Info("interview evaluated", "session", s.ID, "rubric", ev.Rubric, "score", score, "max", outOf, "verdict", ev.Verdict)
	o.setPhase(s, model.PhaseDone)

	if o.collab.Archiver != nil {
		if err := o.collab.Archiver.ArchiveInterview(s.record(o.clock.Now())); err != nil {
			slog.Warn("archive interview", "session", s.ID, "error", err)
		}
	}
	return nil
}

// say appends an interviewer utterance. Speech failures only drop the audio.
func (o *Orchestrator) say(ctx context.Context, s *Session, text string) {
	u := model.Utterance{
		Role:          model.RoleInterviewer,
		Text:          text,
		QuestionIndex: s.QuestionIndex,
		At:            o.clock.Now(),
	}
	if o.collab.Speaker != nil {
		audio, err := o.collab.Speaker.Synthesize(ctx, text, s.Personality.Voice())
		if err != nil {
			slog.Warn("speech synthesis failed, delivering text only", "session", s.ID, "error", err)
		} else {
			u.Audio = audio
		}
	}
	s.Utterances = append(s.Utterances, u)
	o.publish(s)
}

func (o *Orchestrator) setPhase(s *Session, to model.Phase) {
	from := s.Phase
	s.Phase = to
	o.publish(s)
	slog.Debug("phase change", "session", s.ID, "from", from, "to", to)
	o.notify(s, from, to)
}

func (o *Orchestrator) notify(s *Session, from, to model.Phase) {
	if o.onPhase != nil {
		o.onPhase(s.ID, from, to)
	}
}

func (o *Orchestrator) publish(s *Session) {
	c := s.clone()
	o.published.Store(&c)
}

func (o *Orchestrator) stopDwell() {
	if o.cancel != nil {
		close(o.cancel)
		o.cancel = nil
	}
}

