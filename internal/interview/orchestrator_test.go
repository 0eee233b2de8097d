package interview

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/interviewer/internal/model"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []chan time.Time
	waits  []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.timers = append(c.timers, ch)
	c.waits = append(c.waits, d)
	return ch
}

// fire expires every pending timer.
func (c *fakeClock) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.timers {
		ch <- c.now
	}
	c.timers = nil
}

type fakeLLM struct {
	mu              sync.Mutex
	acks            []model.AckRequest
	ackErr          error
	transcript      string
	transcribeErr   error
	transcribeCalls int
	speakErr        error
	voices          []string
	genRaw          string
	genErr          error
}

func (f *fakeLLM) Acknowledge(_ context.Context, req model.AckRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return "", f.ackErr
	}
	f.acks = append(f.acks, req)
	return fmt.Sprintf("ack %d", len(f.acks)), nil
}

func (f *fakeLLM) Transcribe(_ context.Context, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcribeCalls++
	return f.transcript, f.transcribeErr
}

func (f *fakeLLM) Synthesize(_ context.Context, text, voice string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voices = append(f.voices, voice)
	if f.speakErr != nil {
		return nil, f.speakErr
	}
	return []byte("mp3:" + text), nil
}

func (f *fakeLLM) Generate(_ context.Context, _ string, _ model.Category) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.genRaw, f.genErr
}

func (f *fakeLLM) set(fn func(f *fakeLLM)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeEvaluator struct {
	mu    sync.Mutex
	err   error
	calls int
	got   []model.Utterance
}

func (e *fakeEvaluator) Evaluate(_ context.Context, us []model.Utterance, _ model.QuestionRecord) (model.ScoredEvaluation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.got = us
	if e.err != nil {
		return model.ScoredEvaluation{}, e.err
	}
	return model.ScoredEvaluation{
		Rubric:  "ethics",
		Scores:  []model.CriterionScore{{Criterion: "ethical_reasoning", Score: 25, MaxScore: 30}},
		Verdict: model.VerdictPass,
	}, nil
}

type fakeArchive struct {
	mu   sync.Mutex
	recs []model.InterviewRecord
}

func (a *fakeArchive) ArchiveInterview(rec model.InterviewRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

type testPhrases struct{}

func (testPhrases) Welcome(q string) string              { return "welcome: " + q }
func (testPhrases) NextQuestion(q string) string         { return "next: " + q }
func (testPhrases) TranscriptionFailed(err error) string { return "[transcription failed: " + err.Error() + "]" }

type harness struct {
	o    *Orchestrator
	clk  *fakeClock
	llm  *fakeLLM
	eval *fakeEvaluator
	arch *fakeArchive

	mu     sync.Mutex
	seen   []model.Phase
	phases chan model.Phase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clk:    &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		llm:    &fakeLLM{},
		eval:   &fakeEvaluator{},
		arch:   &fakeArchive{},
		phases: make(chan model.Phase, 256),
	}
	ids := 0
	o, err := New(Collaborators{
		Generator:   h.llm,
		Transcriber: h.llm,
		Speaker:     h.llm,
		Interviewer: h.llm,
		Evaluator:   h.eval,
		Archiver:    h.arch,
	}, Config{
		Phrases: testPhrases{},
		Dwell:   2 * time.Second,
		Clock:   h.clk,
		IntN:    func(int) int { return 1 },
		NewID: func() string {
			ids++
			return fmt.Sprintf("session-%d", ids)
		},
		OnPhase: func(_ string, _, to model.Phase) {
			h.mu.Lock()
			h.seen = append(h.seen, to)
			h.mu.Unlock()
			h.phases <- to
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(o.Close)
	h.o = o
	return h
}

// takePhases returns the phases entered since the last call.
func (h *harness) takePhases() []model.Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := h.seen
	h.seen = nil
	return seen
}

func (h *harness) waitPhase(t *testing.T, want model.Phase) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		if s, ok := h.o.Snapshot(); ok && s.Phase == want {
			return
		}
		select {
		case <-h.phases:
		case <-timeout:
			t.Fatalf("timed out waiting for phase %s", want)
		}
	}
}

func (h *harness) snapshot(t *testing.T) Session {
	t.Helper()
	s, ok := h.o.Snapshot()
	if !ok {
		t.Fatal("no active session")
	}
	return s
}

func record(questions ...string) model.QuestionRecord {
	return model.QuestionRecord{
		Title:     "격리와 자유",
		Passage:   "passage",
		Questions: questions,
		Category:  model.CategoryEthics,
	}
}

func TestTwoQuestionInterview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.o.Reset(ctx, record("q1", "q2")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := h.takePhases(); !slices.Equal(got, []model.Phase{model.PhaseWelcome, model.PhaseAwaitAnswer}) {
		t.Errorf("start phases = %v", got)
	}
	s := h.snapshot(t)
	if s.Personality != model.PersonalityEncouraging {
		t.Errorf("personality = %s, want encouraging", s.Personality)
	}
	if len(s.Utterances) != 1 || s.Utterances[0].Text != "welcome: q1" {
		t.Fatalf("utterances = %+v", s.Utterances)
	}

	if err := h.o.Answer(ctx, Input{Text: "공익이 우선입니다"}); err != nil {
		t.Fatalf("Answer q1: %v", err)
	}
	if got := h.takePhases(); !slices.Equal(got, []model.Phase{model.PhaseAck, model.PhaseAutoAdvance}) {
		t.Errorf("q1 phases = %v", got)
	}
	if s := h.snapshot(t); s.QuestionIndex != 0 {
		t.Errorf("index before dwell = %d, want 0", s.QuestionIndex)
	}
	if !slices.Equal(h.clk.waits, []time.Duration{2 * time.Second}) {
		t.Errorf("dwell waits = %v", h.clk.waits)
	}

	h.clk.fire()
	h.waitPhase(t, model.PhaseAwaitAnswer)
	if got := h.takePhases(); !slices.Equal(got, []model.Phase{model.PhaseAwaitAnswer}) {
		t.Errorf("advance phases = %v", got)
	}
	s = h.snapshot(t)
	if s.QuestionIndex != 1 {
		t.Errorf("index after dwell = %d, want 1", s.QuestionIndex)
	}
	if last := s.Utterances[len(s.Utterances)-1]; last.Text != "next: q2" || last.QuestionIndex != 1 {
		t.Errorf("last utterance = %+v", last)
	}

	if err := h.o.Answer(ctx, Input{Text: "개인의 자유도 중요합니다"}); err != nil {
		t.Fatalf("Answer q2: %v", err)
	}
	if got := h.takePhases(); !slices.Equal(got, []model.Phase{model.PhaseAck, model.PhaseEvaluating, model.PhaseDone}) {
		t.Errorf("q2 phases = %v", got)
	}
	s = h.snapshot(t)
	if s.Evaluation == nil || s.Evaluation.Verdict != model.VerdictPass {
		t.Fatalf("evaluation = %+v", s.Evaluation)
	}
	if len(h.llm.acks) != 2 || h.llm.acks[0].Instruction != model.AckBrief || h.llm.acks[1].Instruction != model.AckFinal {
		t.Errorf("ack instructions = %+v", h.llm.acks)
	}
	if len(h.eval.got) != 6 {
		t.Errorf("evaluator saw %d utterances, want 6", len(h.eval.got))
	}
	if len(h.arch.recs) != 1 || h.arch.recs[0].ID != s.ID {
		t.Errorf("archived = %+v", h.arch.recs)
	}
	for _, v := range h.llm.voices {
		if v != "nova" {
			t.Errorf("voice = %s, want nova", v)
		}
	}

	err := h.o.Answer(ctx, Input{Text: "one more thing"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("answer after done: err = %v, want ErrInvalidTransition", err)
	}
	if after := h.snapshot(t); len(after.Utterances) != len(s.Utterances) {
		t.Errorf("utterances changed after done: %d -> %d", len(s.Utterances), len(after.Utterances))
	}
}

func TestAnswerWithoutSession(t *testing.T) {
	h := newHarness(t)
	if err := h.o.Answer(context.Background(), Input{Text: "hi"}); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestAnswerInputResolution(t *testing.T) {
	tests := []struct {
		name            string
		in              Input
		transcript      string
		transcribeErr   error
		wantErr         error
		wantText        string
		wantPlaceholder bool
		wantTranscribe  int
	}{
		{"typed wins", Input{Text: "typed", Audio: []byte("wav")}, "spoken", nil, nil, "typed", false, 0},
		{"audio", Input{Audio: []byte("wav")}, "spoken", nil, nil, "spoken", false, 1},
		{"transcription failure", Input{Audio: []byte("wav")}, "", errors.New("timeout"), nil, "[transcription failed: timeout]", true, 1},
		{"empty transcript", Input{Audio: []byte("wav")}, "  ", nil, ErrEmptyAnswer, "", false, 1},
		{"nothing", Input{Text: "   "}, "", nil, ErrEmptyAnswer, "", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.llm.set(func(f *fakeLLM) {
				f.transcript = tt.transcript
				f.transcribeErr = tt.transcribeErr
			})
			if err := h.o.Reset(context.Background(), record("q1", "q2")); err != nil {
				t.Fatalf("Reset: %v", err)
			}

			err := h.o.Answer(context.Background(), Input{Text: tt.in.Text, Audio: tt.in.Audio})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Answer err = %v, want %v", err, tt.wantErr)
			}
			if h.llm.transcribeCalls != tt.wantTranscribe {
				t.Errorf("transcribe calls = %d, want %d", h.llm.transcribeCalls, tt.wantTranscribe)
			}
			s := h.snapshot(t)
			if tt.wantErr != nil {
				if len(s.Utterances) != 1 || s.Phase != model.PhaseAwaitAnswer {
					t.Errorf("session changed: phase %s, %d utterances", s.Phase, len(s.Utterances))
				}
				return
			}
			cand := s.Utterances[1]
			if cand.Role != model.RoleCandidate || cand.Text != tt.wantText || cand.Placeholder != tt.wantPlaceholder {
				t.Errorf("candidate utterance = %+v", cand)
			}
			if s.Phase != model.PhaseAutoAdvance {
				t.Errorf("phase = %s, want auto_advance", s.Phase)
			}
		})
	}
}

func TestSpeakerFailureKeepsText(t *testing.T) {
	h := newHarness(t)
	h.llm.set(func(f *fakeLLM) { f.speakErr = errors.New("tts down") })

	if err := h.o.Reset(context.Background(), record("q1")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	s := h.snapshot(t)
	if s.Phase != model.PhaseAwaitAnswer || s.Utterances[0].Text != "welcome: q1" {
		t.Errorf("session = %+v", s)
	}
	if _, ok := h.o.Audio(0); ok {
		t.Error("no audio expected after synthesis failure")
	}

	h.llm.set(func(f *fakeLLM) { f.speakErr = nil })
	if err := h.o.Reset(context.Background(), record("q1")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	audio, ok := h.o.Audio(0)
	if !ok || string(audio) != "mp3:welcome: q1" {
		t.Errorf("Audio(0) = %q, %v", audio, ok)
	}
	if _, ok := h.o.Audio(5); ok {
		t.Error("Audio out of range should report false")
	}
}

func TestAcknowledgmentFailureThenRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.o.Reset(ctx, record("q1", "q2")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	h.llm.set(func(f *fakeLLM) { f.ackErr = errors.New("rate limited") })

	err := h.o.Answer(ctx, Input{Text: "answer"})
	var ce *model.CollaboratorError
	if !errors.As(err, &ce) || ce.Collaborator != model.CollabInterviewer {
		t.Fatalf("Answer err = %v, want interviewer CollaboratorError", err)
	}
	s := h.snapshot(t)
	if s.Phase != model.PhaseAwaitAnswer || !s.AwaitingAck() || len(s.Utterances) != 2 {
		t.Errorf("after failure: phase %s, awaiting %v, %d utterances", s.Phase, s.AwaitingAck(), len(s.Utterances))
	}
	if err := h.o.Answer(ctx, Input{Text: "again"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second answer err = %v, want ErrInvalidTransition", err)
	}

	h.llm.set(func(f *fakeLLM) { f.ackErr = nil })
	if err := h.o.Retry(ctx); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	s = h.snapshot(t)
	if s.Phase != model.PhaseAutoAdvance || s.AwaitingAck() || len(s.Utterances) != 3 {
		t.Errorf("after retry: phase %s, awaiting %v, %d utterances", s.Phase, s.AwaitingAck(), len(s.Utterances))
	}
	if err := h.o.Retry(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("retry with nothing pending: err = %v", err)
	}
}

func TestGraderFailureThenRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.o.Reset(ctx, record("only")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	h.eval.err = &model.CollaboratorError{Collaborator: model.CollabGrader, Err: errors.New("503")}

	if err := h.o.Answer(ctx, Input{Text: "answer"}); err == nil {
		t.Fatal("expected evaluation error")
	}
	s := h.snapshot(t)
	if s.Phase != model.PhaseEvaluating || s.Evaluation != nil || len(s.Utterances) != 3 {
		t.Fatalf("after failure: phase %s, evaluation %v, %d utterances", s.Phase, s.Evaluation, len(s.Utterances))
	}
	if err := h.o.Answer(ctx, Input{Text: "late"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("answer while evaluating: err = %v", err)
	}
	if len(h.arch.recs) != 0 {
		t.Error("nothing should be archived before evaluation succeeds")
	}

	h.eval.err = nil
	if err := h.o.Retry(ctx); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	s = h.snapshot(t)
	if s.Phase != model.PhaseDone || s.Evaluation == nil {
		t.Errorf("after retry: phase %s, evaluation %v", s.Phase, s.Evaluation)
	}
	if h.eval.calls != 2 || len(h.eval.got) != 3 {
		t.Errorf("evaluator calls = %d with %d utterances", h.eval.calls, len(h.eval.got))
	}
	if len(h.arch.recs) != 1 {
		t.Errorf("archived %d interviews, want 1", len(h.arch.recs))
	}
}

func TestMissingCollaborators(t *testing.T) {
	o, err := New(Collaborators{}, Config{Phrases: testPhrases{}, Clock: &fakeClock{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer o.Close()
	ctx := context.Background()

	if _, err := o.Generate(ctx, "topic", model.CategoryEthics); !errors.Is(err, model.ErrUnavailable) {
		t.Errorf("Generate err = %v, want ErrUnavailable", err)
	}
	if err := o.Reset(ctx, record("q1")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	s, _ := o.Snapshot()
	if len(s.Utterances) != 1 || s.Utterances[0].Audio != nil {
		t.Errorf("welcome without speaker = %+v", s.Utterances)
	}
	if err := o.Answer(ctx, Input{Text: "answer"}); !errors.Is(err, model.ErrUnavailable) {
		t.Errorf("Answer err = %v, want ErrUnavailable", err)
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		mode      model.Category
		wantTitle string
		wantQs    int
	}{
		{"well formed", "TITLE: 유전자 편집\nCONTEXT:\n본문\nQUESTION_LIST:\n1. 첫째\n2. 둘째\nKEY_POINTS:\n- 요점", model.CategoryEthics, "유전자 편집", 2},
		{"science mode without keywords", "TITLE: 효소의 온도 의존성\nCONTEXT:\n본문\nQUESTION_LIST:\n- 40°C에서 무엇이 달라집니까?", model.CategoryScience, "효소의 온도 의존성", 1},
		{"ethics mode with science title", "TITLE: 과학 연구의 윤리\nQUESTION_LIST:\n- 왜?", model.CategoryEthics, "과학 연구의 윤리", 1},
		{"malformed", "the model rambled", model.CategoryScience, "파싱 에러", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.llm.set(func(f *fakeLLM) { f.genRaw = tt.raw })

			rec, err := h.o.Generate(context.Background(), "유전자", tt.mode)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if rec.Title != tt.wantTitle || len(rec.Questions) != tt.wantQs || rec.Category != tt.mode {
				t.Errorf("record = %+v", rec)
			}
			s := h.snapshot(t)
			if s.Question.Title != tt.wantTitle || s.Phase != model.PhaseAwaitAnswer {
				t.Errorf("session = %s in %s", s.Question.Title, s.Phase)
			}
			if s.Question.Category != tt.mode {
				t.Errorf("session category = %s, want %s", s.Question.Category, tt.mode)
			}
		})
	}
}

func TestGeneratorFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.o.Reset(ctx, record("q1")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	before := h.snapshot(t)
	h.llm.set(func(f *fakeLLM) { f.genErr = errors.New("no key") })

	_, err := h.o.Generate(ctx, "topic", model.CategoryScience)
	var ce *model.CollaboratorError
	if !errors.As(err, &ce) || ce.Collaborator != model.CollabGenerator {
		t.Fatalf("err = %v, want generator CollaboratorError", err)
	}
	if after := h.snapshot(t); after.ID != before.ID || len(after.Utterances) != len(before.Utterances) {
		t.Errorf("session changed after failed generation")
	}
}

func TestResetRejectsEmptyRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.o.Reset(ctx, record("q1")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := h.o.Reset(ctx, record()); !errors.Is(err, ErrEmptyQuestions) {
		t.Errorf("err = %v, want ErrEmptyQuestions", err)
	}
	if s := h.snapshot(t); s.ID != "session-1" {
		t.Errorf("active session = %s, want session-1", s.ID)
	}
}

func TestResetCancelsDwell(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.o.Reset(ctx, record("q1", "q2")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := h.o.Answer(ctx, Input{Text: "answer"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if s := h.snapshot(t); s.Phase != model.PhaseAutoAdvance {
		t.Fatalf("phase = %s, want auto_advance", s.Phase)
	}

	if err := h.o.Reset(ctx, record("new q1", "new q2")); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	h.clk.fire()
	h.o.Close()

	s := h.snapshot(t)
	if s.ID != "session-2" || s.QuestionIndex != 0 || s.Phase != model.PhaseAwaitAnswer || len(s.Utterances) != 1 {
		t.Errorf("new session disturbed by old dwell: %+v", s)
	}
}

func TestQuestionIndexMonotonic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := record("q1", "q2", "q3")
	if err := h.o.Reset(ctx, rec); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	prev := 0
	check := func(step string) {
		t.Helper()
		s := h.snapshot(t)
		if s.QuestionIndex < prev || s.QuestionIndex > prev+1 {
			t.Errorf("%s: index moved %d -> %d", step, prev, s.QuestionIndex)
		}
		if s.QuestionIndex > len(rec.Questions)-1 {
			t.Errorf("%s: index %d out of range", step, s.QuestionIndex)
		}
		prev = s.QuestionIndex
	}

	for i := range 6 {
		_ = h.o.Answer(ctx, Input{})
		check(fmt.Sprintf("empty %d", i))
		_ = h.o.Retry(ctx)
		check(fmt.Sprintf("retry %d", i))
		_ = h.o.Answer(ctx, Input{Text: fmt.Sprintf("answer %d", i)})
		check(fmt.Sprintf("answer %d", i))
		_ = h.o.Answer(ctx, Input{Text: "during dwell"})
		check(fmt.Sprintf("dwell answer %d", i))
		if s := h.snapshot(t); s.Phase == model.PhaseAutoAdvance {
			h.clk.fire()
			h.waitPhase(t, model.PhaseAwaitAnswer)
		}
		check(fmt.Sprintf("advance %d", i))
	}

	s := h.snapshot(t)
	if s.Phase != model.PhaseDone || s.QuestionIndex != 2 {
		t.Errorf("final: phase %s, index %d", s.Phase, s.QuestionIndex)
	}
	if n := len(h.llm.acks); n != 3 {
		t.Errorf("acknowledgments = %d, want 3", n)
	}
}
