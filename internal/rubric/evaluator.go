package rubric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/model"
)

// ErrMalformedEvaluation means the grader's reply could not be validated.
var ErrMalformedEvaluation = errors.New("malformed evaluation")

// Grader scores a fully assembled grading prompt.
type Grader interface {
	Score(ctx context.Context, prompt string) (string, error)
}

// Evaluator grades a finished interview against the rubric of its category.
type Evaluator struct {
	grader   Grader
	language string
}

// NewEvaluator creates an evaluator. A nil grader makes every call fail
// with model.ErrUnavailable.
func NewEvaluator(g Grader, language string) *Evaluator {
	if language == "" {
		language = "Korean"
	}
	return &Evaluator{grader: g, language: language}
}

type gradeResponse struct {
	Scores           map[string]float64 `json:"scores"`
	QuestionAnalysis []string           `json:"question_analysis"`
	Strengths        string             `json:"strengths"`
	Weaknesses       string             `json:"weaknesses"`
	ModelSentence    string             `json:"model_sentence"`
	Verdict          string             `json:"verdict"`
	VerdictReason    string             `json:"verdict_reason"`
}

// Evaluate builds the grading prompt, calls the grader and validates the reply.
// It never returns a partially filled evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, utterances []model.Utterance, q model.QuestionRecord) (model.ScoredEvaluation, error) {
	r := Select(q.Category)

	prompt, err := e.buildPrompt(r, utterances, q)
	if err != nil {
		return model.ScoredEvaluation{}, fmt.Errorf("build grading prompt: %w", err)
	}

	if e.grader == nil {
		return model.ScoredEvaluation{}, &model.CollaboratorError{Collaborator: model.CollabGrader, Err: model.ErrUnavailable}
	}
	raw, err := e.grader.Score(ctx, prompt)
	if err != nil {
		return model.ScoredEvaluation{}, &model.CollaboratorError{Collaborator: model.CollabGrader, Err: err}
	}
	slog.Debug("grader response", "raw", raw)

	ev, err := parseEvaluation(raw, r)
	if err != nil {
		return model.ScoredEvaluation{}, err
	}
	applyParticipationCap(&ev, answeredFraction(utterances, len(q.Questions)))
	return ev, nil
}

func (e *Evaluator) buildPrompt(r Rubric, utterances []model.Utterance, q model.QuestionRecord) (string, error) {
	criteria := make([]prompts.Criterion, len(r.Criteria))
	for i, c := range r.Criteria {
		criteria[i] = prompts.Criterion{Key: c.Key, Name: c.Name, Description: c.Description, Max: c.Max}
	}
	return prompts.BuildGradePrompt(prompts.GradeData{
		Title:            q.Title,
		Passage:          q.Passage,
		Questions:        q.Questions,
		KeyPoints:        q.KeyPoints,
		Conversation:     prompts.Transcript(utterances),
		RubricName:       r.Name,
		RubricIntro:      r.Intro,
		Criteria:         criteria,
		OpposingCriteria: opposing(r.Category).Names(),
		Science:          r.Category == model.CategoryScience,
		Language:         e.language,
	})
}

func parseEvaluation(raw string, r Rubric) (model.ScoredEvaluation, error) {
	var resp gradeResponse
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &resp); err != nil {
		return model.ScoredEvaluation{}, fmt.Errorf("%w: %v", ErrMalformedEvaluation, err)
	}

	ev := model.ScoredEvaluation{
		Rubric:        r.Name,
		ModelSentence: strings.TrimSpace(resp.ModelSentence),
		VerdictReason: strings.TrimSpace(resp.VerdictReason),
	}
	for _, c := range r.Criteria {
		score, ok := resp.Scores[c.Key]
		if !ok {
			return model.ScoredEvaluation{}, fmt.Errorf("%w: missing score for %s", ErrMalformedEvaluation, c.Key)
		}
		if score < 0 || score > float64(c.Max) {
			slog.Warn("grader score out of range, clamping", "criterion", c.Key, "score", score, "max", c.Max)
			score = math.Max(0, math.Min(score, float64(c.Max)))
		}
		ev.Scores = append(ev.Scores, model.CriterionScore{Criterion: c.Key, Score: score, MaxScore: c.Max})
	}

	switch strings.ToLower(strings.TrimSpace(resp.Verdict)) {
	case "pass":
		ev.Verdict = model.VerdictPass
	case "fail":
		ev.Verdict = model.VerdictFail
	case "borderline":
		ev.Verdict = model.VerdictBorderline
	default:
		return model.ScoredEvaluation{}, fmt.Errorf("%w: unknown verdict %q", ErrMalformedEvaluation, resp.Verdict)
	}

	ev.Narrative = narrative(resp)
	return ev, nil
}

// applyParticipationCap limits each criterion to the share of questions that
// received a substantive answer. No substantive answer means zero and fail.
func applyParticipationCap(ev *model.ScoredEvaluation, fraction float64) {
	for i := range ev.Scores {
		limit := float64(ev.Scores[i].MaxScore) * fraction
		if ev.Scores[i].Score > limit {
			ev.Scores[i].Score = limit
		}
	}
	if fraction == 0 {
		ev.Verdict = model.VerdictFail
		ev.VerdictReason = "No substantive answer was given."
	}
}

func narrative(resp gradeResponse) string {
	var sb strings.Builder
	sb.WriteString("## Analysis by question\n")
	for i, a := range resp.QuestionAnalysis {
		fmt.Fprintf(&sb, "- Question %d: %s\n", i+1, strings.TrimSpace(a))
	}
	if resp.Strengths != "" || resp.Weaknesses != "" {
		sb.WriteString("\n## Overall\n")
		if resp.Strengths != "" {
			sb.WriteString("- Strengths: " + strings.TrimSpace(resp.Strengths) + "\n")
		}
		if resp.Weaknesses != "" {
			sb.WriteString("- Weaknesses: " + strings.TrimSpace(resp.Weaknesses) + "\n")
		}
	}
	if resp.ModelSentence != "" {
		sb.WriteString("\n## Model sentence\n> " + strings.TrimSpace(resp.ModelSentence) + "\n")
	}
	return strings.TrimSpace(sb.String())
}

// cleanJSON removes markdown code fences around a JSON reply.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
