package store

import (
	"fmt"

	"github.com/pavelanni/interviewer/internal/model"
)

// ExportInterviews builds export-ready results from all archived interviews.
func (s *Store) ExportInterviews() ([]model.InterviewResult, error) {
	recs, err := s.ListInterviews()
	if err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}

	results := make([]model.InterviewResult, 0, len(recs))
	for _, rec := range recs {
		var conv []model.ConversationMsg
		for _, u := range rec.Utterances {
			conv = append(conv, model.ConversationMsg{
				Role:     string(u.Role),
				Content:  u.Text,
				Question: u.QuestionIndex + 1,
				At:       u.At,
			})
		}

		total, outOf := rec.Evaluation.Total()
		results = append(results, model.InterviewResult{
			ID:           rec.ID,
			Title:        rec.Question.Title,
			Category:     rec.Question.Category,
			Personality:  rec.Personality,
			StartedAt:    rec.StartedAt,
			FinishedAt:   rec.FinishedAt,
			Questions:    rec.Question.Questions,
			Conversation: conv,
			Scores:       rec.Evaluation.Scores,
			TotalScore:   total,
			MaxScore:     outOf,
			Verdict:      rec.Evaluation.Verdict,
			Narrative:    rec.Evaluation.Narrative,
		})
	}
	return results, nil
}
