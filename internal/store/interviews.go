package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/interviewer/internal/model"
)

// ArchiveInterview stores a finished interview with its full conversation.
// Archiving the same interview twice is an error.
func (s *Store) ArchiveInterview(rec model.InterviewRecord) error {
	questions, keyPoints, err := encodeLists(rec.Question)
	if err != nil {
		return fmt.Errorf("encode question: %w", err)
	}
	scores, err := json.Marshal(rec.Evaluation.Scores)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ev := rec.Evaluation
	_, err = tx.Exec(
		`INSERT INTO interviews (id, title, passage, questions, key_points, category, personality,
		   rubric, scores, narrative, model_sentence, verdict, verdict_reason, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Question.Title, rec.Question.Passage, questions, keyPoints, rec.Question.Category,
		rec.Personality, ev.Rubric, string(scores), ev.Narrative, ev.ModelSentence, ev.Verdict,
		ev.VerdictReason, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert interview %s: %w", rec.ID, err)
	}

	for _, u := range rec.Utterances {
		_, err := tx.Exec(
			`INSERT INTO utterances (interview_id, role, text, question_index, placeholder, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, u.Role, u.Text, u.QuestionIndex, u.Placeholder, u.At,
		)
		if err != nil {
			return fmt.Errorf("insert utterance: %w", err)
		}
	}
	return tx.Commit()
}

// GetInterview returns one archived interview. Returns nil if not found.
func (s *Store) GetInterview(id string) (*model.InterviewRecord, error) {
	row := s.db.QueryRow(interviewColumns+` WHERE id = ?`, id)
	rec, err := scanInterview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Utterances, err = s.getUtterances(id); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListInterviews returns all archived interviews, newest first.
func (s *Store) ListInterviews() ([]model.InterviewRecord, error) {
	rows, err := s.db.Query(interviewColumns + ` ORDER BY finished_at DESC`)
	if err != nil {
		return nil, err
	}
	var recs []model.InterviewRecord
	for rows.Next() {
		rec, err := scanInterview(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range recs {
		if recs[i].Utterances, err = s.getUtterances(recs[i].ID); err != nil {
			return nil, fmt.Errorf("utterances for %s: %w", recs[i].ID, err)
		}
	}
	return recs, nil
}

const interviewColumns = `SELECT id, title, passage, questions, key_points, category, personality,
	rubric, scores, narrative, model_sentence, verdict, verdict_reason, started_at, finished_at
	FROM interviews`

type scanner interface {
	Scan(dest ...any) error
}

func scanInterview(row scanner) (model.InterviewRecord, error) {
	var rec model.InterviewRecord
	var questions, keyPoints, scores string
	ev := &rec.Evaluation
	err := row.Scan(&rec.ID, &rec.Question.Title, &rec.Question.Passage, &questions, &keyPoints,
		&rec.Question.Category, &rec.Personality, &ev.Rubric, &scores, &ev.Narrative,
		&ev.ModelSentence, &ev.Verdict, &ev.VerdictReason, &rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		return rec, err
	}
	if err := decodeLists(questions, keyPoints, &rec.Question); err != nil {
		return rec, fmt.Errorf("decode interview %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(scores), &ev.Scores); err != nil {
		return rec, fmt.Errorf("decode scores %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (s *Store) getUtterances(interviewID string) ([]model.Utterance, error) {
	rows, err := s.db.Query(
		`SELECT role, text, question_index, placeholder, created_at FROM utterances
		 WHERE interview_id = ? ORDER BY id`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var us []model.Utterance
	for rows.Next() {
		var u model.Utterance
		if err := rows.Scan(&u.Role, &u.Text, &u.QuestionIndex, &u.Placeholder, &u.At); err != nil {
			return nil, err
		}
		us = append(us, u)
	}
	return us, rows.Err()
}
