package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/interviewer/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS problems (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		passage TEXT NOT NULL DEFAULT '',
		questions TEXT NOT NULL,
		key_points TEXT NOT NULL DEFAULT '[]',
		category TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		imported_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interviews (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		passage TEXT NOT NULL DEFAULT '',
		questions TEXT NOT NULL,
		key_points TEXT NOT NULL DEFAULT '[]',
		category TEXT NOT NULL,
		personality TEXT NOT NULL,
		rubric TEXT NOT NULL,
		scores TEXT NOT NULL,
		narrative TEXT NOT NULL DEFAULT '',
		model_sentence TEXT NOT NULL DEFAULT '',
		verdict TEXT NOT NULL,
		verdict_reason TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS utterances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		interview_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		question_index INTEGER NOT NULL,
		placeholder INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (interview_id) REFERENCES interviews(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ImportProblems upserts corpus problems, tagging them with their source file.
func (s *Store) ImportProblems(source string, problems []model.Problem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, p := range problems {
		questions, keyPoints, err := encodeLists(p.QuestionRecord)
		if err != nil {
			return fmt.Errorf("encode problem %s: %w", p.ID, err)
		}
		_, err = tx.Exec(
			`INSERT INTO problems (id, title, passage, questions, key_points, category, source, imported_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET title = excluded.title, passage = excluded.passage,
			   questions = excluded.questions, key_points = excluded.key_points,
			   category = excluded.category, source = excluded.source, imported_at = excluded.imported_at`,
			p.ID, p.Title, p.Passage, questions, keyPoints, p.Category, source, now,
		)
		if err != nil {
			return fmt.Errorf("insert problem %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// ListProblems returns all imported problems ordered by id.
func (s *Store) ListProblems() ([]model.Problem, error) {
	rows, err := s.db.Query(`SELECT id, title, passage, questions, key_points, category FROM problems ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var problems []model.Problem
	for rows.Next() {
		var p model.Problem
		var questions, keyPoints string
		if err := rows.Scan(&p.ID, &p.Title, &p.Passage, &questions, &keyPoints, &p.Category); err != nil {
			return nil, err
		}
		if err := decodeLists(questions, keyPoints, &p.QuestionRecord); err != nil {
			return nil, fmt.Errorf("decode problem %s: %w", p.ID, err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

// ProblemCount returns the number of problems in the database.
func (s *Store) ProblemCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM problems`).Scan(&count)
	return count, err
}

func encodeLists(q model.QuestionRecord) (questions, keyPoints string, err error) {
	qb, err := json.Marshal(nonNil(q.Questions))
	if err != nil {
		return "", "", err
	}
	kb, err := json.Marshal(nonNil(q.KeyPoints))
	if err != nil {
		return "", "", err
	}
	return string(qb), string(kb), nil
}

func decodeLists(questions, keyPoints string, q *model.QuestionRecord) error {
	if err := json.Unmarshal([]byte(questions), &q.Questions); err != nil {
		return err
	}
	return json.Unmarshal([]byte(keyPoints), &q.KeyPoints)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
