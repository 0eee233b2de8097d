package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/interviewer/internal/content"
	"github.com/pavelanni/interviewer/internal/model"
)

// Ledger persists imported problems and the hash of every imported file.
type Ledger interface {
	ImportedFileHash(path string) (string, error)
	SetImportedFileHash(path, hash string) error
	ImportProblems(source string, problems []model.Problem) error
	ListProblems() ([]model.Problem, error)
}

var (
	// ErrUnchanged means the file was already imported with the same content.
	ErrUnchanged = errors.New("problems file already imported")
	// ErrChanged means the file was imported before with different content.
	ErrChanged = errors.New("problems file changed since last import")
)

// Import parses data and stores its problems under name. A file seen before is
// skipped; a changed file is re-imported only when replace is set.
func Import(l Ledger, name string, data []byte, c content.Classifier, replace bool) (int, error) {
	hash := sha256sum(data)
	stored, err := l.ImportedFileHash(name)
	if err != nil {
		return 0, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if stored == hash {
		return 0, ErrUnchanged
	}
	if stored != "" && !replace {
		return 0, ErrChanged
	}

	problems, err := Parse(data, c)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := l.ImportProblems(name, problems); err != nil {
		return 0, fmt.Errorf("store problems from %s: %w", name, err)
	}
	if err := l.SetImportedFileHash(name, hash); err != nil {
		return 0, fmt.Errorf("record import for %s: %w", name, err)
	}
	slog.Info("imported problems", "source", name, "count", len(problems))
	return len(problems), nil
}

// Load builds a corpus from everything the ledger holds.
func Load(l Ledger) (*Corpus, error) {
	problems, err := l.ListProblems()
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	return New(problems)
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
