// Package corpus holds the curated interview problems.
package corpus

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/interviewer/internal/content"
	"github.com/pavelanni/interviewer/internal/model"
)

//go:embed problems.yaml
var defaultProblems []byte

// DefaultName identifies the embedded problem set in the import ledger.
const DefaultName = "embedded:problems.yaml"

// ErrEmpty is returned when a corpus has no problems.
var ErrEmpty = errors.New("corpus has no problems")

type file struct {
	Problems []model.Problem `yaml:"problems"`
}

// Default returns the raw embedded problem set.
func Default() []byte {
	return defaultProblems
}

// Parse decodes a YAML problem file and assigns each problem its category.
// A nil classifier uses keyword matching on the title only.
func Parse(data []byte, c content.Classifier) ([]model.Problem, error) {
	if c == nil {
		c = content.NewKeywordClassifier(false)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode problems: %w", err)
	}

	seen := make(map[string]bool, len(f.Problems))
	for i := range f.Problems {
		p := &f.Problems[i]
		p.ID = strings.TrimSpace(p.ID)
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("problem %d: missing id", i+1)
		case seen[p.ID]:
			return nil, fmt.Errorf("problem %s: duplicate id", p.ID)
		case len(p.Questions) == 0:
			return nil, fmt.Errorf("problem %s: no questions", p.ID)
		}
		seen[p.ID] = true
		p.Passage = strings.TrimSpace(p.Passage)
		p.Category = c.Classify(p.Title, p.Passage)
	}
	return f.Problems, nil
}

// Corpus is a read-only mapping from problem id to question record.
type Corpus struct {
	byID map[string]model.QuestionRecord
	ids  []string
}

// New builds a corpus. Later duplicates of an id replace earlier ones.
func New(problems []model.Problem) (*Corpus, error) {
	if len(problems) == 0 {
		return nil, ErrEmpty
	}
	c := &Corpus{byID: make(map[string]model.QuestionRecord, len(problems))}
	for _, p := range problems {
		if _, ok := c.byID[p.ID]; !ok {
			c.ids = append(c.ids, p.ID)
		}
		c.byID[p.ID] = p.QuestionRecord.Clone()
	}
	slices.Sort(c.ids)
	return c, nil
}

// Len returns the number of problems.
func (c *Corpus) Len() int { return len(c.ids) }

// IDs returns the problem identifiers in sorted order.
func (c *Corpus) IDs() []string {
	return slices.Clone(c.ids)
}

// Problems returns every problem in id order.
func (c *Corpus) Problems() []model.Problem {
	out := make([]model.Problem, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, model.Problem{ID: id, QuestionRecord: c.byID[id].Clone()})
	}
	return out
}

// Get returns the record for id.
func (c *Corpus) Get(id string) (model.QuestionRecord, bool) {
	q, ok := c.byID[id]
	if !ok {
		return model.QuestionRecord{}, false
	}
	return q.Clone(), true
}

// Random returns a uniformly chosen problem.
func (c *Corpus) Random() model.Problem {
	id := c.ids[rand.IntN(len(c.ids))]
	return model.Problem{ID: id, QuestionRecord: c.byID[id].Clone()}
}

// StyleExample is the problem shown to the generator as a few-shot example.
func (c *Corpus) StyleExample() model.QuestionRecord {
	return c.byID[c.ids[0]].Clone()
}
