package content

import (
	"regexp"
	"strings"

	"github.com/pavelanni/interviewer/internal/model"
)

// Classifier infers a problem's category from its text.
type Classifier interface {
	Classify(title, passage string) model.Category
}

// DefaultScienceKeywords signal a scientific-reasoning prompt. ASCII keywords
// match whole words only; Korean keywords match anywhere.
var DefaultScienceKeywords = []string{
	"Part 2", "과학",
	"science", "scientific", "biology", "chemistry", "physics",
}

// KeywordClassifier matches a fixed keyword list against the title, and
// optionally the passage. No match means ethics.
type KeywordClassifier struct {
	checkPassage bool
	words        *regexp.Regexp
	stems        []string
}

// NewKeywordClassifier returns a classifier using DefaultScienceKeywords.
func NewKeywordClassifier(checkPassage bool) *KeywordClassifier {
	return NewKeywordClassifierWith(DefaultScienceKeywords, checkPassage)
}

// NewKeywordClassifierWith returns a classifier for the given keywords.
func NewKeywordClassifierWith(keywords []string, checkPassage bool) *KeywordClassifier {
	k := &KeywordClassifier{checkPassage: checkPassage}
	var words []string
	for _, kw := range keywords {
		if isASCII(kw) {
			words = append(words, regexp.QuoteMeta(kw))
		} else {
			k.stems = append(k.stems, strings.ToLower(kw))
		}
	}
	if len(words) > 0 {
		k.words = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	return k
}

// Classify implements Classifier.
func (k *KeywordClassifier) Classify(title, passage string) model.Category {
	if k.matches(title) {
		return model.CategoryScience
	}
	if k.checkPassage && k.matches(passage) {
		return model.CategoryScience
	}
	return model.CategoryEthics
}

func (k *KeywordClassifier) matches(s string) bool {
	if k.words != nil && k.words.MatchString(s) {
		return true
	}
	lower := strings.ToLower(s)
	for _, stem := range k.stems {
		if strings.Contains(lower, stem) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
