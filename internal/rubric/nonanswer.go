package rubric

import (
	"strings"
	"unicode"

	"github.com/pavelanni/interviewer/internal/model"
)

var nonAnswers = map[string]bool{}

func init() {
	for _, p := range []string{
		"모르겠습니다", "모르겠어요", "모르겠다", "잘 모르겠습니다", "잘 모르겠어요",
		"몰라요", "모름", "없습니다", "패스",
		"i don't know", "i dont know", "don't know", "dont know",
		"idk", "no idea", "no answer", "pass", "n/a",
	} {
		nonAnswers[p] = true
	}
}

// IsNonAnswer reports whether text is empty, only punctuation, or an explicit
// "I don't know" style reply.
func IsNonAnswer(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	if strings.IndexFunc(t, func(r rune) bool {
		return !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r)
	}) < 0 {
		return true
	}
	t = strings.ToLower(strings.TrimRightFunc(t, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	}))
	t = strings.ReplaceAll(t, "’", "'")
	return nonAnswers[t]
}

// answeredFraction is the share of questions with at least one substantive
// candidate answer. Placeholder utterances never count.
func answeredFraction(utterances []model.Utterance, numQuestions int) float64 {
	if numQuestions <= 0 {
		return 0
	}
	answered := make(map[int]bool)
	for _, u := range utterances {
		if u.Role != model.RoleCandidate || u.Placeholder || IsNonAnswer(u.Text) {
			continue
		}
		if u.QuestionIndex >= 0 && u.QuestionIndex < numQuestions {
			answered[u.QuestionIndex] = true
		}
	}
	return float64(len(answered)) / float64(numQuestions)
}
