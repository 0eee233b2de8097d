// Package content converts generated free text into question records and back.
package content

import (
	"errors"
	"regexp"
	"strings"

	"github.com/pavelanni/interviewer/internal/model"
)

// Section markers of the generated text format.
const (
	MarkerTitle     = "TITLE:"
	MarkerPassage   = "CONTEXT:"
	MarkerQuestions = "QUESTION_LIST:"
	MarkerKeyPoints = "KEY_POINTS:"
)

// Sentinel values used when content cannot be parsed.
const (
	DefaultTitle     = "AI 생성 문제"
	ParseErrorTitle  = "파싱 에러"
	FallbackQuestion = "질문 생성 중 오류가 발생했습니다."
)

// ErrMalformedContent means the text had no usable structure.
var ErrMalformedContent = errors.New("malformed content")

type section int

// enumerator matches a leading bullet and/or list number such as "- ", "1. "
// or "2) ". A number followed directly by text ("40°C") is kept.
var enumerator = regexp.MustCompile(`^(?:[-*•]+\s*)?(?:\d+[.)](?:\s+|$))?`)

const (
	sectionNone section = iota
	sectionPassage
	sectionQuestions
	sectionKeyPoints
)

// Aliases accepted alongside the canonical markers.
var markerAliases = []struct {
	prefix  string
	section section
	title   bool
}{
	{MarkerTitle, sectionNone, true},
	{MarkerPassage, sectionPassage, false},
	{"PASSAGE:", sectionPassage, false},
	{MarkerQuestions, sectionQuestions, false},
	{"QUESTIONS:", sectionQuestions, false},
	{"QUESTION:", sectionQuestions, false},
	{MarkerKeyPoints, sectionKeyPoints, false},
}

// Parser turns raw generated text into a QuestionRecord.
type Parser struct {
	classifier Classifier
}

// NewParser returns a parser using c for category inference.
// A nil classifier falls back to the title-only keyword classifier.
func NewParser(c Classifier) *Parser {
	if c == nil {
		c = NewKeywordClassifier(false)
	}
	return &Parser{classifier: c}
}

var defaultParser = NewParser(nil)

// Parse converts raw text with the default parser. It never fails.
func Parse(raw string) model.QuestionRecord {
	return defaultParser.Parse(raw)
}

// ParseStrict converts raw text with the default parser and reports malformed input.
func ParseStrict(raw string) (model.QuestionRecord, error) {
	return defaultParser.ParseStrict(raw)
}

// Parse converts raw text. Malformed input yields the parse-error sentinel
// record carrying the raw text as its passage.
func (p *Parser) Parse(raw string) model.QuestionRecord {
	rec, err := p.ParseStrict(raw)
	if err != nil {
		return Sentinel(raw)
	}
	return rec
}

// Sentinel is the record returned for unparseable input.
func Sentinel(raw string) model.QuestionRecord {
	return model.QuestionRecord{
		Title:     ParseErrorTitle,
		Passage:   raw,
		Questions: []string{FallbackQuestion},
		KeyPoints: []string{},
		Category:  model.CategoryEthics,
	}
}

// ParseStrict converts raw text and returns ErrMalformedContent when no marker
// is present or no question could be read.
func (p *Parser) ParseStrict(raw string) (model.QuestionRecord, error) {
	rec := model.QuestionRecord{
		Questions: []string{},
		KeyPoints: []string{},
	}
	var (
		passage  strings.Builder
		current  = sectionNone
		markers  int
		hasTitle bool
	)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if sec, rest, isTitle, ok := matchMarker(line); ok {
			markers++
			switch {
			case isTitle:
				rec.Title = rest
				hasTitle = true
				current = sectionNone
			case sec == sectionPassage:
				if rest != "" {
					passage.WriteString(rest)
				}
				current = sec
			default:
				current = sec
			}
			continue
		}

		switch current {
		case sectionPassage:
			passage.WriteString("\n" + line)
		case sectionQuestions:
			q := strings.TrimSpace(enumerator.ReplaceAllString(line, ""))
			if q != "" {
				rec.Questions = append(rec.Questions, q)
			}
		case sectionKeyPoints:
			kp := strings.TrimSpace(strings.TrimPrefix(line, "-"))
			if kp != "" {
				rec.KeyPoints = append(rec.KeyPoints, kp)
			}
		}
	}

	if markers == 0 || len(rec.Questions) == 0 {
		return model.QuestionRecord{}, ErrMalformedContent
	}
	if !hasTitle || rec.Title == "" {
		rec.Title = DefaultTitle
	}
	rec.Passage = strings.TrimSpace(passage.String())
	rec.Category = p.classifier.Classify(rec.Title, rec.Passage)
	return rec, nil
}

// matchMarker recognizes a section marker, tolerating markdown decoration
// such as "**TITLE:**" or "## CONTEXT:".
func matchMarker(line string) (sec section, rest string, title bool, ok bool) {
	bare := strings.TrimLeft(line, "#* ")
	for _, m := range markerAliases {
		if !strings.HasPrefix(bare, m.prefix) {
			continue
		}
		rest = strings.TrimPrefix(bare, m.prefix)
		rest = strings.TrimSpace(strings.TrimLeft(rest, "*"))
		return m.section, rest, m.title, true
	}
	return sectionNone, "", false, false
}
