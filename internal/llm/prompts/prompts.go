package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/interviewer/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const maxAnswerRunes = 10000

var (
	conversationTagRegex    = regexp.MustCompile(`(?i)</?\s*conversation\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

var (
	loadOnce  sync.Once
	loadErr   error
	templates *template.Template
)

var funcs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}

func load() (*template.Template, error) {
	loadOnce.Do(func() {
		templates, loadErr = template.New("prompts").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
		if loadErr != nil {
			loadErr = fmt.Errorf("parse prompt templates: %w", loadErr)
		}
	})
	return templates, loadErr
}

func execute(name string, data any) (string, error) {
	t, err := load()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// GenerateData holds template data for problem generation prompts.
type GenerateData struct {
	Topic    string
	Science  bool
	Example  *model.QuestionRecord
	Language string
}

// BuildGeneratePrompts returns the system and user prompts for a generation request.
func BuildGeneratePrompts(data GenerateData) (system, user string, err error) {
	if system, err = execute("generate_system.tmpl", data); err != nil {
		return "", "", err
	}
	if user, err = execute("generate_user.tmpl", data); err != nil {
		return "", "", err
	}
	return system, user, nil
}

// InterviewerData holds template data for the interviewer's system prompt.
type InterviewerData struct {
	Personality string
	Passage     string
	Questions   []string
	Final       bool
	Language    string
}

// BuildInterviewerPrompt builds the acknowledgment system prompt. The final
// variant is chosen strictly by the request's instruction.
func BuildInterviewerPrompt(req model.AckRequest, language string) (string, error) {
	return execute("interviewer.tmpl", InterviewerData{
		Personality: req.Personality.Description(),
		Passage:     req.Question.Passage,
		Questions:   req.Question.Questions,
		Final:       req.Instruction == model.AckFinal,
		Language:    language,
	})
}

// Criterion is one rubric line rendered into the grading prompt.
type Criterion struct {
	Key         string
	Name        string
	Description string
	Max         int
}

// GradeData holds template data for the grading prompt.
type GradeData struct {
	Title            string
	Passage          string
	Questions        []string
	KeyPoints        []string
	Conversation     string
	RubricName       string
	RubricIntro      string
	Criteria         []Criterion
	OpposingCriteria []string
	Science          bool
	Language         string
}

// BuildGradePrompt builds the final grading prompt.
func BuildGradePrompt(data GradeData) (string, error) {
	return execute("grade.tmpl", data)
}

// Transcript renders utterances as "Role: text" lines, sanitizing candidate text.
func Transcript(utterances []model.Utterance) string {
	var sb strings.Builder
	for _, u := range utterances {
		role := "Interviewer"
		text := u.Text
		if u.Role == model.RoleCandidate {
			role = "Candidate"
			text = SanitizeAnswer(text)
		}
		sb.WriteString(role + ": " + text + "\n\n")
	}
	return sb.String()
}

// SanitizeAnswer strips prompt delimiters from candidate text and truncates it.
func SanitizeAnswer(answer string) string {
	answer = conversationTagRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
