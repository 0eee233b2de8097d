package content

import (
	"strings"

	"github.com/pavelanni/interviewer/internal/model"
)

// Format renders a record in the marker format read by Parse.
func Format(rec model.QuestionRecord) string {
	var sb strings.Builder
	sb.WriteString(MarkerTitle + " " + rec.Title + "\n")
	sb.WriteString(MarkerPassage + "\n")
	if rec.Passage != "" {
		sb.WriteString(rec.Passage + "\n")
	}
	sb.WriteString("\n" + MarkerQuestions + "\n")
	for _, q := range rec.Questions {
		sb.WriteString("- " + q + "\n")
	}
	sb.WriteString("\n" + MarkerKeyPoints + "\n")
	for _, kp := range rec.KeyPoints {
		sb.WriteString("- " + kp + "\n")
	}
	return sb.String()
}
