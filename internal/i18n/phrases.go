package i18n

import (
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// Phrasebook renders the interviewer's fixed lines in one language.
type Phrasebook struct {
	loc *i18n.Localizer
}

// NewPhrasebook returns a phrasebook for lang. Init must have been called.
func NewPhrasebook(lang string) *Phrasebook {
	return &Phrasebook{loc: NewLocalizer(lang)}
}

// Welcome opens the interview with the first question.
func (p *Phrasebook) Welcome(question string) string {
	return p.render("Welcome", map[string]any{"Question": question})
}

// NextQuestion introduces the next question after an auto-advance.
func (p *Phrasebook) NextQuestion(question string) string {
	return p.render("NextQuestion", map[string]any{"Question": question})
}

// TranscriptionFailed is the placeholder recorded when speech recognition fails.
func (p *Phrasebook) TranscriptionFailed(err error) string {
	return p.render("TranscriptionFailed", map[string]any{"Error": err.Error()})
}

func (p *Phrasebook) render(id string, data map[string]any) string {
	return localize(p.loc, &i18n.LocalizeConfig{MessageID: id, TemplateData: data})
}
