package model

import "time"

// InterviewExport is the top-level JSON structure for archived interview export.
type InterviewExport struct {
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Results    []InterviewResult `json:"results"`
}

// InterviewResult holds one archived interview for export.
type InterviewResult struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Category     Category          `json:"category"`
	Personality  Personality       `json:"personality"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Questions    []string          `json:"questions"`
	Conversation []ConversationMsg `json:"conversation"`
	Scores       []CriterionScore  `json:"scores"`
	TotalScore   float64           `json:"total_score"`
	MaxScore     int               `json:"max_score"`
	Verdict      Verdict           `json:"verdict"`
	Narrative    string            `json:"narrative"`
}

// ConversationMsg is a single utterance in an exported conversation.
type ConversationMsg struct {
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	Question int       `json:"question"`
	At       time.Time `json:"at"`
}
