package analysis

import (
	"time"

	"github.com/google/uuid"
)

// Report is a persisted validation report. The analysis sections are stored
// alongside the submitted idea so reports stay readable after product or
// prompt changes.
type Report struct {
	ID              uuid.UUID `json:"id"`
	DeviceID        string    `json:"-"`
	IdeaTitle       string    `json:"idea_title"`
	IdeaDescription string    `json:"idea_description"`
	Language        string    `json:"language"`
	Result          Result    `json:"result"`
	CreatedAt       time.Time `json:"created_at"`
}
