package models

import "time"

// Digest is the persisted output of one generation run: the executive
// summary plus the rendered markdown and the structured document it was
// rendered from.
type Digest struct {
	ID              int64     `json:"id"`
	GeneratedOn     string    `json:"generated_on"`
	Summary         string    `json:"summary"`
	ContentMarkdown string    `json:"content_markdown"`
	ContentJSON     string    `json:"content_json,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
