// Package models defines the domain types shared across the sift pipeline.
package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// promptSnippetLen bounds the content excerpt embedded in LLM batch prompts.
const promptSnippetLen = 400

// IngestedItem is a single piece of content pulled from a source adapter.
// Items are created by adapters and treated as read-only downstream.
type IngestedItem struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Title     string         `json:"title"`
	URL       string         `json:"url"`
	Content   string         `json:"content,omitempty"`
	Author    string         `json:"author,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	RawScore  int            `json:"raw_score"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// Embedding caches the item's normalized vector within a single run so
	// the duplicate check, prefilter, and index insert embed only once.
	// Never persisted.
	Embedding []float32 `json:"-"`
}

// ItemID derives a stable item identifier from the item's URL. The same URL
// always yields the same ID, which is what makes duplicate detection across
// runs meaningful.
func ItemID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// PromptLine serializes the item into the single-line format used in batch
// evaluation prompts. Newlines in the content are flattened so the line
// stays a line.
func (it *IngestedItem) PromptLine() string {
	snippet := it.Content
	if len(snippet) > promptSnippetLen {
		snippet = snippet[:promptSnippetLen]
	}
	snippet = strings.ReplaceAll(snippet, "\n", " ")
	return "ID: " + it.ID + " | TITLE: " + it.Title + " | SOURCE: " + it.Source + " | CONTENT: " + snippet
}

// DedupKey returns the in-run duplicate key: the URL joined with the title
// lowercased and stripped to alphanumerics, so minor punctuation or casing
// differences do not defeat deduplication.
func (it *IngestedItem) DedupKey() string {
	return it.URL + "-" + NormalizeTitle(it.Title)
}

// EmbedText returns the text compared against anchors and index vectors:
// title and content joined by a single space.
func (it *IngestedItem) EmbedText() string {
	return it.Title + " " + it.Content
}

// SourceKey returns the source family an item belongs to, e.g. "RSS" for
// "RSS: TechCrunch AI". Sources without a qualifier map to themselves.
func (it *IngestedItem) SourceKey() string {
	key, _, _ := strings.Cut(it.Source, ":")
	return strings.TrimSpace(key)
}

// NormalizeTitle lowercases a title and drops everything that is not a
// letter or digit.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
