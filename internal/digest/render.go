package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sift/internal/evaluator"
)

// Fixed summary strings. The digest is always produced; these stand in when
// the model cannot contribute a real summary.
const (
	summaryFailed = "Error generating summary: LLM request failed."
	nothingFound  = "No relevant items were found in this run matching your criteria."
)

// Summarizer is the LLM surface summary generation needs.
type Summarizer interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Document is the fully assembled digest, ready to render.
type Document struct {
	GeneratedOn time.Time `json:"generated_on"`
	Summary     string    `json:"summary"`
	Sections    []Section `json:"sections"`
}

// Section is one persona's block of selections.
type Section struct {
	Persona      string                  `json:"persona"`
	Title        string                  `json:"title"`
	Selections   []Selection             `json:"selections"`
	DetailFields []evaluator.DetailField `json:"-"`
}

// BuildSummary produces the executive summary for the assigned selections.
// It never fails: an LLM error or an empty run yields a fixed string, so
// digest generation always completes.
func BuildSummary(ctx context.Context, llm Summarizer, assigned map[string][]Selection, personaOrder []string) string {
	var lines []string
	for _, persona := range personaOrder {
		for _, sel := range assigned[persona] {
			lines = append(lines, fmt.Sprintf("- %s: %s", sel.Item.Title, sel.Result.Reasoning))
		}
	}
	if len(lines) == 0 {
		return nothingFound
	}

	prompt := "Summarize the following findings into a cohesive executive summary:\n" + strings.Join(lines, "\n")
	summary, err := llm.GenerateText(ctx, prompt)
	if err != nil {
		slog.Error("summary generation failed", "error", err)
		return summaryFailed
	}
	return summary
}

// BuildDocument assembles the document from assigned selections. Sections
// follow persona registry order; personas with nothing selected are omitted.
func BuildDocument(personas []evaluator.Persona, assigned map[string][]Selection, summary string, now time.Time) Document {
	doc := Document{
		GeneratedOn: now,
		Summary:     summary,
	}
	for _, p := range personas {
		selections := assigned[p.Name]
		if len(selections) == 0 {
			continue
		}
		doc.Sections = append(doc.Sections, Section{
			Persona:      p.Name,
			Title:        p.Title,
			Selections:   selections,
			DetailFields: p.DetailFields,
		})
	}
	return doc
}

// Render produces the digest markdown. Pure function of the document.
func Render(doc Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Sift: AI Intelligence Digest - %s\n\n", doc.GeneratedOn.Format("2006-01-02"))

	if doc.Summary != "" {
		b.WriteString("## Executive Summary\n\n")
		for _, line := range strings.Split(doc.Summary, "\n") {
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n---\n\n")
	}

	for _, section := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n", section.Title)
		for _, sel := range section.Selections {
			fmt.Fprintf(&b, "### [%s](%s)\n", sel.Item.Title, sel.Item.URL)
			fmt.Fprintf(&b, "**Source:** %s\n", sel.Item.Source)
			fmt.Fprintf(&b, "**Insight:** %s\n", sel.Result.Reasoning)
			for _, field := range section.DetailFields {
				if value, ok := sel.Result.Details[field.Key]; ok && value != "" {
					fmt.Fprintf(&b, "**%s:** %v\n", field.Label, value)
				}
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
