// Package prefilter drops obviously off-topic items before they reach the
// LLM. An item passes when its embedding lands close enough to at least one
// anchor concept, or when raw engagement is high enough to keep it anyway.
package prefilter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"sift/internal/embedding"
	"sift/internal/models"
)

const (
	// DefaultThreshold is the minimum anchor similarity for an item to pass.
	DefaultThreshold = 0.35

	// DefaultEngagementBypass keeps items whose raw source score exceeds this
	// value even when no anchor matches. Must be exceeded strictly.
	DefaultEngagementBypass = 100
)

// Embedder is the vector source the prefilter scores with.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Anchor is a named concept description items are compared against.
type Anchor struct {
	Name string
	Text string
}

// DefaultAnchors returns the anchor concepts for the built-in personas.
func DefaultAnchors() []Anchor {
	return []Anchor{
		{
			Name: "GENAI",
			Text: "Technical details about Large Language Models, AI agents, RAG systems, transformer architectures, new model releases like Llama, GPT, Claude, Gemini, fine-tuning, prompt engineering, AI research breakthroughs.",
		},
		{
			Name: "PRODUCT",
			Text: "New software startup ideas, B2B SaaS opportunities, market gaps, product launches, innovative apps, developer tools, problems enabling new product development, tech entrepreneurship.",
		},
		{
			Name: "FINANCE",
			Text: "Financial reports of tech companies, revenue data, funding rounds, IPOs, stock market analysis, AI company valuations, venture capital investments, earnings reports.",
		},
	}
}

// Prefilter scores items against a fixed set of anchor embeddings. Anchor
// vectors are computed once on first use and reused for every item after.
type Prefilter struct {
	embedder  Embedder
	anchors   []Anchor
	threshold float32
	bypass    int

	once       sync.Once
	anchorVecs [][]float32
	initErr    error
}

// New creates a prefilter. Anchor embeddings are not computed until the
// first relevance check.
func New(embedder Embedder, anchors []Anchor, threshold float32, bypass int) *Prefilter {
	return &Prefilter{
		embedder:  embedder,
		anchors:   anchors,
		threshold: threshold,
		bypass:    bypass,
	}
}

func (p *Prefilter) init(ctx context.Context) {
	texts := make([]string, len(p.anchors))
	for i, a := range p.anchors {
		texts[i] = a.Text
	}

	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		p.initErr = fmt.Errorf("embedding %d anchors: %w", len(p.anchors), err)
		return
	}
	p.anchorVecs = vecs
	slog.Info("prefilter anchors ready", "anchors", len(p.anchors))
}

// IsRelevant reports whether a single item passes the filter. The item's
// embedding is computed if missing and cached on the item, so later stages
// reuse the same vector.
func (p *Prefilter) IsRelevant(ctx context.Context, item *models.IngestedItem) (bool, error) {
	p.once.Do(func() { p.init(ctx) })
	if p.initErr != nil {
		return false, p.initErr
	}

	if item.Embedding == nil {
		vec, err := p.embedder.Embed(ctx, item.EmbedText())
		if err != nil {
			return false, fmt.Errorf("embedding item %s: %w", item.ID, err)
		}
		item.Embedding = vec
	}

	return p.relevant(item.Embedding, item.RawScore), nil
}

// FilterBatch embeds all items in one call and returns those that pass.
// Embeddings are written back so the returned items carry their vectors.
func (p *Prefilter) FilterBatch(ctx context.Context, items []models.IngestedItem) ([]models.IngestedItem, error) {
	p.once.Do(func() { p.init(ctx) })
	if p.initErr != nil {
		return nil, p.initErr
	}
	if len(items) == 0 {
		return nil, nil
	}

	texts := make([]string, len(items))
	for i := range items {
		texts[i] = items[i].EmbedText()
	}
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d items: %w", len(items), err)
	}

	relevant := make([]models.IngestedItem, 0, len(items))
	for i := range items {
		items[i].Embedding = vecs[i]
		if p.relevant(vecs[i], items[i].RawScore) {
			relevant = append(relevant, items[i])
		}
	}

	slog.Info("prefilter pass complete",
		"passed", len(relevant),
		"total", len(items),
		"threshold", p.threshold)
	return relevant, nil
}

// relevant is the single pass/fail rule shared by the batch and single-item
// paths, so the two can never disagree.
func (p *Prefilter) relevant(vec []float32, rawScore int) bool {
	best := float32(-1)
	for _, anchor := range p.anchorVecs {
		if score := embedding.Dot(vec, anchor); score > best {
			best = score
		}
	}
	if best >= p.threshold {
		return true
	}
	return rawScore > p.bypass
}
