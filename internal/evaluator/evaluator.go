// Package evaluator scores ingested items against personas. Each evaluation
// runs in two stages: a cheap semantic gate against the persona's anchor
// embedding, then a single batched LLM call for everything that survives.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"sift/internal/embedding"
	"sift/internal/models"
)

// DefaultSemanticThreshold is the stage-1 gate. It is deliberately lenient:
// the gate exists to drop obvious junk cheaply, not to rank.
const DefaultSemanticThreshold = 0.15

// TextGenerator is the LLM surface the evaluator needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Embedder produces the vectors for the semantic gate.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Evaluator runs one persona's evaluation. The anchor embedding is computed
// on first use and cached for the evaluator's lifetime. Safe for concurrent
// use once constructed.
type Evaluator struct {
	persona   Persona
	embedder  Embedder
	llm       TextGenerator
	threshold float64

	once      sync.Once
	anchorVec []float32
	initErr   error
}

// New creates an evaluator for the given persona. threshold is the stage-1
// semantic gate; pass DefaultSemanticThreshold unless configured otherwise.
func New(persona Persona, embedder Embedder, llm TextGenerator, threshold float64) *Evaluator {
	return &Evaluator{
		persona:   persona,
		embedder:  embedder,
		llm:       llm,
		threshold: threshold,
	}
}

// Persona returns the persona this evaluator scores for.
func (e *Evaluator) Persona() Persona {
	return e.persona
}

func (e *Evaluator) init(ctx context.Context) {
	vecs, err := e.embedder.EmbedBatch(ctx, []string{e.persona.Anchor})
	if err != nil {
		e.initErr = fmt.Errorf("embedding %s anchor: %w", e.persona.Name, err)
		return
	}
	e.anchorVec = vecs[0]
}

// EvaluateBatch evaluates items and returns one result per item. Items below
// the semantic gate are discarded without an LLM call; the rest go to the
// model in a single batch prompt. An LLM transport failure fails the whole
// batch; a malformed response never does, because unparsed survivors fall
// back to a provisional KEEP.
func (e *Evaluator) EvaluateBatch(ctx context.Context, items []models.IngestedItem) ([]models.EvaluationResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	e.once.Do(func() { e.init(ctx) })
	if e.initErr != nil {
		return nil, e.initErr
	}

	texts := make([]string, len(items))
	for i := range items {
		texts[i] = items[i].EmbedText()
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d items for %s: %w", len(items), e.persona.Name, err)
	}

	results := make([]models.EvaluationResult, 0, len(items))
	survivors := make([]models.IngestedItem, 0, len(items))
	for i := range items {
		score := float64(embedding.Dot(vecs[i], e.anchorVec))
		if score >= e.threshold {
			survivors = append(survivors, items[i])
			continue
		}
		results = append(results, models.EvaluationResult{
			ItemID:    items[i].ID,
			Persona:   e.persona.Name,
			Score:     0,
			Decision:  models.DecisionDiscard,
			Reasoning: fmt.Sprintf("Low relevance (cosine=%.2f)", score),
			Details:   map[string]any{"semantic_score": score},
		})
	}

	slog.Info("semantic gate",
		"persona", e.persona.Name,
		"passed", len(survivors),
		"total", len(items))

	if len(survivors) == 0 {
		return results, nil
	}

	lines := make([]string, len(survivors))
	for i := range survivors {
		lines[i] = survivors[i].PromptLine()
	}
	prompt := fmt.Sprintf(e.persona.Template, strings.Join(lines, "\n\n"))

	response, err := e.llm.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("evaluating %d items for %s: %w", len(survivors), e.persona.Name, err)
	}

	byID := make(map[string]models.IngestedItem, len(survivors))
	for i := range survivors {
		byID[survivors[i].ID] = survivors[i]
	}

	parsed := make(map[string]struct{}, len(survivors))
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "ID:") {
			continue
		}
		result, ok := e.parseLine(line, byID)
		if !ok {
			continue
		}
		results = append(results, result)
		parsed[result.ItemID] = struct{}{}
	}

	// Items the model skipped stay in play with a neutral verdict rather
	// than silently vanishing from the run.
	for i := range survivors {
		if _, ok := parsed[survivors[i].ID]; ok {
			continue
		}
		results = append(results, models.EvaluationResult{
			ItemID:    survivors[i].ID,
			Persona:   e.persona.Name,
			Score:     5,
			Decision:  models.DecisionKeep,
			Reasoning: "Passed semantic filter, pending review",
		})
	}

	return results, nil
}

// Evaluate runs a batch of one and returns its sole result.
func (e *Evaluator) Evaluate(ctx context.Context, item models.IngestedItem) (models.EvaluationResult, error) {
	results, err := e.EvaluateBatch(ctx, []models.IngestedItem{item})
	if err != nil {
		return models.EvaluationResult{}, err
	}
	return results[0], nil
}

// parseLine extracts one result from a response line of the form
// "ID: ... | SCORE: ... | DECISION: ... | INSIGHT: ...". Lines naming an
// unknown id or carrying an unparseable score are rejected. Fields beyond
// the standard four land in Details under lowercase keys.
func (e *Evaluator) parseLine(line string, items map[string]models.IngestedItem) (models.EvaluationResult, bool) {
	fields := make(map[string]string)
	for _, part := range strings.Split(line, "|") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		fields[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	item, ok := items[fields["ID"]]
	if !ok {
		// Hallucinated or mangled id.
		return models.EvaluationResult{}, false
	}

	var score float64
	if text, ok := fields["SCORE"]; ok {
		var err error
		score, err = strconv.ParseFloat(text, 64)
		if err != nil {
			slog.Warn("unparseable evaluation line",
				"persona", e.persona.Name,
				"line", line,
				"error", err)
			return models.EvaluationResult{}, false
		}
	}

	decision := models.DecisionDiscard
	if strings.Contains(strings.ToUpper(fields["DECISION"]), models.DecisionKeep) && score >= 5 {
		decision = models.DecisionKeep
	}

	details := map[string]any{"raw_line": line}
	for key, value := range fields {
		switch key {
		case "ID", "SCORE", "DECISION", "INSIGHT":
			continue
		}
		details[strings.ToLower(key)] = value
	}

	return models.EvaluationResult{
		ItemID:    item.ID,
		Persona:   e.persona.Name,
		Score:     score,
		Decision:  decision,
		Reasoning: fields["INSIGHT"],
		Details:   details,
	}, true
}
