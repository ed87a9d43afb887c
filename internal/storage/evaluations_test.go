package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"sift/internal/models"
)

// saveTestItem inserts a parent item row so evaluation foreign keys resolve.
func saveTestItem(t *testing.T, store *Store, url string) string {
	t.Helper()
	item := testItem(url, url, time.Now().UTC())
	if _, err := store.SaveItem(context.Background(), item); err != nil {
		t.Fatalf("SaveItem(%q) error: %v", url, err)
	}
	return item.ID
}

func TestSaveEvaluation_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	itemID := saveTestItem(t, store, "https://example.com/a")
	result := &models.EvaluationResult{
		ItemID:    itemID,
		Persona:   "GENAI_NEWS",
		Score:     8.5,
		Decision:  models.DecisionKeep,
		Reasoning: "Major model release.",
		Details:   map[string]any{"technical_details": "70B parameters"},
	}

	if err := store.SaveEvaluation(ctx, result); err != nil {
		t.Fatalf("SaveEvaluation() error: %v", err)
	}

	got, err := store.GetEvaluation(ctx, itemID)
	if err != nil {
		t.Fatalf("GetEvaluation() error: %v", err)
	}
	if got.Persona != "GENAI_NEWS" {
		t.Errorf("Persona = %q, want %q", got.Persona, "GENAI_NEWS")
	}
	if got.Score != 8.5 {
		t.Errorf("Score = %v, want 8.5", got.Score)
	}
	if got.Decision != models.DecisionKeep {
		t.Errorf("Decision = %q, want %q", got.Decision, models.DecisionKeep)
	}
	if got.Reasoning != "Major model release." {
		t.Errorf("Reasoning = %q, want %q", got.Reasoning, "Major model release.")
	}
	if got.Details["technical_details"] != "70B parameters" {
		t.Errorf("Details = %v, want technical_details set", got.Details)
	}
}

func TestSaveEvaluation_ReplacesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	itemID := saveTestItem(t, store, "https://example.com/a")

	first := &models.EvaluationResult{
		ItemID:   itemID,
		Persona:  "GENAI_NEWS",
		Score:    6,
		Decision: models.DecisionKeep,
	}
	if err := store.SaveEvaluation(ctx, first); err != nil {
		t.Fatalf("first SaveEvaluation() error: %v", err)
	}

	second := &models.EvaluationResult{
		ItemID:   itemID,
		Persona:  "FINANCIAL_ANALYSIS",
		Score:    9,
		Decision: models.DecisionKeep,
	}
	if err := store.SaveEvaluation(ctx, second); err != nil {
		t.Fatalf("second SaveEvaluation() error: %v", err)
	}

	got, err := store.GetEvaluation(ctx, itemID)
	if err != nil {
		t.Fatalf("GetEvaluation() error: %v", err)
	}
	if got.Persona != "FINANCIAL_ANALYSIS" {
		t.Errorf("Persona = %q, want the replacement row", got.Persona)
	}
	if got.Score != 9 {
		t.Errorf("Score = %v, want 9", got.Score)
	}
	if got.Details != nil {
		t.Errorf("Details = %v, want nil", got.Details)
	}
}

func TestGetEvaluation_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEvaluation(context.Background(), "no-such-item")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestEvaluationsByPersona(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lowID := saveTestItem(t, store, "https://example.com/low")
	highID := saveTestItem(t, store, "https://example.com/high")
	otherID := saveTestItem(t, store, "https://example.com/other")

	for _, result := range []*models.EvaluationResult{
		{ItemID: lowID, Persona: "GENAI_NEWS", Score: 5, Decision: models.DecisionKeep},
		{ItemID: highID, Persona: "GENAI_NEWS", Score: 9, Decision: models.DecisionKeep},
		{ItemID: otherID, Persona: "PRODUCT_IDEAS", Score: 7, Decision: models.DecisionKeep},
	} {
		if err := store.SaveEvaluation(ctx, result); err != nil {
			t.Fatalf("SaveEvaluation(%q) error: %v", result.ItemID, err)
		}
	}

	results, err := store.EvaluationsByPersona(ctx, "GENAI_NEWS")
	if err != nil {
		t.Fatalf("EvaluationsByPersona() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ItemID != highID || results[1].ItemID != lowID {
		t.Errorf("unexpected order: %q then %q, want highest score first", results[0].ItemID, results[1].ItemID)
	}
}
