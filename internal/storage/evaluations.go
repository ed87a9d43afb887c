package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sift/internal/models"
)

// SaveEvaluation stores a persona's verdict on an item, replacing any earlier
// verdict for the same item. One row per item: the winning persona's result
// overwrites whatever a previous run decided.
func (s *Store) SaveEvaluation(ctx context.Context, result *models.EvaluationResult) error {
	var details *string
	if len(result.Details) > 0 {
		data, err := json.Marshal(result.Details)
		if err != nil {
			return fmt.Errorf("marshaling evaluation details: %w", err)
		}
		v := string(data)
		details = &v
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (item_id, persona, score, decision, reasoning, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(item_id) DO UPDATE SET
			persona    = excluded.persona,
			score      = excluded.score,
			decision   = excluded.decision,
			reasoning  = excluded.reasoning,
			details    = excluded.details,
			created_at = excluded.created_at`,
		result.ItemID, result.Persona, result.Score, result.Decision,
		nullableString(result.Reasoning), details,
	)
	if err != nil {
		return fmt.Errorf("saving evaluation for item %q: %w", result.ItemID, err)
	}
	return nil
}

// GetEvaluation returns the stored verdict for an item.
// Returns nil, ErrNotFound if the item has not been evaluated.
func (s *Store) GetEvaluation(ctx context.Context, itemID string) (*models.EvaluationResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT item_id, persona, score, decision, reasoning, details
		 FROM evaluations
		 WHERE item_id = ?`, itemID)

	result, err := scanEvaluation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting evaluation for item %q: %w", itemID, err)
	}
	return result, nil
}

// EvaluationsByPersona returns all stored verdicts credited to a persona,
// highest score first.
func (s *Store) EvaluationsByPersona(ctx context.Context, persona string) ([]models.EvaluationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, persona, score, decision, reasoning, details
		 FROM evaluations
		 WHERE persona = ?
		 ORDER BY score DESC, item_id`, persona)
	if err != nil {
		return nil, fmt.Errorf("querying evaluations for persona %q: %w", persona, err)
	}
	defer rows.Close()

	var results []models.EvaluationResult
	for rows.Next() {
		result, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning evaluation row: %w", err)
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating evaluation rows: %w", err)
	}
	return results, nil
}

// scanEvaluation scans a single evaluation row into a models.EvaluationResult.
func scanEvaluation(row scanner) (*models.EvaluationResult, error) {
	var (
		result    models.EvaluationResult
		reasoning sql.NullString
		details   sql.NullString
	)

	if err := row.Scan(
		&result.ItemID, &result.Persona, &result.Score,
		&result.Decision, &reasoning, &details,
	); err != nil {
		return nil, err
	}

	result.Reasoning = reasoning.String

	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &result.Details); err != nil {
			return nil, fmt.Errorf("unmarshaling evaluation details: %w", err)
		}
	}

	return &result, nil
}
