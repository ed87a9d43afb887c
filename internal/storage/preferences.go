package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sift/internal/models"
)

// Preference returns the stored value for a key, or def if the key has never
// been set. Preference values are plain strings; toggles store "true"/"false".
func (s *Store) Preference(ctx context.Context, key, def string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return def, nil
		}
		return "", fmt.Errorf("getting preference %q: %w", key, err)
	}
	return value, nil
}

// BoolPreference reports whether a toggle preference is enabled. Unset keys
// default to enabled; any stored value other than "true" (in any casing)
// disables.
func (s *Store) BoolPreference(ctx context.Context, key string) (bool, error) {
	value, err := s.Preference(ctx, key, models.DefaultPreferenceValue)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(value, "true"), nil
}

// SetPreference stores a value under the given key. If the key already
// exists, its value and updated_at are overwritten.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at)
		 VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting preference %q: %w", key, err)
	}
	return nil
}

// AllPreferences returns the effective preference map: every known key at
// its default, overlaid with whatever rows have been stored. Stored keys
// outside the known set are included as-is.
func (s *Store) AllPreferences(ctx context.Context) (map[string]string, error) {
	prefs := make(map[string]string)
	for _, key := range models.KnownPreferenceKeys() {
		prefs[key] = models.DefaultPreferenceValue
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning preference row: %w", err)
		}
		prefs[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating preference rows: %w", err)
	}
	return prefs, nil
}
