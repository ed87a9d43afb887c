package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"sift/internal/models"
)

// SaveItem inserts an ingested item, ignoring the insert if a row with the
// same ID already exists. It reports whether a new row was written, which is
// how repeat ingestions of the same URL are detected.
func (s *Store) SaveItem(ctx context.Context, item *models.IngestedItem) (bool, error) {
	var metadata *string
	if len(item.Metadata) > 0 {
		data, err := json.Marshal(item.Metadata)
		if err != nil {
			return false, fmt.Errorf("marshaling item metadata: %w", err)
		}
		v := string(data)
		metadata = &v
	}

	createdAt := item.CreatedAt.UTC().Format("2006-01-02 15:04:05")

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO items (id, source, title, url, content, author, raw_score, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Source, item.Title, item.URL, nullableString(item.Content),
		nullableString(item.Author), item.RawScore, metadata, createdAt,
	)
	if err != nil {
		return false, fmt.Errorf("saving item %q: %w", item.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking item insert result: %w", err)
	}
	return n > 0, nil
}

// RecentItems returns up to limit items ordered newest first. This is the
// candidate pool the generation stage evaluates.
func (s *Store) RecentItems(ctx context.Context, limit int) ([]models.IngestedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, title, url, content, author, raw_score, metadata, created_at
		 FROM items
		 ORDER BY created_at DESC, id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent items: %w", err)
	}
	defer rows.Close()

	var items []models.IngestedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating item rows: %w", err)
	}
	return items, nil
}

// CountItems returns the total number of stored items.
func (s *Store) CountItems(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// scanItem scans a single item row into a models.IngestedItem.
func scanItem(row scanner) (*models.IngestedItem, error) {
	var (
		item      models.IngestedItem
		content   sql.NullString
		author    sql.NullString
		metadata  sql.NullString
		createdAt string
	)

	if err := row.Scan(
		&item.ID, &item.Source, &item.Title, &item.URL,
		&content, &author, &item.RawScore, &metadata, &createdAt,
	); err != nil {
		return nil, err
	}

	item.Content = content.String
	item.Author = author.String
	item.CreatedAt = parseTime(createdAt)

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &item.Metadata); err != nil {
			slog.Warn("dropping unreadable item metadata", "item_id", item.ID, "error", err)
			item.Metadata = nil
		}
	}

	return &item, nil
}

// scanner is a minimal interface satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// nullableString converts an empty string to nil for nullable TEXT columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
