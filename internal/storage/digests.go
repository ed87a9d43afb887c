package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sift/internal/models"
)

// SaveDigest inserts a digest record and returns its row ID. Runs on the
// same day produce separate rows; LatestDigest picks the newest.
func (s *Store) SaveDigest(ctx context.Context, digest *models.Digest) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO digests (generated_on, summary, content_markdown, content_json, created_at)
		 VALUES (?, ?, ?, ?, datetime('now'))`,
		digest.GeneratedOn, digest.Summary, digest.ContentMarkdown,
		nullableString(digest.ContentJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("saving digest: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting digest id: %w", err)
	}
	return id, nil
}

// LatestDigest returns the most recently generated digest.
// Returns nil, ErrNotFound if no digest has been generated yet.
func (s *Store) LatestDigest(ctx context.Context) (*models.Digest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, generated_on, summary, content_markdown, content_json, created_at
		 FROM digests
		 ORDER BY id DESC
		 LIMIT 1`)

	digest, err := scanDigest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting latest digest: %w", err)
	}
	return digest, nil
}

// GetDigest returns the digest with the given row ID.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetDigest(ctx context.Context, id int64) (*models.Digest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, generated_on, summary, content_markdown, content_json, created_at
		 FROM digests
		 WHERE id = ?`, id)

	digest, err := scanDigest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting digest %d: %w", id, err)
	}
	return digest, nil
}

// ListDigests returns up to limit digests, newest first. The markdown and
// JSON bodies are omitted so the listing stays light; fetch a single digest
// by ID for the full content.
func (s *Store) ListDigests(ctx context.Context, limit int) ([]models.Digest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, generated_on, summary, created_at
		 FROM digests
		 ORDER BY id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying digests: %w", err)
	}
	defer rows.Close()

	var digests []models.Digest
	for rows.Next() {
		var (
			d         models.Digest
			createdAt string
		)
		if err := rows.Scan(&d.ID, &d.GeneratedOn, &d.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning digest row: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)
		digests = append(digests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating digest rows: %w", err)
	}
	return digests, nil
}

// scanDigest scans a full digest row into a models.Digest.
func scanDigest(row scanner) (*models.Digest, error) {
	var (
		digest      models.Digest
		contentJSON sql.NullString
		createdAt   string
	)

	if err := row.Scan(
		&digest.ID, &digest.GeneratedOn, &digest.Summary,
		&digest.ContentMarkdown, &contentJSON, &createdAt,
	); err != nil {
		return nil, err
	}

	digest.ContentJSON = contentJSON.String
	digest.CreatedAt = parseTime(createdAt)

	return &digest, nil
}
