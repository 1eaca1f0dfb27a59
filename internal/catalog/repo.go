package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/bookbot/internal/apperr"
	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/indexcache"
)

// BookRow represents a row in the books table.
type BookRow struct {
	Fingerprint    fingerprint.Fingerprint `json:"fingerprint"`
	FileName       string                  `json:"file_name"`
	EmbeddingModel string                  `json:"embedding_model"`
	Dimension      int                     `json:"dimension"`
	Chunks         int                     `json:"chunks"`
	CreatedAt      time.Time               `json:"created_at"`
	LastUsedAt     time.Time               `json:"last_used_at"`
	Hits           int                     `json:"hits"`
}

// RecordStore inserts or refreshes the row for a freshly stored index.
// Usage counters survive a replacement.
func (db *DB) RecordStore(ctx context.Context, fp fingerprint.Fingerprint, m indexcache.Meta) error {
	now := time.Now().UTC()
	created := m.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO books (fingerprint, file_name, embedding_model, dimension, chunks, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			file_name       = CASE WHEN excluded.file_name != '' THEN excluded.file_name ELSE books.file_name END,
			embedding_model = excluded.embedding_model,
			dimension       = excluded.dimension,
			chunks          = excluded.chunks,
			created_at      = excluded.created_at,
			last_used_at    = excluded.last_used_at
	`, string(fp), m.Label, m.EmbeddingModel, m.Dimension, m.Chunks, created, now)
	if err != nil {
		return fmt.Errorf("catalog: record store: %w", err)
	}
	return nil
}

// RecordHit bumps the usage counters. A label, when given, becomes the
// book's file name.
func (db *DB) RecordHit(ctx context.Context, fp fingerprint.Fingerprint, label string) error {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO books (fingerprint, file_name, created_at, last_used_at, hits)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(fingerprint) DO UPDATE SET
			file_name    = CASE WHEN excluded.file_name != '' THEN excluded.file_name ELSE books.file_name END,
			last_used_at = excluded.last_used_at,
			hits         = books.hits + 1
	`, string(fp), label, now, now)
	if err != nil {
		return fmt.Errorf("catalog: record hit: %w", err)
	}
	return nil
}

// RecordEvict removes the row of an evicted entry.
func (db *DB) RecordEvict(ctx context.Context, fp fingerprint.Fingerprint) error {
	return db.Delete(ctx, fp)
}

// Delete removes a row. Missing rows are not an error.
func (db *DB) Delete(ctx context.Context, fp fingerprint.Fingerprint) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM books WHERE fingerprint = ?`, string(fp)); err != nil {
		return fmt.Errorf("catalog: delete: %w", err)
	}
	return nil
}

const selectColumns = `fingerprint, file_name, embedding_model, dimension, chunks, created_at, last_used_at, hits`

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (BookRow, error) {
	var r BookRow
	var fp string
	err := s.Scan(&fp, &r.FileName, &r.EmbeddingModel, &r.Dimension, &r.Chunks, &r.CreatedAt, &r.LastUsedAt, &r.Hits)
	r.Fingerprint = fingerprint.Fingerprint(fp)
	return r, err
}

// Get returns the row for fp or an error wrapping apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, fp fingerprint.Fingerprint) (*BookRow, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM books WHERE fingerprint = ?`, string(fp))
	r, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: book %s: %w", fp.Short(), apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get: %w", err)
	}
	return &r, nil
}

// List returns rows most recently used first, optionally filtered by a
// file-name substring, along with the total number of matching rows.
func (db *DB) List(ctx context.Context, limit, offset int, filter string) ([]BookRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	like := "%" + filter + "%"

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM books WHERE file_name LIKE ?`, like,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM books
		WHERE file_name LIKE ?
		ORDER BY last_used_at DESC, fingerprint
		LIMIT ? OFFSET ?
	`, like, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	out := []BookRow{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllFingerprints returns every catalogued fingerprint.
func (db *DB) AllFingerprints(ctx context.Context) (map[fingerprint.Fingerprint]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT fingerprint FROM books`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all fingerprints: %w", err)
	}
	defer rows.Close()
	out := make(map[fingerprint.Fingerprint]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		out[fingerprint.Fingerprint(fp)] = struct{}{}
	}
	return out, rows.Err()
}
