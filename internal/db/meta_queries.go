package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMetaNotFound reports a missing run_meta key. Callers treat it as
// "use the built-in default", unlike any other error from these queries.
var ErrMetaNotFound = errors.New("run meta key not found")

// MetaEntry is used by the meta CLI command and the HTTP API.
type MetaEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetMeta returns the value stored under key, or ErrMetaNotFound.
func (p *Pool) GetMeta(ctx context.Context, key string) (string, error) {
	const q = `
SELECT m.value
FROM clip.run_meta m
WHERE m.key = $1
`

	var value string
	if err := p.QueryRow(ctx, q, key).Scan(&value); err != nil {
		if IsNoRows(err) {
			return "", ErrMetaNotFound
		}
		return "", fmt.Errorf("query run meta %q: %w", key, err)
	}
	return value, nil
}

// SetMeta upserts one run_meta key.
func (p *Pool) SetMeta(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO clip.run_meta (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = now()
`

	if _, err := p.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("upsert run meta %q: %w", key, err)
	}
	return nil
}

// ListMeta returns all run_meta entries ordered by key.
func (p *Pool) ListMeta(ctx context.Context) ([]MetaEntry, error) {
	const q = `
SELECT m.key, m.value, m.updated_at
FROM clip.run_meta m
ORDER BY m.key
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query run meta: %w", err)
	}
	defer rows.Close()

	var entries []MetaEntry
	for rows.Next() {
		var entry MetaEntry
		if err := rows.Scan(&entry.Key, &entry.Value, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run meta row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run meta rows: %w", err)
	}
	return entries, nil
}
