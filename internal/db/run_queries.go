package db

import (
	"context"
	"fmt"
	"time"
)

// maxRunErrorLength bounds the error text stored in the run ledger.
const maxRunErrorLength = 4000

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// IngestRunCounts is the per-run tally recorded in the ledger.
type IngestRunCounts struct {
	SourcesScanned int `json:"sources_scanned"`
	ItemsSeen      int `json:"items_seen"`
	ItemsInserted  int `json:"items_inserted"`
	NearDuplicates int `json:"near_duplicates"`
}

// InsertIngestRun opens a ledger row for a starting run.
func (p *Pool) InsertIngestRun(ctx context.Context, startedAt time.Time) (int64, error) {
	const q = `
INSERT INTO clip.ingest_runs (started_at, status)
VALUES ($1, $2)
RETURNING run_id
`

	var runID int64
	if err := p.QueryRow(ctx, q, startedAt.UTC(), RunStatusRunning).Scan(&runID); err != nil {
		return 0, fmt.Errorf("insert ingest run: %w", err)
	}
	return runID, nil
}

// MarkIngestRunCompleted closes a ledger row with its final counts.
func (p *Pool) MarkIngestRunCompleted(ctx context.Context, runID int64, finishedAt time.Time, counts IngestRunCounts) error {
	const q = `
UPDATE clip.ingest_runs
SET status = $2,
    finished_at = $3,
    sources_scanned = $4,
    items_seen = $5,
    items_inserted = $6,
    near_duplicates = $7
WHERE run_id = $1
`

	tag, err := p.Exec(ctx, q, runID, RunStatusCompleted, finishedAt.UTC(),
		counts.SourcesScanned, counts.ItemsSeen, counts.ItemsInserted, counts.NearDuplicates)
	if err != nil {
		return fmt.Errorf("mark ingest run %d completed: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ingest run %d not found", runID)
	}
	return nil
}

// MarkIngestRunFailed closes a ledger row with a truncated error message.
func (p *Pool) MarkIngestRunFailed(ctx context.Context, runID int64, finishedAt time.Time, message string) error {
	if len(message) > maxRunErrorLength {
		message = message[:maxRunErrorLength]
	}

	const q = `
UPDATE clip.ingest_runs
SET status = $2,
    finished_at = $3,
    error_message = $4
WHERE run_id = $1
`

	tag, err := p.Exec(ctx, q, runID, RunStatusFailed, finishedAt.UTC(), message)
	if err != nil {
		return fmt.Errorf("mark ingest run %d failed: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ingest run %d not found", runID)
	}
	return nil
}

// ListIngestRuns returns the newest ledger rows, most recent first.
func (p *Pool) ListIngestRuns(ctx context.Context, limit int) ([]IngestRun, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	r.run_id,
	r.started_at,
	r.finished_at,
	r.status,
	r.sources_scanned,
	r.items_seen,
	r.items_inserted,
	r.near_duplicates,
	r.error_message
FROM clip.ingest_runs r
ORDER BY r.run_id DESC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingest runs: %w", err)
	}
	defer rows.Close()

	runs := make([]IngestRun, 0, limit)
	for rows.Next() {
		var run IngestRun
		if err := rows.Scan(
			&run.RunID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Status,
			&run.SourcesScanned,
			&run.ItemsSeen,
			&run.ItemsInserted,
			&run.NearDuplicates,
			&run.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan ingest run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest run rows: %w", err)
	}
	return runs, nil
}

// LatestIngestRun returns the most recent ledger row, or ErrNoRows.
func (p *Pool) LatestIngestRun(ctx context.Context) (*IngestRun, error) {
	runs, err := p.ListIngestRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRows
	}
	return &runs[0], nil
}
