package db

import (
	"context"
	"fmt"
	"time"
)

// CorpusStats is used by the stats CLI command and the HTTP API.
type CorpusStats struct {
	TotalArticles   int64      `json:"total_articles"`
	NearDuplicates  int64      `json:"near_duplicates"`
	DistinctSources int64      `json:"distinct_sources"`
	LastInsertedAt  *time.Time `json:"last_inserted_at,omitempty"`
}

// SourceCount is one source's share of the corpus.
type SourceCount struct {
	Source         string `json:"source"`
	ArticleCount   int64  `json:"article_count"`
	NearDuplicates int64  `json:"near_duplicates"`
}

// CorpusStatsSnapshot aggregates whole-corpus counters in one query.
func (p *Pool) CorpusStatsSnapshot(ctx context.Context) (*CorpusStats, error) {
	const q = `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE a.duplicate_of <> ''),
	COUNT(DISTINCT a.source),
	MAX(a.created_at)
FROM clip.articles a
`

	var stats CorpusStats
	if err := p.QueryRow(ctx, q).Scan(
		&stats.TotalArticles,
		&stats.NearDuplicates,
		&stats.DistinctSources,
		&stats.LastInsertedAt,
	); err != nil {
		return nil, fmt.Errorf("query corpus stats: %w", err)
	}
	return &stats, nil
}

// CountArticlesBySource breaks the corpus down per source, biggest first.
func (p *Pool) CountArticlesBySource(ctx context.Context) ([]SourceCount, error) {
	const q = `
SELECT
	a.source,
	COUNT(*),
	COUNT(*) FILTER (WHERE a.duplicate_of <> '')
FROM clip.articles a
GROUP BY a.source
ORDER BY COUNT(*) DESC, a.source
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query source counts: %w", err)
	}
	defer rows.Close()

	var counts []SourceCount
	for rows.Next() {
		var row SourceCount
		if err := rows.Scan(&row.Source, &row.ArticleCount, &row.NearDuplicates); err != nil {
			return nil, fmt.Errorf("scan source count row: %w", err)
		}
		counts = append(counts, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source count rows: %w", err)
	}
	return counts, nil
}

// CountArticlesSince counts rows created at or after the cutoff.
func (p *Pool) CountArticlesSince(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `
SELECT COUNT(*)
FROM clip.articles a
WHERE a.created_at >= $1
`

	var count int64
	if err := p.QueryRow(ctx, q, cutoff.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles since %s: %w", cutoff.UTC().Format(time.RFC3339), err)
	}
	return count, nil
}
