package db

import (
	"context"
	"fmt"
	"time"
)

// DedupKey is one persisted row's exact-match keys, used to seed the dedup
// index at the start of a run.
type DedupKey struct {
	URLCanonical string
	TitleHash    string
}

// FingerprintRow is one persisted row's near-duplicate key. Simhash stays a
// raw string here; the pipeline parses it and silently skips malformed rows.
type FingerprintRow struct {
	Simhash string
	URL     string
}

// ArticleListOptions controls article listing queries.
type ArticleListOptions struct {
	Source         string
	DuplicatesOnly bool
	TitleQuery     string
	Limit          int
	Offset         int
}

// ArticleListItem is used by the articles CLI command and the HTTP API.
type ArticleListItem struct {
	ID          int64     `json:"id"`
	PublishedAt string    `json:"published_at,omitempty"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Tags        string    `json:"tags,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SelectDedupKeys returns the exact-match keys of every persisted article.
func (p *Pool) SelectDedupKeys(ctx context.Context) ([]DedupKey, error) {
	const q = `
SELECT a.url_canonical, a.title_hash
FROM clip.articles a
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query dedup keys: %w", err)
	}
	defer rows.Close()

	var keys []DedupKey
	for rows.Next() {
		var key DedupKey
		if err := rows.Scan(&key.URLCanonical, &key.TitleHash); err != nil {
			return nil, fmt.Errorf("scan dedup key row: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dedup key rows: %w", err)
	}
	return keys, nil
}

// SelectRecentFingerprints returns the fingerprint columns of the newest
// limit rows, oldest first, matching the order articles were stored in.
func (p *Pool) SelectRecentFingerprints(ctx context.Context, limit int) ([]FingerprintRow, error) {
	if limit <= 0 {
		return nil, nil
	}

	const q = `
SELECT t.simhash, t.url
FROM (
	SELECT a.id, a.simhash, a.url
	FROM clip.articles a
	ORDER BY a.id DESC
	LIMIT $1
) t
ORDER BY t.id ASC
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent fingerprints: %w", err)
	}
	defer rows.Close()

	out := make([]FingerprintRow, 0, limit)
	for rows.Next() {
		var row FingerprintRow
		if err := rows.Scan(&row.Simhash, &row.URL); err != nil {
			return nil, fmt.Errorf("scan fingerprint row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprint rows: %w", err)
	}
	return out, nil
}

// AppendArticles inserts a run's accepted articles in one transaction so a
// run's output lands atomically.
func (p *Pool) AppendArticles(ctx context.Context, articles []Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := p.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}

	const q = `
INSERT INTO clip.articles
	(published_at, source, title, url, url_canonical, tags, title_hash, simhash, duplicate_of, summary)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

	for i := range articles {
		a := &articles[i]
		if _, err := tx.Exec(ctx, q,
			a.PublishedAt,
			a.Source,
			a.Title,
			a.URL,
			a.URLCanonical,
			a.Tags,
			a.TitleHash,
			a.Simhash,
			a.DuplicateOf,
			a.Summary,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert article %q: %w", a.URLCanonical, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

// ListArticles lists persisted articles newest first, with optional filters,
// and returns the total row count for the same filters.
func (p *Pool) ListArticles(ctx context.Context, opts ArticleListOptions) ([]ArticleListItem, int64, error) {
	if opts.Limit <= 0 {
		return nil, 0, fmt.Errorf("limit must be > 0")
	}
	if opts.Offset < 0 {
		return nil, 0, fmt.Errorf("offset must be >= 0")
	}

	const countQ = `
SELECT COUNT(*)
FROM clip.articles a
WHERE ($1 = '' OR a.source = $1)
  AND ($2 = FALSE OR a.duplicate_of <> '')
  AND ($3 = '' OR a.title ILIKE '%' || $3 || '%')
`

	var total int64
	if err := p.QueryRow(ctx, countQ, opts.Source, opts.DuplicatesOnly, opts.TitleQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	const q = `
SELECT
	a.id,
	a.published_at,
	a.source,
	a.title,
	a.url,
	a.tags,
	a.duplicate_of,
	a.created_at
FROM clip.articles a
WHERE ($1 = '' OR a.source = $1)
  AND ($2 = FALSE OR a.duplicate_of <> '')
  AND ($3 = '' OR a.title ILIKE '%' || $3 || '%')
ORDER BY a.id DESC
LIMIT $4 OFFSET $5
`

	rows, err := p.Query(ctx, q, opts.Source, opts.DuplicatesOnly, opts.TitleQuery, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleListItem, 0, opts.Limit)
	for rows.Next() {
		var row ArticleListItem
		if err := rows.Scan(
			&row.ID,
			&row.PublishedAt,
			&row.Source,
			&row.Title,
			&row.URL,
			&row.Tags,
			&row.DuplicateOf,
			&row.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan article row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate article rows: %w", err)
	}
	return items, total, nil
}

// GetArticleByID fetches one full article row.
func (p *Pool) GetArticleByID(ctx context.Context, id int64) (*Article, error) {
	const q = `
SELECT
	a.id,
	a.published_at,
	a.source,
	a.title,
	a.url,
	a.url_canonical,
	a.tags,
	a.title_hash,
	a.simhash,
	a.duplicate_of,
	a.summary,
	a.created_at
FROM clip.articles a
WHERE a.id = $1
`

	var row Article
	if err := p.QueryRow(ctx, q, id).Scan(
		&row.ID,
		&row.PublishedAt,
		&row.Source,
		&row.Title,
		&row.URL,
		&row.URLCanonical,
		&row.Tags,
		&row.TitleHash,
		&row.Simhash,
		&row.DuplicateOf,
		&row.Summary,
		&row.CreatedAt,
	); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query article %d: %w", id, err)
	}
	return &row, nil
}
