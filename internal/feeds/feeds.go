// Package feeds pulls article candidates out of RSS/Atom sources.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"horse.fit/clipper/internal/extconfig"
)

const (
	// maxEntriesPerFeed bounds how much of a feed one run will consider.
	maxEntriesPerFeed = 50

	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "clipper/1.0 (+https://horse.fit/clipper)"
)

// Candidate is one feed entry before any pipeline processing.
type Candidate struct {
	Source    string
	Title     string
	Link      string
	Published string
}

// Options tune feed fetching. Zero values fall back to package defaults.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	parser *gofeed.Parser
	logger zerolog.Logger
}

func NewFetcher(logger zerolog.Logger, opts Options) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = client

	return &Fetcher{
		parser: parser,
		logger: logger.With().Str("component", "feeds").Logger(),
	}
}

// Fetch downloads one source's feed and returns up to maxEntriesPerFeed
// candidates in feed order.
func (f *Fetcher) Fetch(ctx context.Context, source extconfig.Source) ([]Candidate, error) {
	feed, err := f.parser.ParseURLWithContext(source.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %q: %w", source.Name, err)
	}

	items := feed.Items
	if len(items) > maxEntriesPerFeed {
		items = items[:maxEntriesPerFeed]
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			Source:    source.Name,
			Title:     item.Title,
			Link:      strings.TrimSpace(item.Link),
			Published: parseEntryTime(item.Published, item.Updated),
		})
	}

	f.logger.Debug().
		Str("source", source.Name).
		Int("entries", len(candidates)).
		Msg("feed fetched")
	return candidates, nil
}

// parseEntryTime turns a feed timestamp into RFC3339 UTC. Feeds disagree
// wildly on date formats, so parsing is lenient; values without a zone are
// taken as UTC. Unparseable input yields "" rather than an error.
func parseEntryTime(published, updated string) string {
	for _, raw := range []string{published, updated} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		t, err := dateparse.ParseIn(raw, time.UTC)
		if err != nil {
			continue
		}
		return t.UTC().Format(time.RFC3339)
	}
	return ""
}
