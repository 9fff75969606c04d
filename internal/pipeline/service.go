// Package pipeline runs the ingest cycle: pull feed candidates, classify
// them against the taxonomy, drop exact duplicates, fetch and summarize the
// survivors, fingerprint them, flag near duplicates against the recent
// window, and append the batch to storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/clipper/internal/classify"
	"horse.fit/clipper/internal/db"
	"horse.fit/clipper/internal/dedup"
	"horse.fit/clipper/internal/extconfig"
	"horse.fit/clipper/internal/feeds"
	"horse.fit/clipper/internal/globaltime"
	"horse.fit/clipper/internal/langdetect"
	"horse.fit/clipper/internal/simhash"
	"horse.fit/clipper/internal/summary"
	"horse.fit/clipper/internal/textnorm"
)

const (
	DefaultMaxHamming      = 6
	DefaultRecentWindow    = 800
	DefaultFetchTimeoutSec = 10

	metaKeyMaxHamming        = "max_hamming"
	metaKeyRecentSimN        = "recent_sim_n"
	metaKeyFetchTimeoutSec   = "fetch_timeout_sec"
	metaKeyRSSEnabled        = "rss_enabled"
	metaKeyLastRunAt         = "last_run_at"
	metaKeyLastInsertedCount = "last_inserted_count"
	metaKeyLastError         = "last_error"

	maxStoredErrorLength = 4000
)

type decisionKind string

const (
	decisionDropEmpty          decisionKind = "drop_empty"
	decisionDropNegativeHint   decisionKind = "drop_negative_hint"
	decisionDropNoCategory     decisionKind = "drop_no_category"
	decisionDropDuplicateURL   decisionKind = "drop_duplicate_url"
	decisionDropDuplicateTitle decisionKind = "drop_duplicate_title"
	decisionAcceptUnique       decisionKind = "accept_unique"
	decisionAcceptNearDup      decisionKind = "accept_near_duplicate"
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	SelectDedupKeys(ctx context.Context) ([]db.DedupKey, error)
	SelectRecentFingerprints(ctx context.Context, limit int) ([]db.FingerprintRow, error)
	AppendArticles(ctx context.Context, articles []db.Article) error
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	InsertIngestRun(ctx context.Context, startedAt time.Time) (int64, error)
	MarkIngestRunCompleted(ctx context.Context, runID int64, finishedAt time.Time, counts db.IngestRunCounts) error
	MarkIngestRunFailed(ctx context.Context, runID int64, finishedAt time.Time, message string) error
}

// FeedFetcher pulls candidates out of one source's feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, source extconfig.Source) ([]feeds.Candidate, error)
}

// ArticleFetcher retrieves one article's readable text. The timeout comes
// from run configuration, not from the fetcher.
type ArticleFetcher interface {
	FetchText(ctx context.Context, pageURL string, timeout time.Duration) (string, error)
}

// Options carries the run-independent pipeline inputs.
type Options struct {
	Sources    []extconfig.Source
	Taxonomy   *classify.Taxonomy
	FetchDelay time.Duration
}

type Service struct {
	store    Store
	feeds    FeedFetcher
	reader   ArticleFetcher
	sources  []extconfig.Source
	taxonomy *classify.Taxonomy
	logger   zerolog.Logger

	fetchDelay time.Duration
	sleep      func(time.Duration)
}

func NewService(store Store, feedFetcher FeedFetcher, articleFetcher ArticleFetcher, logger zerolog.Logger, opts Options) *Service {
	return &Service{
		store:      store,
		feeds:      feedFetcher,
		reader:     articleFetcher,
		sources:    opts.Sources,
		taxonomy:   opts.Taxonomy,
		logger:     logger.With().Str("component", "pipeline").Logger(),
		fetchDelay: opts.FetchDelay,
		sleep:      time.Sleep,
	}
}

// RunResult is the tally of one ingest run.
type RunResult struct {
	RunID          int64
	SourcesScanned int
	ItemsSeen      int
	ItemsInserted  int
	NearDuplicates int
}

// runConfig is read from run_meta at the start of each run. Missing or
// malformed keys fall back to the built-in defaults; only storage failures
// abort the run.
type runConfig struct {
	maxHamming   int
	recentWindow int
	fetchTimeout time.Duration
	rssEnabled   bool
}

// Run executes one full ingest cycle and records its outcome in the run
// ledger and run_meta. The returned error is the run's failure, if any;
// bookkeeping for it has already been written by the time Run returns.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	startedAt := globaltime.UTC()
	runID, err := s.store.InsertIngestRun(ctx, startedAt)
	if err != nil {
		return RunResult{}, fmt.Errorf("open run ledger: %w", err)
	}

	result := RunResult{RunID: runID}
	runErr := s.run(ctx, &result)
	finishedAt := globaltime.UTC()

	if runErr != nil {
		s.recordFailure(ctx, runID, finishedAt, runErr)
		return result, runErr
	}

	if err := s.recordSuccess(ctx, runID, finishedAt, result); err != nil {
		return result, err
	}

	s.logger.Info().
		Int64("run_id", runID).
		Int("sources", result.SourcesScanned).
		Int("seen", result.ItemsSeen).
		Int("inserted", result.ItemsInserted).
		Int("near_duplicates", result.NearDuplicates).
		Dur("took", globaltime.Since(startedAt)).
		Msg("ingest run completed")
	return result, nil
}

func (s *Service) run(ctx context.Context, result *RunResult) error {
	cfg, err := s.loadRunConfig(ctx)
	if err != nil {
		return err
	}
	if !cfg.rssEnabled {
		s.logger.Info().Msg("rss ingest disabled via run meta; nothing to do")
		return nil
	}

	index, err := s.buildIndex(ctx, cfg.recentWindow)
	if err != nil {
		return err
	}

	var accepted []db.Article
	for _, source := range s.sources {
		candidates, err := s.feeds.Fetch(ctx, source)
		if err != nil {
			s.logger.Warn().Err(err).Str("source", source.Name).Msg("feed fetch failed; skipping source")
			continue
		}
		result.SourcesScanned++

		for _, cand := range candidates {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.ItemsSeen++

			record, decision := s.process(ctx, cfg, index, source, cand)
			if record == nil {
				s.logger.Debug().
					Str("decision", string(decision)).
					Str("source", cand.Source).
					Str("title", cand.Title).
					Msg("candidate dropped")
				continue
			}

			s.logger.Info().
				Str("decision", string(decision)).
				Str("source", record.Source).
				Str("title", record.Title).
				Str("duplicate_of", record.DuplicateOf).
				Msg("article accepted")

			if record.DuplicateOf != "" {
				result.NearDuplicates++
			}
			accepted = append(accepted, *record)
		}
	}

	if err := s.store.AppendArticles(ctx, accepted); err != nil {
		return fmt.Errorf("append accepted articles: %w", err)
	}
	result.ItemsInserted = len(accepted)
	return nil
}

// process walks one candidate through the decision cascade. A nil record
// means the candidate was dropped; otherwise the record has been added to
// the in-memory index so later candidates in the same run dedup against it.
func (s *Service) process(ctx context.Context, cfg runConfig, index *dedup.Index, source extconfig.Source, cand feeds.Candidate) (*db.Article, decisionKind) {
	title := textnorm.NormalizeWS(cand.Title)
	canonical := textnorm.CanonicalizeURL(cand.Link)
	if title == "" || canonical == "" {
		return nil, decisionDropEmpty
	}

	if s.taxonomy.HasNegativeHint(title) {
		return nil, decisionDropNegativeHint
	}
	tags := s.taxonomy.Tags(title)
	if len(tags) == 0 {
		return nil, decisionDropNoCategory
	}

	// Exact duplicates are settled before any body fetch.
	if index.ContainsURL(canonical) {
		return nil, decisionDropDuplicateURL
	}
	titleHash := textnorm.TitleHash(title)
	if index.ContainsTitleHash(titleHash) {
		return nil, decisionDropDuplicateTitle
	}

	body := s.fetchBody(ctx, cfg, cand.Link)
	summaryText := summary.Extract(body)

	var simhashValue string
	var duplicateOf string
	fingerprint, hasFingerprint := simhash.FromText(title + " " + summaryText)
	if hasFingerprint {
		simhashValue = simhash.FormatFingerprint(fingerprint)
		if matchURL, found := index.FindNearDuplicate(fingerprint, cfg.maxHamming); found {
			duplicateOf = matchURL
		}
	}

	record := &db.Article{
		PublishedAt:  cand.Published,
		Source:       cand.Source,
		Title:        title,
		URL:          cand.Link,
		URLCanonical: canonical,
		Tags:         strings.Join(tags, ","),
		TitleHash:    titleHash,
		Simhash:      simhashValue,
		DuplicateOf:  duplicateOf,
		Summary:      summaryText,
	}

	index.Insert(dedup.Entry{
		CanonicalURL:   canonical,
		TitleHash:      titleHash,
		Fingerprint:    fingerprint,
		HasFingerprint: hasFingerprint,
		RawURL:         cand.Link,
	})

	s.checkLanguage(source, record)

	if duplicateOf != "" {
		return record, decisionAcceptNearDup
	}
	return record, decisionAcceptUnique
}

// fetchBody downloads and extracts one article body. Failures degrade to an
// empty body. The politeness delay applies after every attempt, failed ones
// included, so a struggling host is not hammered.
func (s *Service) fetchBody(ctx context.Context, cfg runConfig, pageURL string) string {
	text, err := s.reader.FetchText(ctx, pageURL, cfg.fetchTimeout)
	if s.fetchDelay > 0 {
		s.sleep(s.fetchDelay)
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("url", pageURL).Msg("body fetch failed; continuing with empty text")
		return ""
	}
	return text
}

func (s *Service) checkLanguage(source extconfig.Source, record *db.Article) {
	detected := langdetect.DetectISO6391(record.Title + " " + record.Summary)
	if detected == "" {
		return
	}
	if source.Language != "" && detected != source.Language {
		s.logger.Warn().
			Str("source", source.Name).
			Str("expected", source.Language).
			Str("detected", detected).
			Str("url", record.URL).
			Msg("article language differs from source expectation")
		return
	}
	s.logger.Debug().
		Str("source", source.Name).
		Str("language", detected).
		Msg("article language detected")
}

func (s *Service) buildIndex(ctx context.Context, windowSize int) (*dedup.Index, error) {
	index := dedup.NewIndex(windowSize)

	keys, err := s.store.SelectDedupKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed dedup keys: %w", err)
	}
	for _, key := range keys {
		index.AddURL(key.URLCanonical)
		index.AddTitleHash(key.TitleHash)
	}

	rows, err := s.store.SelectRecentFingerprints(ctx, windowSize)
	if err != nil {
		return nil, fmt.Errorf("seed recent fingerprints: %w", err)
	}
	skipped := 0
	for _, row := range rows {
		fingerprint, err := simhash.ParseFingerprint(row.Simhash)
		if err != nil {
			skipped++
			continue
		}
		index.AppendFingerprint(fingerprint, row.URL)
	}

	s.logger.Debug().
		Int("keys", len(keys)).
		Int("window", index.WindowLen()).
		Int("skipped", skipped).
		Msg("dedup index rebuilt")
	return index, nil
}

func (s *Service) loadRunConfig(ctx context.Context) (runConfig, error) {
	cfg := runConfig{
		maxHamming:   DefaultMaxHamming,
		recentWindow: DefaultRecentWindow,
		fetchTimeout: DefaultFetchTimeoutSec * time.Second,
		rssEnabled:   true,
	}

	maxHamming, err := s.metaInt(ctx, metaKeyMaxHamming, DefaultMaxHamming)
	if err != nil {
		return cfg, err
	}
	if maxHamming >= 0 && maxHamming <= 64 {
		cfg.maxHamming = maxHamming
	} else {
		s.logger.Warn().Int("value", maxHamming).Msg("max_hamming out of range; using default")
	}

	recentWindow, err := s.metaInt(ctx, metaKeyRecentSimN, DefaultRecentWindow)
	if err != nil {
		return cfg, err
	}
	if recentWindow >= 0 {
		cfg.recentWindow = recentWindow
	} else {
		s.logger.Warn().Int("value", recentWindow).Msg("recent_sim_n out of range; using default")
	}

	timeoutSec, err := s.metaInt(ctx, metaKeyFetchTimeoutSec, DefaultFetchTimeoutSec)
	if err != nil {
		return cfg, err
	}
	if timeoutSec >= 1 {
		cfg.fetchTimeout = time.Duration(timeoutSec) * time.Second
	} else {
		s.logger.Warn().Int("value", timeoutSec).Msg("fetch_timeout_sec out of range; using default")
	}

	rssEnabled, err := s.metaBool(ctx, metaKeyRSSEnabled, true)
	if err != nil {
		return cfg, err
	}
	cfg.rssEnabled = rssEnabled

	return cfg, nil
}

func (s *Service) metaInt(ctx context.Context, key string, fallback int) (int, error) {
	raw, err := s.store.GetMeta(ctx, key)
	if errors.Is(err, db.ErrMetaNotFound) {
		s.logger.Debug().Str("key", key).Int("default", fallback).Msg("run meta missing; using default")
		return fallback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load run meta %q: %w", key, err)
	}

	value, convErr := strconv.Atoi(strings.TrimSpace(raw))
	if convErr != nil {
		s.logger.Warn().Str("key", key).Str("value", raw).Int("default", fallback).Msg("run meta malformed; using default")
		return fallback, nil
	}
	return value, nil
}

func (s *Service) metaBool(ctx context.Context, key string, fallback bool) (bool, error) {
	raw, err := s.store.GetMeta(ctx, key)
	if errors.Is(err, db.ErrMetaNotFound) {
		s.logger.Debug().Str("key", key).Bool("default", fallback).Msg("run meta missing; using default")
		return fallback, nil
	}
	if err != nil {
		return false, fmt.Errorf("load run meta %q: %w", key, err)
	}

	value, convErr := strconv.ParseBool(strings.TrimSpace(raw))
	if convErr != nil {
		s.logger.Warn().Str("key", key).Str("value", raw).Bool("default", fallback).Msg("run meta malformed; using default")
		return fallback, nil
	}
	return value, nil
}

func (s *Service) recordSuccess(ctx context.Context, runID int64, finishedAt time.Time, result RunResult) error {
	if err := s.store.SetMeta(ctx, metaKeyLastRunAt, finishedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record last_run_at: %w", err)
	}
	if err := s.store.SetMeta(ctx, metaKeyLastInsertedCount, strconv.Itoa(result.ItemsInserted)); err != nil {
		return fmt.Errorf("record last_inserted_count: %w", err)
	}
	if err := s.store.SetMeta(ctx, metaKeyLastError, ""); err != nil {
		return fmt.Errorf("record last_error: %w", err)
	}

	counts := db.IngestRunCounts{
		SourcesScanned: result.SourcesScanned,
		ItemsSeen:      result.ItemsSeen,
		ItemsInserted:  result.ItemsInserted,
		NearDuplicates: result.NearDuplicates,
	}
	if err := s.store.MarkIngestRunCompleted(ctx, runID, finishedAt, counts); err != nil {
		return fmt.Errorf("close run ledger: %w", err)
	}
	return nil
}

// recordFailure writes the failure into run_meta and the ledger. Bookkeeping
// errors are logged rather than returned so they never mask the run error.
func (s *Service) recordFailure(ctx context.Context, runID int64, finishedAt time.Time, runErr error) {
	message := runErr.Error()
	if len(message) > maxStoredErrorLength {
		message = message[:maxStoredErrorLength]
	}

	if err := s.store.SetMeta(ctx, metaKeyLastError, message); err != nil {
		s.logger.Error().Err(err).Msg("record last_error failed")
	}
	if err := s.store.SetMeta(ctx, metaKeyLastRunAt, finishedAt.Format(time.RFC3339)); err != nil {
		s.logger.Error().Err(err).Msg("record last_run_at failed")
	}
	if err := s.store.MarkIngestRunFailed(ctx, runID, finishedAt, message); err != nil {
		s.logger.Error().Err(err).Msg("mark run failed errored")
	}

	s.logger.Error().Err(runErr).Int64("run_id", runID).Msg("ingest run failed")
}
