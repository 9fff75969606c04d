package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/clipper/internal/cli"
	"horse.fit/clipper/internal/config"
	"horse.fit/clipper/internal/db"
	"horse.fit/clipper/internal/extconfig"
	"horse.fit/clipper/internal/feeds"
	"horse.fit/clipper/internal/logging"
	"horse.fit/clipper/internal/pipeline"
	"horse.fit/clipper/internal/reader"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	sourcesPath := fs.String("sources", "", "Path to sources JSON (default from SOURCES_PATH)")
	taxonomyPath := fs.String("taxonomy", "", "Path to taxonomy JSON (default from TAXONOMY_PATH)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "ingest does not accept positional arguments")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("ingest command failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc, sources, err := newIngestService(cfg, pool, logger, *sourcesPath, *taxonomyPath)
	if err != nil {
		logger.Error().Err(err).Msg("ingest setup failed")
		fmt.Fprintf(os.Stderr, "Ingest setup failed: %v\n", err)
		return 1
	}

	result, err := svc.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("ingest failed")
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	logger.Info().
		Int("sources_configured", len(sources)).
		Int("sources_scanned", result.SourcesScanned).
		Int("items_seen", result.ItemsSeen).
		Int("inserted", result.ItemsInserted).
		Int("near_duplicates", result.NearDuplicates).
		Msg("ingest completed")
	fmt.Printf(
		"ingest run_id=%d sources_scanned=%d items_seen=%d inserted=%d near_duplicates=%d\n",
		result.RunID,
		result.SourcesScanned,
		result.ItemsSeen,
		result.ItemsInserted,
		result.NearDuplicates,
	)
	return 0
}

// newIngestService wires the feed fetcher, body fetcher, and config files
// into a pipeline service. Shared by ingest and watch.
func newIngestService(cfg *config.Config, pool *db.Pool, logger zerolog.Logger, sourcesPath, taxonomyPath string) (*pipeline.Service, []extconfig.Source, error) {
	resolvedSources := strings.TrimSpace(sourcesPath)
	if resolvedSources == "" {
		resolvedSources = cfg.SourcesPath
	}
	resolvedTaxonomy := strings.TrimSpace(taxonomyPath)
	if resolvedTaxonomy == "" {
		resolvedTaxonomy = cfg.TaxonomyPath
	}

	sources, err := extconfig.LoadSources(resolvedSources)
	if err != nil {
		return nil, nil, fmt.Errorf("load sources config: %w", err)
	}
	taxonomy, err := extconfig.LoadTaxonomy(resolvedTaxonomy)
	if err != nil {
		return nil, nil, fmt.Errorf("load taxonomy config: %w", err)
	}

	feedFetcher := feeds.NewFetcher(logger, feeds.Options{UserAgent: cfg.FetchUserAgent})
	articleFetcher := &reader.Fetcher{UserAgent: cfg.FetchUserAgent}

	svc := pipeline.NewService(pool, feedFetcher, articleFetcher, logger, pipeline.Options{
		Sources:    sources,
		Taxonomy:   taxonomy,
		FetchDelay: cfg.FetchDelay,
	})
	return svc, sources, nil
}
