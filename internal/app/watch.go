package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"horse.fit/clipper/internal/cli"
	"horse.fit/clipper/internal/config"
	"horse.fit/clipper/internal/db"
	"horse.fit/clipper/internal/logging"
)

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	schedule := fs.String("schedule", "", "Cron schedule (default from WATCH_SCHEDULE)")
	runTimeout := fs.Duration("run-timeout", 10*time.Minute, "Timeout for each ingest cycle")
	immediate := fs.Bool("immediate", false, "Run one ingest cycle before waiting for the schedule")
	sourcesPath := fs.String("sources", "", "Path to sources JSON (default from SOURCES_PATH)")
	taxonomyPath := fs.String("taxonomy", "", "Path to taxonomy JSON (default from TAXONOMY_PATH)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "watch does not accept positional arguments")
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

	cronSpec := strings.TrimSpace(*schedule)
	if cronSpec == "" {
		cronSpec = cfg.WatchSchedule
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("watch failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	svc, sources, err := newIngestService(cfg, pool, logger, *sourcesPath, *taxonomyPath)
	if err != nil {
		logger.Error().Err(err).Msg("watch setup failed")
		fmt.Fprintf(os.Stderr, "Watch setup failed: %v\n", err)
		return 1
	}

	runCycle := func() {
		ctx, cancel := context.WithTimeout(context.Background(), *runTimeout)
		defer cancel()

		result, err := svc.Run(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("scheduled ingest run failed")
			return
		}
		logger.Info().
			Int64("run_id", result.RunID).
			Int("inserted", result.ItemsInserted).
			Int("near_duplicates", result.NearDuplicates).
			Msg("scheduled ingest run completed")
	}

	cronLog := cronLogAdapter{logger: logger.With().Str("component", "cron").Logger()}
	scheduler := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cronLog), cron.Recover(cronLog)),
	)
	if _, err := scheduler.AddFunc(cronSpec, runCycle); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --schedule %q: %v\n", cronSpec, err)
		return 2
	}

	logger.Info().
		Str("schedule", cronSpec).
		Int("sources", len(sources)).
		Msg("watch started")

	if *immediate {
		runCycle()
	}

	scheduler.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	<-sigCh

	logger.Info().Msg("watch stopping; waiting for running cycle")
	<-scheduler.Stop().Done()
	logger.Info().Msg("watch stopped")
	return 0
}

// cronLogAdapter exposes the zerolog logger through the cron.Logger interface.
type cronLogAdapter struct {
	logger zerolog.Logger
}

func (l cronLogAdapter) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l cronLogAdapter) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
