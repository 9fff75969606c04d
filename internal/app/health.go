package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/clipper/internal/cli"
	"horse.fit/clipper/internal/config"
	"horse.fit/clipper/internal/db"
	"horse.fit/clipper/internal/logging"
)

// runHealth checks that the database answers and reports when the pipeline
// last ran and whether that run left an error behind.
func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Database ping timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("health check failed")
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	fmt.Println("ok: database ping successful")

	lastRunAt, err := pool.GetMeta(ctx, "last_run_at")
	switch {
	case errors.Is(err, db.ErrMetaNotFound):
		fmt.Println("note: no ingest run recorded yet")
	case err != nil:
		fmt.Fprintf(os.Stderr, "Warning: failed to read last_run_at: %v\n", err)
	default:
		fmt.Printf("ok: last ingest run at %s\n", lastRunAt)
	}

	lastError, err := pool.GetMeta(ctx, "last_error")
	if err == nil && lastError != "" {
		fmt.Printf("warn: last run recorded an error: %s\n", lastError)
	}

	logger.Info().
		Dur("timeout", *timeout).
		Msg("database health check passed")
	return 0
}
