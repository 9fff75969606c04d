package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/clipper/internal/cli"
)

type runListEntry struct {
	RunID          int64  `json:"run_id"`
	StartedAt      string `json:"started_at"`
	FinishedAt     string `json:"finished_at,omitempty"`
	Status         string `json:"status"`
	SourcesScanned int    `json:"sources_scanned"`
	ItemsSeen      int    `json:"items_seen"`
	ItemsInserted  int    `json:"items_inserted"`
	NearDuplicates int    `json:"near_duplicates"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

func runRuns(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	limit := fs.Int("limit", 20, "Maximum runs to return")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "runs does not accept positional arguments")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	runs, err := pool.ListIngestRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query ingest runs: %v\n", err)
		return 1
	}

	entries := make([]runListEntry, 0, len(runs))
	for _, run := range runs {
		entries = append(entries, runListEntry{
			RunID:          run.RunID,
			StartedAt:      formatUTCTimestamp(run.StartedAt),
			FinishedAt:     formatUTCTimestampPtr(run.FinishedAt),
			Status:         run.Status,
			SourcesScanned: run.SourcesScanned,
			ItemsSeen:      run.ItemsSeen,
			ItemsInserted:  run.ItemsInserted,
			NearDuplicates: run.NearDuplicates,
			ErrorMessage:   pointerStringOrEmpty(run.ErrorMessage),
		})
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"items": entries}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", entry.RunID),
			entry.Status,
			entry.StartedAt,
			entry.FinishedAt,
			fmt.Sprintf("%d", entry.SourcesScanned),
			fmt.Sprintf("%d", entry.ItemsSeen),
			fmt.Sprintf("%d", entry.ItemsInserted),
			fmt.Sprintf("%d", entry.NearDuplicates),
			truncateForTable(entry.ErrorMessage, 60),
		})
	}
	if err := writeTable(
		[]string{"run_id", "status", "started_at", "finished_at", "sources", "seen", "inserted", "near_dups", "error"},
		rows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
