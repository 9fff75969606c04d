package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/clipper/internal/cli"
	"horse.fit/clipper/internal/db"
	"horse.fit/clipper/internal/globaltime"
)

type statsReport struct {
	Corpus          *db.CorpusStats  `json:"corpus"`
	Sources         []db.SourceCount `json:"sources"`
	IngestedLast24h int64            `json:"ingested_last_24h"`
	LatestRun       *runListEntry    `json:"latest_run,omitempty"`
}

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
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

	report := statsReport{}

	report.Corpus, err = pool.CorpusStatsSnapshot(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query corpus stats: %v\n", err)
		return 1
	}

	report.Sources, err = pool.CountArticlesBySource(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query source counts: %v\n", err)
		return 1
	}

	report.IngestedLast24h, err = pool.CountArticlesSince(ctx, globaltime.UTC().Add(-24*time.Hour))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query recent article count: %v\n", err)
		return 1
	}

	latest, err := pool.LatestIngestRun(ctx)
	if err != nil && !db.IsNoRows(err) {
		fmt.Fprintf(os.Stderr, "Failed to query latest run: %v\n", err)
		return 1
	}
	if latest != nil {
		report.LatestRun = &runListEntry{
			RunID:          latest.RunID,
			StartedAt:      formatUTCTimestamp(latest.StartedAt),
			FinishedAt:     formatUTCTimestampPtr(latest.FinishedAt),
			Status:         latest.Status,
			SourcesScanned: latest.SourcesScanned,
			ItemsSeen:      latest.ItemsSeen,
			ItemsInserted:  latest.ItemsInserted,
			NearDuplicates: latest.NearDuplicates,
			ErrorMessage:   pointerStringOrEmpty(latest.ErrorMessage),
		}
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	lastInserted := ""
	if report.Corpus.LastInsertedAt != nil {
		lastInserted = formatUTCTimestamp(*report.Corpus.LastInsertedAt)
	}
	corpusRows := [][]string{
		{"total_articles", fmt.Sprintf("%d", report.Corpus.TotalArticles)},
		{"near_duplicates", fmt.Sprintf("%d", report.Corpus.NearDuplicates)},
		{"distinct_sources", fmt.Sprintf("%d", report.Corpus.DistinctSources)},
		{"ingested_last_24h", fmt.Sprintf("%d", report.IngestedLast24h)},
		{"last_inserted_at", lastInserted},
	}
	if err := writeTable([]string{"metric", "value"}, corpusRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}

	if len(report.Sources) > 0 {
		fmt.Println()
		sourceRows := make([][]string, 0, len(report.Sources))
		for _, sc := range report.Sources {
			sourceRows = append(sourceRows, []string{
				sc.Source,
				fmt.Sprintf("%d", sc.ArticleCount),
				fmt.Sprintf("%d", sc.NearDuplicates),
			})
		}
		if err := writeTable([]string{"source", "articles", "near_dups"}, sourceRows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
			return 1
		}
	}

	if report.LatestRun != nil {
		fmt.Printf("\nlatest run: id=%d status=%s started=%s inserted=%d near_dups=%d\n",
			report.LatestRun.RunID,
			report.LatestRun.Status,
			report.LatestRun.StartedAt,
			report.LatestRun.ItemsInserted,
			report.LatestRun.NearDuplicates,
		)
	}
	return 0
}
