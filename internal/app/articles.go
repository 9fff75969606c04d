package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/clipper/internal/cli"
	"horse.fit/clipper/internal/db"
)

func runArticles(args []string) int {
	fs := flag.NewFlagSet("articles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	source := fs.String("source", "", "Filter by source name")
	query := fs.String("q", "", "Filter by title substring")
	duplicatesOnly := fs.Bool("duplicates", false, "Only show near-duplicate articles")
	limit := fs.Int("limit", 50, "Maximum articles to return")
	offset := fs.Int("offset", 0, "Rows to skip")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "articles does not accept positional arguments")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	if *offset < 0 {
		fmt.Fprintln(os.Stderr, "--offset must be >= 0")
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

	items, total, err := pool.ListArticles(ctx, db.ArticleListOptions{
		Source:         strings.TrimSpace(*source),
		DuplicatesOnly: *duplicatesOnly,
		TitleQuery:     strings.TrimSpace(*query),
		Limit:          *limit,
		Offset:         *offset,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query articles: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"items": items, "total": total}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			truncateForTable(item.Title, 70),
			item.Source,
			truncateForTable(item.Tags, 30),
			truncateForTable(item.DuplicateOf, 40),
			item.PublishedAt,
			formatUTCTimestamp(item.CreatedAt),
		})
	}
	if err := writeTable(
		[]string{"id", "title", "source", "tags", "duplicate_of", "published_at", "created_at"},
		rows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}

	fmt.Printf("total=%d shown=%d\n", total, len(items))
	return 0
}
