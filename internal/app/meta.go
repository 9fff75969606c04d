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

func runMeta(args []string) int {
	if len(args) == 0 {
		printMetaUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "-h", "--help":
		printMetaUsage()
		return 0
	case "list":
		return runMetaList(args[1:])
	case "get":
		return runMetaGet(args[1:])
	case "set":
		return runMetaSet(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown meta action: %s\n\n", args[0])
		printMetaUsage()
		return 2
	}
}

func runMetaList(args []string) int {
	fs := flag.NewFlagSet("meta list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	entries, err := pool.ListMeta(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query run meta: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(entries); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.Key,
			truncateForTable(entry.Value, 80),
			formatUTCTimestamp(entry.UpdatedAt),
		})
	}
	if err := writeTable([]string{"key", "value", "updated_at"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func runMetaGet(args []string) int {
	fs := flag.NewFlagSet("meta get", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	key := fs.String("key", "", "Meta key to read")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*key) == "" {
		fmt.Fprintln(os.Stderr, "--key is required")
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	value, err := pool.GetMeta(ctx, strings.TrimSpace(*key))
	if err != nil {
		if errors.Is(err, db.ErrMetaNotFound) {
			fmt.Fprintf(os.Stderr, "Meta key %q not found\n", strings.TrimSpace(*key))
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to read meta key: %v\n", err)
		return 1
	}

	fmt.Println(value)
	return 0
}

func runMetaSet(args []string) int {
	fs := flag.NewFlagSet("meta set", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	key := fs.String("key", "", "Meta key to write")
	value := fs.String("value", "", "Value to store")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*key) == "" {
		fmt.Fprintln(os.Stderr, "--key is required")
		return 2
	}

	ctx, cancel, pool, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	trimmedKey := strings.TrimSpace(*key)
	if err := pool.SetMeta(ctx, trimmedKey, *value); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set meta key: %v\n", err)
		return 1
	}

	fmt.Printf("ok: %s=%s\n", trimmedKey, *value)
	return 0
}

func printMetaUsage() {
	fmt.Fprintln(os.Stderr, "clipper meta")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  clipper meta <action> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Actions:")
	fmt.Fprintln(os.Stderr, "  list   Show all run meta keys")
	fmt.Fprintln(os.Stderr, "  get    Print one key's value (--key)")
	fmt.Fprintln(os.Stderr, "  set    Write one key (--key, --value)")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Pipeline keys: max_hamming, recent_sim_n, fetch_timeout_sec, rss_enabled")
}
