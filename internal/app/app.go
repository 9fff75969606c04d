// Package app implements the clipper CLI commands.
package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "ingest", "run-once":
		return runIngest(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "serve":
		return runServe(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "meta":
		return runMeta(args[1:])
	case "articles":
		return runArticles(args[1:])
	case "runs":
		return runRuns(args[1:])
	case "stats":
		return runStats(args[1:])
	case "daemon":
		return runDaemon(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "clipper CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  clipper <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  ingest    Run one feed ingest cycle")
	fmt.Fprintln(os.Stderr, "  run-once  Alias for ingest")
	fmt.Fprintln(os.Stderr, "  watch     Run ingest cycles on a cron schedule")
	fmt.Fprintln(os.Stderr, "  serve     Start the read-only JSON API server")
	fmt.Fprintln(os.Stderr, "  validate  Validate the sources and taxonomy config files")
	fmt.Fprintln(os.Stderr, "  meta      Inspect or set run meta keys")
	fmt.Fprintln(os.Stderr, "  articles  List stored articles")
	fmt.Fprintln(os.Stderr, "  runs      List recent ingest runs")
	fmt.Fprintln(os.Stderr, "  stats     Show corpus statistics")
	fmt.Fprintln(os.Stderr, "  daemon    Manage systemd units for serve and watch")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"clipper <command> -h\" for command-specific flags.")
}
