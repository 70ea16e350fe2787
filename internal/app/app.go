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
	case "ingest":
		return runIngest(args[1:])
	case "dedup":
		return runDedup(args[1:])
	case "recommend":
		return runRecommend(args[1:])
	case "trending":
		return runTrending(args[1:])
	case "gems":
		return runGems(args[1:])
	case "archive":
		return runArchive(args[1:])
	case "stats":
		return runStats(args[1:])
	case "serve":
		return runServe(args[1:])
	case "daemon":
		return runDaemon(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "whatson CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  whatson <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health     Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  ingest     Validate and ingest scraped listing payloads")
	fmt.Fprintln(os.Stderr, "  dedup      Detect duplicate listings and merge them")
	fmt.Fprintln(os.Stderr, "  recommend  Rank the personalised feed for one user")
	fmt.Fprintln(os.Stderr, "  trending   Rank events by engagement velocity")
	fmt.Fprintln(os.Stderr, "  gems       Surface low-engagement, high-quality events")
	fmt.Fprintln(os.Stderr, "  archive    Archive events whose date range has passed")
	fmt.Fprintln(os.Stderr, "  stats      Show catalogue stats; --refresh recomputes popularity")
	fmt.Fprintln(os.Stderr, "  serve      Start the Echo API server")
	fmt.Fprintln(os.Stderr, "  daemon     Run the periodic dedup/archive/popularity worker")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"whatson <command> -h\" for command-specific flags.")
}
