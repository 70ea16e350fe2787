package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"horse.fit/whatson/internal/cli"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	refresh := fs.Bool("refresh", false, "Recompute popularity scores and percentiles first")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel, _, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	if *refresh {
		updated, err := pool.RefreshPopularity(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Popularity refresh failed: %v\n", err)
			return 1
		}
		fmt.Printf("popularity refreshed for %d events\n", updated)
	}

	stats, err := pool.CatalogueStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load stats: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to print output: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf("active events:   %d\n", stats.ActiveEvents)
	fmt.Printf("archived events: %d\n", stats.ArchivedEvents)
	fmt.Printf("users:           %d\n", stats.Users)
	fmt.Printf("interactions:    %d\n", stats.Interactions)

	fmt.Println()
	fmt.Println("by source:")
	if err := writeTable([]string{"SOURCE", "EVENTS"}, countRows(stats.Sources)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print output: %v\n", err)
		return 1
	}

	fmt.Println()
	fmt.Println("by category:")
	if err := writeTable([]string{"CATEGORY", "EVENTS"}, countRows(stats.Categories)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print output: %v\n", err)
		return 1
	}
	return 0
}

// countRows renders a name/count map sorted by count descending, name
// ascending on ties.
func countRows(counts map[string]int64) [][]string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprintf("%d", counts[name])})
	}
	return rows
}
