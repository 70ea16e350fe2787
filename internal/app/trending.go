package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/whatson/internal/cli"
	"horse.fit/whatson/internal/globaltime"
	"horse.fit/whatson/internal/logging"
)

func runTrending(args []string) int {
	fs := flag.NewFlagSet("trending", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	limit := fs.Int("limit", 20, "Maximum events to print")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be positive")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel, cfg, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	engines, err := buildCore(cfg, pool, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build engines: %v\n", err)
		return 1
	}

	candidates, err := loadUpcomingEvents(ctx, pool, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load events: %v\n", err)
		return 1
	}

	since := globaltime.UTC().Add(-time.Duration(cfg.TrendingVelocityDays) * 24 * time.Hour)
	engagement, err := pool.EngagementSince(ctx, since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load engagement: %v\n", err)
		return 1
	}

	scored := engines.ranker.Trending(candidates, engagement, globaltime.UTC())
	if err := printRanked(outputFormat, scored, candidates, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print output: %v\n", err)
		return 1
	}
	return 0
}
