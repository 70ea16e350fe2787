package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/whatson/internal/cli"
	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/globaltime"
	"horse.fit/whatson/internal/logging"
)

// runDaemon runs the catalogue maintenance loop: each tick detects and merges
// duplicates, archives past events, and refreshes popularity percentiles.
func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	interval := fs.Duration("interval", 0, "Maintenance interval (overrides WO_DAEMON_INTERVAL)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon does not accept positional arguments")
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
	if *interval > 0 {
		cfg.DaemonInterval = *interval
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("daemon failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	engines, err := buildCore(cfg, pool, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build engines: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	logger.Info().Dur("interval", cfg.DaemonInterval).Msg("maintenance daemon started")

	ticker := time.NewTicker(cfg.DaemonInterval)
	defer ticker.Stop()

	runMaintenancePass(ctx, pool, engines, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("maintenance daemon stopped")
			return 0
		case <-ticker.C:
			runMaintenancePass(ctx, pool, engines, logger)
		}
	}
}

// runMaintenancePass never aborts the daemon; each stage logs its own failure
// and the next tick retries.
func runMaintenancePass(ctx context.Context, pool *db.Pool, engines *core, logger zerolog.Logger) {
	started := globaltime.UTC()

	summary, err := runDedupPass(ctx, pool, engines, logger, false)
	if err != nil {
		logger.Error().Err(err).Msg("dedup pass failed")
	} else {
		logger.Info().
			Int("events_scanned", summary.EventsScanned).
			Int("pairs_compared", summary.PairsCompared).
			Int("matches_found", summary.MatchesFound).
			Int("merges_applied", summary.MergesApplied).
			Int("merges_skipped_stale", summary.MergesSkippedStale).
			Msg("dedup pass finished")
	}

	archived, err := pool.ArchivePastEvents(ctx, globaltime.UTC())
	if err != nil {
		logger.Error().Err(err).Msg("archive pass failed")
	} else if archived > 0 {
		logger.Info().Int64("archived", archived).Msg("archived past events")
	}

	refreshed, err := pool.RefreshPopularity(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("popularity refresh failed")
	} else {
		logger.Info().Int64("events", refreshed).Msg("popularity refreshed")
	}

	logger.Info().Dur("elapsed", globaltime.UTC().Sub(started)).Msg("maintenance pass complete")
}
