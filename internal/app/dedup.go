package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/whatson/internal/cli"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/dedup"
	"horse.fit/whatson/internal/logging"
	"horse.fit/whatson/internal/metrics"
)

func runDedup(args []string) int {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	dryRun := fs.Bool("dry-run", false, "Report matches without applying merges")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "dedup does not accept positional arguments")
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

	summary, err := runDedupPass(ctx, pool, engines, logger, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dedup pass failed: %v\n", err)
		return 1
	}

	fmt.Printf("scanned=%d skipped=%d compared=%d quick_rejected=%d matches=%d merges=%d stale=%d dry_run=%t\n",
		summary.EventsScanned, summary.EventsSkipped, summary.PairsCompared, summary.PairsQuickRejected,
		summary.MatchesFound, summary.MergesApplied, summary.MergesSkippedStale, *dryRun)
	for _, match := range summary.Matches {
		fmt.Printf("  %s <-> %s confidence=%.2f %s\n", match.EventID1, match.EventID2, match.Confidence, match.Reason)
	}
	return 0
}

// dedupSummary aggregates one pass for the CLI and the daemon loop.
type dedupSummary struct {
	EventsScanned      int
	EventsSkipped      int
	PairsCompared      int
	PairsQuickRejected int
	MatchesFound       int
	MergesApplied      int
	MergesSkippedStale int
	Matches            []dedup.Match
}

// runDedupPass loads the active catalogue, detects duplicates, and (unless
// dry-run) applies the merges inside one pass. The caller serialises passes;
// merges mutate the canonical store. A failed merge is logged and skipped,
// never fatal to the pass.
func runDedupPass(ctx context.Context, pool *db.Pool, engines *core, logger zerolog.Logger, dryRun bool) (*dedupSummary, error) {
	events, err := pool.ListDedupCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dedup candidates: %w", err)
	}

	byID := make(map[string]*db.Event, len(events))
	projected := make([]dedup.Event, 0, len(events))
	for i := range events {
		event := &events[i]
		byID[event.EventID] = event
		projected = append(projected, dedup.Event{
			EventID:       event.EventID,
			Title:         event.Title,
			VenueName:     event.VenueName,
			Source:        event.PrimarySource,
			Category:      event.Category,
			StartAt:       event.StartAt,
			EndAt:         event.EndAt,
			PriceMin:      event.PriceMin,
			Description:   event.Description,
			ImageURL:      event.ImageURL,
			Accessibility: event.Accessibility,
		})
	}

	result := engines.engine.FindDuplicates(projected)
	summary := &dedupSummary{
		EventsScanned:      result.EventsScanned,
		EventsSkipped:      result.EventsSkipped,
		PairsCompared:      result.PairsCompared,
		PairsQuickRejected: result.PairsQuickRejected,
		MatchesFound:       len(result.Matches),
		Matches:            result.Matches,
	}

	if dryRun || len(result.Matches) == 0 {
		return summary, nil
	}

	run, err := pool.CreateDedupRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("create dedup run: %w", err)
	}

	absorbed := make(map[string]struct{})
	for _, match := range result.Matches {
		// A pair referencing an event absorbed earlier in this pass is
		// stale; the survivor will be re-compared next pass.
		if _, gone := absorbed[match.EventID1]; gone {
			summary.MergesSkippedStale++
			metrics.MergesSkippedStale.Inc()
			continue
		}
		if _, gone := absorbed[match.EventID2]; gone {
			summary.MergesSkippedStale++
			metrics.MergesSkippedStale.Inc()
			continue
		}

		a, b := byID[match.EventID1], byID[match.EventID2]
		if a == nil || b == nil {
			summary.MergesSkippedStale++
			metrics.MergesSkippedStale.Inc()
			continue
		}

		primary := engines.resolver.SelectPrimary(a, b)
		secondary := b
		if primary == b {
			secondary = a
		}

		merged := engines.resolver.Merge(primary, secondary)
		record := &db.MergeRecord{
			RunID:           run.RunID,
			PrimaryEventID:  primary.EventID,
			AbsorbedEventID: secondary.EventID,
			Confidence:      match.Confidence,
			Reason:          match.Reason,
		}
		if err := pool.ApplyMerge(ctx, merged, secondary.EventID, record); err != nil {
			logger.Error().Err(err).
				Str("primary_event_id", primary.EventID).
				Str("absorbed_event_id", secondary.EventID).
				Msg("merge failed")
			continue
		}

		absorbed[secondary.EventID] = struct{}{}
		byID[merged.EventID] = merged
		summary.MergesApplied++
		metrics.MergesApplied.Inc()
		logger.Info().
			Str("primary_event_id", primary.EventID).
			Str("absorbed_event_id", secondary.EventID).
			Float64("confidence", match.Confidence).
			Msg("merged duplicate listing")
	}

	run.Status = "completed"
	run.EventsScanned = summary.EventsScanned
	run.EventsSkipped = summary.EventsSkipped
	run.PairsCompared = summary.PairsCompared
	run.MatchesFound = summary.MatchesFound
	run.MergesApplied = summary.MergesApplied
	if err := pool.FinishDedupRun(ctx, run); err != nil {
		return nil, fmt.Errorf("finish dedup run: %w", err)
	}

	return summary, nil
}
