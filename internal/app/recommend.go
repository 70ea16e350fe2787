package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/whatson/internal/cli"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/globaltime"
	"horse.fit/whatson/internal/logging"
	"horse.fit/whatson/internal/ranking"
)

// cliCandidatePoolCap bounds how many upcoming events one CLI ranking
// invocation scores.
const cliCandidatePoolCap = 500

func runRecommend(args []string) int {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")
	userID := fs.String("user", "", "User id to build the feed for (required)")
	limit := fs.Int("limit", 20, "Maximum events to print")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *userID == "" {
		fmt.Fprintln(os.Stderr, "--user is required")
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

	user, err := pool.GetUser(ctx, *userID)
	if err != nil && !errors.Is(err, db.ErrNoRows) {
		fmt.Fprintf(os.Stderr, "Failed to load user: %v\n", err)
		return 1
	}

	userProfile, err := engines.profiles.Compute(ctx, *userID, user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to compute profile: %v\n", err)
		return 1
	}

	candidates, err := loadUpcomingEvents(ctx, pool, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load events: %v\n", err)
		return 1
	}

	favouriteIDs, err := pool.RecentFavouriteEventIDs(ctx, *userID, cfg.NoveltyFavouriteWindow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load favourites: %v\n", err)
		return 1
	}
	var favourites []db.Event
	if len(favouriteIDs) > 0 {
		favourites, err = pool.GetEventsByIDs(ctx, favouriteIDs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load favourite events: %v\n", err)
			return 1
		}
	}

	scored, err := engines.ranker.ForYou(userProfile, candidates, favourites, globaltime.UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rank events: %v\n", err)
		return 1
	}

	fmt.Printf("user=%s confidence=%.2f interactions=%d categories=%v\n",
		*userID, userProfile.Confidence, userProfile.InteractionCount, userProfile.DominantCategories)
	if err := printRanked(outputFormat, scored, candidates, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print output: %v\n", err)
		return 1
	}
	return 0
}

func loadUpcomingEvents(ctx context.Context, pool *db.Pool, category string) ([]db.Event, error) {
	now := globaltime.UTC()
	return pool.ListEvents(ctx, db.ListEventsOptions{
		Category: category,
		From:     &now,
		Limit:    cliCandidatePoolCap,
	})
}

type rankedRow struct {
	Score    float64 `json:"score"`
	EventID  string  `json:"event_id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Venue    string  `json:"venue_name"`
	StartAt  string  `json:"start_at"`
}

func printRanked(format string, scored []ranking.Scored, candidates []db.Event, limit int) error {
	byID := make(map[string]*db.Event, len(candidates))
	for i := range candidates {
		byID[candidates[i].EventID] = &candidates[i]
	}

	rows := make([]rankedRow, 0, limit)
	for _, entry := range scored {
		event, ok := byID[entry.EventID]
		if !ok {
			continue
		}
		rows = append(rows, rankedRow{
			Score:    entry.Score,
			EventID:  event.EventID,
			Title:    event.Title,
			Category: event.Category,
			Venue:    event.VenueName,
			StartAt:  formatUTCTimestamp(event.StartAt),
		})
		if len(rows) == limit {
			break
		}
	}

	if format == outputFormatJSON {
		return printJSON(rows)
	}

	tableRows := make([][]string, 0, len(rows))
	for _, row := range rows {
		tableRows = append(tableRows, []string{
			fmt.Sprintf("%.3f", row.Score),
			row.EventID,
			truncateForTable(row.Title, 48),
			row.Category,
			truncateForTable(row.Venue, 32),
			row.StartAt,
		})
	}
	return writeTable([]string{"SCORE", "EVENT ID", "TITLE", "CATEGORY", "VENUE", "START"}, tableRows)
}
