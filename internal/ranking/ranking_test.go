package ranking

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/normalize"
	"horse.fit/whatson/internal/profile"
	"horse.fit/whatson/internal/vector"
)

var rankNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func newTestRanker() *Ranker {
	extractor := vector.NewExtractor(normalize.New(0), config.DefaultCatalog(), vector.Weights{})
	return NewRanker(extractor, Options{
		SimilarityWeight:      0.60,
		PopularityWeight:      0.20,
		NoveltyWeight:         0.10,
		UrgencyWeight:         0.10,
		SimilarCandidateCap:   50,
		UrgencyHorizonDays:    14,
		TrendingVelocityDays:  7,
		GemMaxFavourites:      5,
		GemMaxViews:           100,
		GemMinPopularityScore: 0.6,
	}, zerolog.Nop())
}

func musicEvent(id string, startIn time.Duration) db.Event {
	return db.Event{
		EventID:   id,
		Category:  "music",
		VenueName: "The Corner Hotel",
		StartAt:   rankNow.Add(startIn),
	}
}

func musicProfile(t *testing.T, r *Ranker) *profile.Profile {
	t.Helper()
	anchor := musicEvent("profile-anchor", 0)
	return &profile.Profile{
		UserID:               "user-1",
		Vector:               r.extractor.Extract(&anchor).Full,
		PopularityPreference: 0.5,
		Confidence:           0.8,
	}
}

func TestForYouEmptyCandidates(t *testing.T) {
	t.Parallel()

	r := newTestRanker()
	scored, err := r.ForYou(musicProfile(t, r), nil, nil, rankNow)
	require.NoError(t, err)
	require.Empty(t, scored)
}

func TestForYouPrefersProfileCategory(t *testing.T) {
	t.Parallel()

	r := newTestRanker()
	candidates := []db.Event{
		{EventID: "ev-comedy", Category: "comedy", VenueName: "The Comics Lounge", StartAt: rankNow.Add(5 * 24 * time.Hour), PopularityPercentile: 0.5},
		{EventID: "ev-music", Category: "music", VenueName: "The Tote", StartAt: rankNow.Add(5 * 24 * time.Hour), PopularityPercentile: 0.5},
	}

	scored, err := r.ForYou(musicProfile(t, r), candidates, nil, rankNow)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	require.Equal(t, "ev-music", scored[0].EventID)
	require.Greater(t, scored[0].Score, scored[1].Score)
}

func TestForYouNoveltyPenalisesFavouriteLookalikes(t *testing.T) {
	t.Parallel()

	r := newTestRanker()
	favourite := musicEvent("ev-favourited", 24*time.Hour)
	lookalike := musicEvent("ev-lookalike", 5*24*time.Hour)
	fresh := db.Event{EventID: "ev-fresh", Category: "music", Subcategories: []string{"Classical"}, VenueName: "Hamer Hall", StartAt: rankNow.Add(5 * 24 * time.Hour)}

	with, err := r.ForYou(musicProfile(t, r), []db.Event{lookalike, fresh}, []db.Event{favourite}, rankNow)
	require.NoError(t, err)
	without, err := r.ForYou(musicProfile(t, r), []db.Event{lookalike, fresh}, nil, rankNow)
	require.NoError(t, err)

	scoreOf := func(scored []Scored, id string) float64 {
		for _, entry := range scored {
			if entry.EventID == id {
				return entry.Score
			}
		}
		t.Fatalf("event %s not scored", id)
		return 0
	}

	drop := scoreOf(without, "ev-lookalike") - scoreOf(with, "ev-lookalike")
	require.Greater(t, drop, 0.0)
	freshDrop := scoreOf(without, "ev-fresh") - scoreOf(with, "ev-fresh")
	require.Greater(t, drop, freshDrop)
}

func TestForYouUrgencyBoostsImminentEvents(t *testing.T) {
	t.Parallel()

	r := newTestRanker()
	candidates := []db.Event{
		musicEvent("ev-next-month", 30*24*time.Hour),
		musicEvent("ev-tonight", 6*time.Hour),
	}

	scored, err := r.ForYou(musicProfile(t, r), candidates, nil, rankNow)
	require.NoError(t, err)
	require.Equal(t, "ev-tonight", scored[0].EventID)
}

func TestTrendingOrdersByEngagement(t *testing.T) {
	t.Parallel()

	r := newTestRanker()
	candidates := []db.Event{
		musicEvent("ev-quiet", 5*24*time.Hour),
		musicEvent("ev-steady", 5*24*time.Hour),
		musicEvent("ev-hot", 5*24*time.Hour),
	}
	candidates[1].ViewCount = 500
	candidates[2].ViewCount = 400
	candidates[2].FavouriteCount = 30

	engagement := map[string]int64{
		"ev-steady": 5,
		"ev-hot":    250,
	}

	scored := r.Trending(candidates, engagement, rankNow)
	require.Len(t, scored, 3)
	require.Equal(t, "ev-hot", scored[0].EventID)
	require.Equal(t, "ev-quiet", scored[2].EventID)
	for _, entry := range scored {
		require.GreaterOrEqual(t, entry.Score, 0.0)
		require.LessOrEqual(t, entry.Score, 1.0)
	}
}

func TestTrendingEmpty(t *testing.T) {
	t.Parallel()

	r := newTestRanker()
	require.Empty(t, r.Trending(nil, nil, rankNow))
}

func TestGemsFilters(t *testing.T) {
	t.Parallel()

	r := newTestRanker()
	quiet := db.Event{EventID: "ev-gem", Category: "music", VenueName: "Hamer Hall", PopularityPercentile: 0.2}
	tooPopular := db.Event{EventID: "ev-famous", Category: "music", VenueName: "Hamer Hall", FavouriteCount: 50, PopularityPercentile: 0.9}
	tooViewed := db.Event{EventID: "ev-viewed", Category: "music", VenueName: "Hamer Hall", ViewCount: 5000}
	lowQuality := db.Event{EventID: "ev-shed", Category: "music", VenueName: "Somewhere Secret", PopularityPercentile: 0.1}

	scored := r.Gems([]db.Event{quiet, tooPopular, tooViewed, lowQuality})
	require.Len(t, scored, 1)
	require.Equal(t, "ev-gem", scored[0].EventID)
	// 0.7 x venue tier (0.95) + 0.3 x percentile (0.2).
	require.InDelta(t, 0.7*0.95+0.3*0.2, scored[0].Score, 1e-9)
}

func TestSimilarSameCategoryOnly(t *testing.T) {
	t.Parallel()

	r := newTestRanker()
	anchor := db.Event{EventID: "ev-anchor", Category: "music", Subcategories: []string{"Jazz"}, VenueName: "The Jazzlab"}
	candidates := []db.Event{
		anchor,
		{EventID: "ev-jazz", Category: "music", Subcategories: []string{"Jazz"}, VenueName: "Bird's Basement"},
		{EventID: "ev-metal", Category: "music", Subcategories: []string{"Metal"}, VenueName: "The Tote"},
		{EventID: "ev-comedy", Category: "comedy", VenueName: "The Comics Lounge"},
	}

	scored, err := r.Similar(&anchor, candidates)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	require.Equal(t, "ev-jazz", scored[0].EventID)
	for _, entry := range scored {
		require.NotEqual(t, anchor.EventID, entry.EventID)
		require.NotEqual(t, "ev-comedy", entry.EventID)
	}
}

func TestSimilarCandidateCap(t *testing.T) {
	t.Parallel()

	extractor := vector.NewExtractor(normalize.New(0), config.DefaultCatalog(), vector.Weights{})
	r := NewRanker(extractor, Options{SimilarCandidateCap: 3}, zerolog.Nop())

	anchor := musicEvent("ev-anchor", 0)
	var candidates []db.Event
	for i := 0; i < 10; i++ {
		candidates = append(candidates, musicEvent("ev-"+string(rune('a'+i)), time.Duration(i)*time.Hour))
	}

	scored, err := r.Similar(&anchor, candidates)
	require.NoError(t, err)
	require.Len(t, scored, 3)
}

func TestUrgencyScore(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1.0, urgencyScore(rankNow.Add(-time.Hour), rankNow, 14))
	require.Equal(t, 0.0, urgencyScore(rankNow.Add(20*24*time.Hour), rankNow, 14))
	mid := urgencyScore(rankNow.Add(7*24*time.Hour), rankNow, 14)
	require.InDelta(t, 0.5, mid, 1e-9)
}

func TestSortScoredDeterministicTies(t *testing.T) {
	t.Parallel()

	scored := []Scored{
		{EventID: "ev-b", Score: 0.5},
		{EventID: "ev-a", Score: 0.5},
		{EventID: "ev-c", Score: 0.9},
	}
	sortScored(scored)
	require.Equal(t, "ev-c", scored[0].EventID)
	require.Equal(t, "ev-a", scored[1].EventID)
	require.Equal(t, "ev-b", scored[2].EventID)
}
