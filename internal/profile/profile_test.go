package profile

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/globaltime"
	"horse.fit/whatson/internal/normalize"
	"horse.fit/whatson/internal/taxonomy"
	"horse.fit/whatson/internal/vector"
)

// fakeStore serves a fixed interaction history and event set.
type fakeStore struct {
	interactions []db.UserInteraction
	events       []db.Event
}

func (f *fakeStore) RecentInteractionsByUser(_ context.Context, _ string, since time.Time, limit int) ([]db.UserInteraction, error) {
	out := make([]db.UserInteraction, 0, len(f.interactions))
	for _, interaction := range f.interactions {
		if interaction.OccurredAt.Before(since) {
			continue
		}
		out = append(out, interaction)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) GetEventsByIDs(_ context.Context, eventIDs []string) ([]db.Event, error) {
	wanted := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		wanted[id] = struct{}{}
	}
	var out []db.Event
	for _, event := range f.events {
		if _, ok := wanted[event.EventID]; ok {
			out = append(out, event)
		}
	}
	return out, nil
}

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func newTestBuilder(store Store) *Builder {
	extractor := vector.NewExtractor(normalize.New(0), config.DefaultCatalog(), vector.Weights{})
	return NewBuilder(store, extractor, Options{
		DecayHalfLifeDays:    30,
		ExplicitBlendWeight:  0.30,
		ColdStartConfidence:  0.3,
		ConfidenceSaturation: 20,
		MaxInteractions:      200,
		LookbackDays:         182,
		FavouriteWeight:      1.0,
		ClickthroughWeight:   0.6,
		ViewWeight:           0.2,
		UnfavouriteWeight:    -0.5,
	}, zerolog.Nop())
}

func jazzEvent(id string) db.Event {
	return db.Event{
		EventID:       id,
		Category:      "music",
		Subcategories: []string{"Jazz"},
		VenueName:     "The Jazzlab",
	}
}

func TestComputeColdStart(t *testing.T) {
	globaltime.SetMockTime(testNow)
	defer globaltime.ResetTime()

	builder := newTestBuilder(&fakeStore{})
	user := &db.User{
		UserID: "user-1",
		Preferences: db.Preferences{
			Categories:    map[string]float64{"music": 1.0, "comedy": 0.5},
			Subcategories: []string{"Jazz"},
		},
	}

	profile, err := builder.Compute(context.Background(), "user-1", user)
	require.NoError(t, err)
	require.Equal(t, 0.3, profile.Confidence)
	require.Zero(t, profile.InteractionCount)
	require.Equal(t, []string{"music", "comedy"}, profile.DominantCategories)
	require.Contains(t, profile.DominantSubcategories, "Jazz")
	require.Equal(t, 0.5, profile.PopularityPreference)

	var norm float64
	for _, v := range profile.Vector {
		norm += v * v
	}
	require.InDelta(t, 1.0, norm, 1e-9)
}

func TestComputeColdStartNoPreferences(t *testing.T) {
	globaltime.SetMockTime(testNow)
	defer globaltime.ResetTime()

	builder := newTestBuilder(&fakeStore{})
	profile, err := builder.Compute(context.Background(), "user-unknown", nil)
	require.NoError(t, err)
	require.Equal(t, 0.3, profile.Confidence)
	require.Empty(t, profile.DominantCategories)

	// No preferences and no history leaves an all-zero (not NaN) vector.
	for _, v := range profile.Vector {
		require.False(t, math.IsNaN(v))
	}
}

func TestComputeBlendsImplicitHistory(t *testing.T) {
	globaltime.SetMockTime(testNow)
	defer globaltime.ResetTime()

	store := &fakeStore{
		events: []db.Event{jazzEvent("ev-1"), jazzEvent("ev-2")},
		interactions: []db.UserInteraction{
			{UserID: "user-1", EventID: "ev-1", Type: db.InteractionFavourite, OccurredAt: testNow.Add(-24 * time.Hour)},
			{UserID: "user-1", EventID: "ev-2", Type: db.InteractionView, OccurredAt: testNow.Add(-48 * time.Hour)},
		},
	}
	builder := newTestBuilder(store)
	user := &db.User{
		UserID:      "user-1",
		Preferences: db.Preferences{Categories: map[string]float64{"comedy": 1.0}},
	}

	profile, err := builder.Compute(context.Background(), "user-1", user)
	require.NoError(t, err)
	require.Equal(t, 2, profile.InteractionCount)
	require.InDelta(t, 2.0/20.0, profile.Confidence, 1e-9)

	// Implicit history carries 70% of the blend: music must dominate the
	// explicitly preferred comedy.
	layout := builder.extractor.Layout()
	musicValue := profile.Vector[layout.CategoryOffset+taxonomy.CategoryIndex("music")]
	comedyValue := profile.Vector[layout.CategoryOffset+taxonomy.CategoryIndex("comedy")]
	require.Greater(t, musicValue, comedyValue)
	require.Equal(t, "music", profile.DominantCategories[0])
}

func TestFromInteractionsDecay(t *testing.T) {
	globaltime.SetMockTime(testNow)
	defer globaltime.ResetTime()

	recentStore := &fakeStore{
		events: []db.Event{jazzEvent("ev-1")},
		interactions: []db.UserInteraction{
			{UserID: "u", EventID: "ev-1", Type: db.InteractionFavourite, OccurredAt: testNow.Add(-24 * time.Hour)},
		},
	}
	staleStore := &fakeStore{
		events: []db.Event{jazzEvent("ev-1")},
		interactions: []db.UserInteraction{
			{UserID: "u", EventID: "ev-1", Type: db.InteractionFavourite, OccurredAt: testNow.AddDate(0, 0, -150)},
		},
	}

	recent, err := newTestBuilder(recentStore).FromInteractions(context.Background(), "u")
	require.NoError(t, err)
	stale, err := newTestBuilder(staleStore).FromInteractions(context.Background(), "u")
	require.NoError(t, err)

	layout := newTestBuilder(recentStore).extractor.Layout()
	idx := layout.CategoryOffset + taxonomy.CategoryIndex("music")
	require.Greater(t, recent.Vector[idx], stale.Vector[idx])

	// 30-day half-life: a 150-day-old favourite keeps 1/32 of its weight.
	require.InDelta(t, recent.Vector[idx]/32, stale.Vector[idx], recent.Vector[idx]/100)
}

func TestFromInteractionsSkipsPurgedEvents(t *testing.T) {
	globaltime.SetMockTime(testNow)
	defer globaltime.ResetTime()

	store := &fakeStore{
		interactions: []db.UserInteraction{
			{UserID: "u", EventID: "ev-gone", Type: db.InteractionFavourite, OccurredAt: testNow.Add(-time.Hour)},
		},
	}
	implicit, err := newTestBuilder(store).FromInteractions(context.Background(), "u")
	require.NoError(t, err)
	require.Nil(t, implicit)
}

func TestConfidenceMonotonicAndCapped(t *testing.T) {
	globaltime.SetMockTime(testNow)
	defer globaltime.ResetTime()

	build := func(count int) *Implicit {
		store := &fakeStore{events: []db.Event{jazzEvent("ev-1")}}
		for i := 0; i < count; i++ {
			store.interactions = append(store.interactions, db.UserInteraction{
				UserID:     "u",
				EventID:    "ev-1",
				Type:       db.InteractionView,
				OccurredAt: testNow.Add(-time.Duration(i+1) * time.Hour),
			})
		}
		implicit, err := newTestBuilder(store).FromInteractions(context.Background(), "u")
		require.NoError(t, err)
		require.NotNil(t, implicit)
		return implicit
	}

	require.Less(t, build(2).Confidence, build(10).Confidence)
	require.Equal(t, 1.0, build(40).Confidence)
}

func TestPopularityPreferenceFromUser(t *testing.T) {
	globaltime.SetMockTime(testNow)
	defer globaltime.ResetTime()

	builder := newTestBuilder(&fakeStore{})
	user := &db.User{
		UserID:      "user-1",
		Preferences: db.Preferences{Popularity: 2.5},
	}
	profile, err := builder.Compute(context.Background(), "user-1", user)
	require.NoError(t, err)
	require.Equal(t, 1.0, profile.PopularityPreference)
}
