// Package ranking scores candidate events for each recommendation surface:
// the personalised feed, trending, hidden gems, and similar-to. All
// computation is pure and synchronous; callers supply the candidate
// snapshot and any engagement aggregates.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/metrics"
	"horse.fit/whatson/internal/profile"
	"horse.fit/whatson/internal/vector"
)

// Trending blend shares. Tunable-in-code heuristics, covered by tests; the
// velocity window itself comes from configuration.
const (
	trendingTotalShare    = 0.5
	trendingVelocityShare = 0.3
	trendingSoonShare     = 0.2
)

// Gem underlying-quality blend: mostly venue calibre, nudged by whatever
// category-relative standing the event has managed so far.
const (
	gemVenueShare      = 0.7
	gemPopularityShare = 0.3
)

// Options carries the ranking tunables.
type Options struct {
	SimilarityWeight      float64
	PopularityWeight      float64
	NoveltyWeight         float64
	UrgencyWeight         float64
	SimilarCandidateCap   int
	UrgencyHorizonDays    int
	TrendingVelocityDays  int
	GemMaxFavourites      int64
	GemMaxViews           int64
	GemMinPopularityScore float64
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SimilarityWeight:      cfg.RankSimilarityWeight,
		PopularityWeight:      cfg.RankPopularityWeight,
		NoveltyWeight:         cfg.RankNoveltyWeight,
		UrgencyWeight:         cfg.RankUrgencyWeight,
		SimilarCandidateCap:   cfg.SimilarCandidateCap,
		UrgencyHorizonDays:    cfg.UrgencyHorizonDays,
		TrendingVelocityDays:  cfg.TrendingVelocityDays,
		GemMaxFavourites:      cfg.GemMaxFavourites,
		GemMaxViews:           cfg.GemMaxViews,
		GemMinPopularityScore: cfg.GemMinPopularityScore,
	}
}

// Scored is one ranked result: an event id with its surface score.
type Scored struct {
	EventID string
	Score   float64
}

// Ranker scores candidates against a fixed extractor layout.
type Ranker struct {
	extractor *vector.Extractor
	opts      Options
	log       zerolog.Logger
}

func NewRanker(extractor *vector.Extractor, opts Options, log zerolog.Logger) *Ranker {
	if opts.SimilarCandidateCap <= 0 {
		opts.SimilarCandidateCap = 50
	}
	if opts.UrgencyHorizonDays <= 0 {
		opts.UrgencyHorizonDays = 14
	}
	if opts.TrendingVelocityDays <= 0 {
		opts.TrendingVelocityDays = 7
	}
	return &Ranker{
		extractor: extractor,
		opts:      opts,
		log:       log.With().Str("component", "ranking").Logger(),
	}
}

// ForYou ranks candidates for one user: content similarity against the
// profile, popularity-preference alignment, a novelty penalty against the
// user's recent favourites, and a boost for events happening soon.
func (r *Ranker) ForYou(userProfile *profile.Profile, candidates []db.Event, recentFavourites []db.Event, now time.Time) ([]Scored, error) {
	timer := prometheus.NewTimer(metrics.RankingRequestDuration.WithLabelValues("for_you"))
	defer timer.ObserveDuration()

	if len(candidates) == 0 {
		return nil, nil
	}

	favouriteVectors := make([][]float64, 0, len(recentFavourites))
	for i := range recentFavourites {
		favouriteVectors = append(favouriteVectors, r.extractor.Extract(&recentFavourites[i]).Full)
	}

	scored := make([]Scored, 0, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		full := r.extractor.Extract(candidate).Full

		similarity, err := vector.Cosine(userProfile.Vector, full)
		if err != nil {
			return nil, fmt.Errorf("score event %s: %w", candidate.EventID, err)
		}

		alignment := 1 - math.Abs(userProfile.PopularityPreference-candidate.PopularityPercentile)
		novelty, err := r.noveltyScore(full, favouriteVectors)
		if err != nil {
			return nil, fmt.Errorf("score event %s: %w", candidate.EventID, err)
		}
		urgency := urgencyScore(candidate.StartAt, now, r.opts.UrgencyHorizonDays)

		score := r.opts.SimilarityWeight*similarity +
			r.opts.PopularityWeight*alignment +
			r.opts.NoveltyWeight*novelty +
			r.opts.UrgencyWeight*urgency
		scored = append(scored, Scored{EventID: candidate.EventID, Score: score})
	}

	sortScored(scored)
	return scored, nil
}

// noveltyScore rewards distance from what the user already favourited:
// 1 minus the best cosine against any recent favourite, 1 when there are
// none.
func (r *Ranker) noveltyScore(candidate []float64, favourites [][]float64) (float64, error) {
	if len(favourites) == 0 {
		return 1, nil
	}
	best := 0.0
	for _, favourite := range favourites {
		cos, err := vector.Cosine(candidate, favourite)
		if err != nil {
			return 0, err
		}
		if cos > best {
			best = cos
		}
	}
	return 1 - best, nil
}

// Trending ranks candidates by raw engagement, recent velocity, and a
// soon-to-occur boost. Profile-independent.
func (r *Ranker) Trending(candidates []db.Event, recentEngagement map[string]int64, now time.Time) []Scored {
	timer := prometheus.NewTimer(metrics.RankingRequestDuration.WithLabelValues("trending"))
	defer timer.ObserveDuration()

	if len(candidates) == 0 {
		return nil
	}

	maxTotal, maxVelocity := 0.0, 0.0
	totals := make([]float64, len(candidates))
	velocities := make([]float64, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		totals[i] = math.Log1p(float64(engagementTotal(candidate)))
		velocities[i] = float64(recentEngagement[candidate.EventID]) / float64(r.opts.TrendingVelocityDays)
		maxTotal = math.Max(maxTotal, totals[i])
		maxVelocity = math.Max(maxVelocity, velocities[i])
	}

	scored := make([]Scored, 0, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		total, velocity := 0.0, 0.0
		if maxTotal > 0 {
			total = totals[i] / maxTotal
		}
		if maxVelocity > 0 {
			velocity = velocities[i] / maxVelocity
		}
		soon := urgencyScore(candidate.StartAt, now, r.opts.UrgencyHorizonDays)

		score := trendingTotalShare*total + trendingVelocityShare*velocity + trendingSoonShare*soon
		scored = append(scored, Scored{EventID: candidate.EventID, Score: score})
	}

	sortScored(scored)
	return scored
}

// Gems surfaces events the crowd has not found yet: engagement below both
// ceilings but an underlying quality score above the floor, ranked by that
// score descending.
func (r *Ranker) Gems(candidates []db.Event) []Scored {
	timer := prometheus.NewTimer(metrics.RankingRequestDuration.WithLabelValues("gems"))
	defer timer.ObserveDuration()

	var scored []Scored
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.FavouriteCount >= r.opts.GemMaxFavourites {
			continue
		}
		if candidate.ViewCount >= r.opts.GemMaxViews {
			continue
		}
		quality := gemVenueShare*r.extractor.VenueTier(candidate.VenueName) +
			gemPopularityShare*candidate.PopularityPercentile
		if quality < r.opts.GemMinPopularityScore {
			continue
		}
		scored = append(scored, Scored{EventID: candidate.EventID, Score: quality})
	}

	sortScored(scored)
	return scored
}

// Similar ranks candidates by cosine distance to the anchor event,
// restricted to the anchor's category and capped for latency.
func (r *Ranker) Similar(anchor *db.Event, candidates []db.Event) ([]Scored, error) {
	timer := prometheus.NewTimer(metrics.RankingRequestDuration.WithLabelValues("similar"))
	defer timer.ObserveDuration()

	anchorVector := r.extractor.Extract(anchor).Full

	pool := make([]*db.Event, 0, r.opts.SimilarCandidateCap)
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.EventID == anchor.EventID {
			continue
		}
		if candidate.Category != anchor.Category {
			continue
		}
		pool = append(pool, candidate)
		if len(pool) == r.opts.SimilarCandidateCap {
			break
		}
	}

	scored := make([]Scored, 0, len(pool))
	for _, candidate := range pool {
		cos, err := vector.Cosine(anchorVector, r.extractor.Extract(candidate).Full)
		if err != nil {
			return nil, fmt.Errorf("score event %s: %w", candidate.EventID, err)
		}
		scored = append(scored, Scored{EventID: candidate.EventID, Score: cos})
	}

	sortScored(scored)
	return scored, nil
}

// urgencyScore is 1 for events happening now or imminently and falls off
// linearly to 0 at the horizon.
func urgencyScore(startAt, now time.Time, horizonDays int) float64 {
	days := startAt.Sub(now).Hours() / 24
	if days <= 0 {
		return 1
	}
	horizon := float64(horizonDays)
	if days >= horizon {
		return 0
	}
	return 1 - days/horizon
}

func engagementTotal(event *db.Event) int64 {
	return event.ViewCount + 5*event.ClickthroughCount + 10*event.FavouriteCount
}

// sortScored orders by score descending, ties broken by id so output is
// stable across runs.
func sortScored(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].EventID < scored[j].EventID
	})
}
