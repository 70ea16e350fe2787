// Package dedup detects listings from different sources describing the same
// real-world event. Candidates are bucketed by normalised title prefix, then
// scored pairwise on title, date, and venue similarity.
package dedup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/metrics"
	"horse.fit/whatson/internal/normalize"
	"horse.fit/whatson/internal/similarity"
)

// Event is the read projection the dedup pass works over. Immutable for the
// duration of a pass.
type Event struct {
	EventID       string
	Title         string
	VenueName     string
	Source        string
	Category      string
	StartAt       time.Time
	EndAt         *time.Time
	PriceMin      *float64
	Description   string
	ImageURL      *string
	Accessibility []string
}

// Match is one duplicate decision. Produced fresh each pass and consumed
// immediately by the merge step, never persisted as-is.
type Match struct {
	EventID1   string
	EventID2   string
	Confidence float64
	Reason     string
}

// Options carries the tunable knobs of a dedup pass.
type Options struct {
	Threshold            float64
	QuickRejectThreshold float64
	DateWindow           time.Duration
	TitleWeight          float64
	DateWeight           float64
	VenueWeight          float64
}

// OptionsFromConfig maps the environment configuration onto pass options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Threshold:            cfg.DedupThreshold,
		QuickRejectThreshold: cfg.DedupQuickRejectThreshold,
		DateWindow:           time.Duration(cfg.DedupDateWindowDays) * 24 * time.Hour,
		TitleWeight:          cfg.DedupTitleWeight,
		DateWeight:           cfg.DedupDateWeight,
		VenueWeight:          cfg.DedupVenueWeight,
	}
}

// Result carries the matches plus per-pass counters for the run ledger.
type Result struct {
	Matches            []Match
	EventsScanned      int
	EventsSkipped      int
	PairsCompared      int
	PairsQuickRejected int
}

// Engine runs duplicate detection over a snapshot of the catalogue.
type Engine struct {
	normalizer *normalize.Normalizer
	catalog    *config.Catalog
	opts       Options
	log        zerolog.Logger
}

func NewEngine(normalizer *normalize.Normalizer, catalog *config.Catalog, opts Options, log zerolog.Logger) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.78
	}
	if opts.QuickRejectThreshold <= 0 {
		opts.QuickRejectThreshold = similarity.DefaultQuickRejectThreshold
	}
	if opts.DateWindow <= 0 {
		opts.DateWindow = similarity.DefaultDateWindow
	}
	if opts.TitleWeight+opts.DateWeight+opts.VenueWeight == 0 {
		opts.TitleWeight, opts.DateWeight, opts.VenueWeight = 0.50, 0.30, 0.20
	}
	return &Engine{
		normalizer: normalizer,
		catalog:    catalog,
		opts:       opts,
		log:        log.With().Str("component", "dedup").Logger(),
	}
}

// FindDuplicates scores every candidate pair sharing a title bucket and
// returns the pairs at or above the confidence threshold. Records missing a
// title, venue, or start date are counted and skipped, never fatal. The match
// set does not depend on input order; pair orientation follows bucket sort
// order (higher-priority source first).
func (e *Engine) FindDuplicates(events []Event) Result {
	var result Result

	valid := make([]Event, 0, len(events))
	for _, event := range events {
		if reason := skipReason(event); reason != "" {
			result.EventsSkipped++
			metrics.DedupEventsSkipped.WithLabelValues(reason).Inc()
			e.log.Debug().Str("event_id", event.EventID).Str("reason", reason).Msg("skipping event")
			continue
		}
		valid = append(valid, event)
	}
	result.EventsScanned = len(valid)

	// Primary bucket: first three significant title tokens. Secondary bucket:
	// first token only, catching titles that diverge after the third word.
	buckets := make(map[string][]int)
	for i, event := range valid {
		key := similarity.BucketKey(e.normalizer, event.Title)
		if key == "" {
			continue
		}
		buckets[key] = append(buckets[key], i)
		if first := similarity.FirstTokenKey(e.normalizer, event.Title); first != key {
			buckets[first] = append(buckets[first], i)
		}
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seen := make(map[string]struct{})
	for _, key := range keys {
		members := buckets[key]
		if len(members) < 2 {
			continue
		}
		e.sortByPriority(valid, members)

		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := valid[members[i]], valid[members[j]]
				pair := pairKey(a.EventID, b.EventID)
				if _, done := seen[pair]; done {
					continue
				}
				seen[pair] = struct{}{}

				// Same source is assumed pre-deduplicated upstream.
				if a.Source == b.Source {
					continue
				}
				if similarity.QuickReject(e.normalizer, a.Title, b.Title, e.opts.QuickRejectThreshold) {
					result.PairsQuickRejected++
					metrics.DedupPairsQuickRejected.Inc()
					continue
				}

				result.PairsCompared++
				metrics.DedupEventsCompared.Inc()

				titleScore := similarity.TitleSimilarity(e.normalizer, a.Title, b.Title)
				dateScore := similarity.DateOverlap(a.StartAt, a.EndAt, b.StartAt, b.EndAt, e.opts.DateWindow)
				venueScore := similarity.VenueSimilarity(e.normalizer, a.VenueName, b.VenueName)
				overall := e.opts.TitleWeight*titleScore + e.opts.DateWeight*dateScore + e.opts.VenueWeight*venueScore

				if overall < e.opts.Threshold {
					continue
				}

				match := Match{
					EventID1:   a.EventID,
					EventID2:   b.EventID,
					Confidence: overall,
					Reason:     fmt.Sprintf("title=%.2f date=%.2f venue=%.2f overall=%.2f", titleScore, dateScore, venueScore, overall),
				}
				result.Matches = append(result.Matches, match)
				metrics.DedupMatchesFound.Inc()
				e.log.Debug().
					Str("event_id_1", a.EventID).
					Str("event_id_2", b.EventID).
					Float64("confidence", overall).
					Str("reason", match.Reason).
					Msg("duplicate match")
			}
		}
	}

	return result
}

// sortByPriority orders bucket members so higher-trust sources come first,
// ties broken by event id for determinism.
func (e *Engine) sortByPriority(events []Event, members []int) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := events[members[i]], events[members[j]]
		pa, pb := e.catalog.SourcePriority(a.Source), e.catalog.SourcePriority(b.Source)
		if pa != pb {
			return pa > pb
		}
		return a.EventID < b.EventID
	})
}

func skipReason(event Event) string {
	switch {
	case strings.TrimSpace(event.Title) == "":
		return "missing_title"
	case strings.TrimSpace(event.VenueName) == "":
		return "missing_venue"
	case event.StartAt.IsZero():
		return "missing_start"
	default:
		return ""
	}
}

func pairKey(id1, id2 string) string {
	if id1 < id2 {
		return id1 + "|" + id2
	}
	return id2 + "|" + id1
}
