// Package profile builds a user's taste vector in the event feature space,
// blending explicit onboarding preferences with time-decayed interaction
// history. Profiles are derived values: recomputed per request, never the
// source of truth.
package profile

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/globaltime"
	"horse.fit/whatson/internal/taxonomy"
	"horse.fit/whatson/internal/vector"
)

// Store is the slice of persistence the builder needs. *db.Pool satisfies it.
type Store interface {
	RecentInteractionsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]db.UserInteraction, error)
	GetEventsByIDs(ctx context.Context, eventIDs []string) ([]db.Event, error)
}

// Options carries the profile tunables.
type Options struct {
	DecayHalfLifeDays    float64
	ExplicitBlendWeight  float64
	ColdStartConfidence  float64
	ConfidenceSaturation int
	MaxInteractions      int
	LookbackDays         int
	FavouriteWeight      float64
	ClickthroughWeight   float64
	ViewWeight           float64
	UnfavouriteWeight    float64
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DecayHalfLifeDays:    cfg.DecayHalfLifeDays,
		ExplicitBlendWeight:  cfg.ExplicitBlendWeight,
		ColdStartConfidence:  cfg.ColdStartConfidence,
		ConfidenceSaturation: cfg.ConfidenceSaturation,
		MaxInteractions:      cfg.MaxInteractions,
		LookbackDays:         cfg.InteractionLookbackDays,
		FavouriteWeight:      cfg.FavouriteWeight,
		ClickthroughWeight:   cfg.ClickthroughWeight,
		ViewWeight:           cfg.ViewWeight,
		UnfavouriteWeight:    cfg.UnfavouriteWeight,
	}
}

// Profile is the computed user taste vector plus display metadata.
type Profile struct {
	UserID                string
	Vector                []float64
	Confidence            float64
	InteractionCount      int
	DominantCategories    []string
	DominantSubcategories []string
	// PopularityPreference is the user's stated appetite for popular events
	// in [0,1], 0.5 when unstated. Read by the ranking alignment term.
	PopularityPreference float64
	LastUpdated          time.Time
}

// Implicit is the interaction-derived contribution before blending.
type Implicit struct {
	Vector     []float64
	Count      int
	Confidence float64
}

// Builder computes profiles against a fixed extractor layout.
type Builder struct {
	store     Store
	extractor *vector.Extractor
	opts      Options
	log       zerolog.Logger
}

func NewBuilder(store Store, extractor *vector.Extractor, opts Options, log zerolog.Logger) *Builder {
	if opts.DecayHalfLifeDays <= 0 {
		opts.DecayHalfLifeDays = 30
	}
	if opts.ConfidenceSaturation < 1 {
		opts.ConfidenceSaturation = 20
	}
	if opts.MaxInteractions <= 0 {
		opts.MaxInteractions = 200
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 182
	}
	return &Builder{
		store:     store,
		extractor: extractor,
		opts:      opts,
		log:       log.With().Str("component", "profile").Logger(),
	}
}

// FromPreferences encodes a user's explicit onboarding choices into the
// event feature layout. Pure function of the preferences document.
func (b *Builder) FromPreferences(user *db.User) []float64 {
	layout := b.extractor.Layout()
	weights := b.extractor.Weights()
	out := make([]float64, layout.Dim)
	if user == nil {
		return out
	}
	prefs := user.Preferences

	for category, weight := range prefs.Categories {
		if weight == 0 {
			continue
		}
		if idx := taxonomy.CategoryIndex(category); idx >= 0 {
			out[layout.CategoryOffset+idx] = weight * weights.Category
		}
	}

	// A selected subcategory name activates every taxonomy pair carrying it;
	// a label like "Markets" appears under more than one category.
	pairs := taxonomy.Pairs()
	for _, selected := range prefs.Subcategories {
		for i, pair := range pairs {
			if taxonomy.CanonicalSubcategory(pair.Category, selected) == pair.Subcategory {
				out[layout.PairOffset+i] = weights.Subcategory
			}
		}
	}

	if mid := priceMidpoint(prefs.PriceMin, prefs.PriceMax); mid > 0 {
		out[layout.PriceIndex] = b.extractor.NormalizePrice(mid) * weights.Price
	}
	out[layout.VenueIndex] = 0.5 * weights.VenueTier
	out[layout.PopularityIndex] = prefs.Popularity * weights.Popularity

	return out
}

// FromInteractions derives the implicit taste vector from the user's recent
// history. Each interaction contributes its event's vector scaled by the
// interaction-type weight and an exponential recency decay. Returns nil when
// the user has no usable history.
func (b *Builder) FromInteractions(ctx context.Context, userID string) (*Implicit, error) {
	since := globaltime.UTC().AddDate(0, 0, -b.opts.LookbackDays)
	interactions, err := b.store.RecentInteractionsByUser(ctx, userID, since, b.opts.MaxInteractions)
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}
	if len(interactions) == 0 {
		return nil, nil
	}

	eventIDs := make([]string, 0, len(interactions))
	seen := make(map[string]struct{}, len(interactions))
	for _, interaction := range interactions {
		if _, dup := seen[interaction.EventID]; dup {
			continue
		}
		seen[interaction.EventID] = struct{}{}
		eventIDs = append(eventIDs, interaction.EventID)
	}
	events, err := b.store.GetEventsByIDs(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("load interacted events: %w", err)
	}
	vectors := make(map[string][]float64, len(events))
	for i := range events {
		vectors[events[i].EventID] = b.extractor.Extract(&events[i]).Full
	}

	layout := b.extractor.Layout()
	sum := make([]float64, layout.Dim)
	now := globaltime.UTC()
	count := 0
	for _, interaction := range interactions {
		eventVector, ok := vectors[interaction.EventID]
		if !ok {
			// Interaction against an event that has since been purged.
			continue
		}
		weight := b.typeWeight(interaction.Type)
		if weight == 0 {
			continue
		}
		days := now.Sub(interaction.OccurredAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		decay := math.Exp(-math.Ln2 * days / b.opts.DecayHalfLifeDays)
		scale := weight * decay
		for i, v := range eventVector {
			sum[i] += v * scale
		}
		count++
	}
	if count == 0 {
		return nil, nil
	}

	confidence := float64(count) / float64(b.opts.ConfidenceSaturation)
	if confidence > 1 {
		confidence = 1
	}
	return &Implicit{Vector: sum, Count: count, Confidence: confidence}, nil
}

// Compute builds the final profile. Cold start (no usable history) falls
// back to preferences alone at the fixed cold-start confidence; otherwise
// explicit and implicit vectors are blended and the result L2-normalised.
func (b *Builder) Compute(ctx context.Context, userID string, user *db.User) (*Profile, error) {
	explicit := b.FromPreferences(user)
	implicit, err := b.FromInteractions(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		UserID:               userID,
		PopularityPreference: 0.5,
		LastUpdated:          globaltime.UTC(),
	}
	if user != nil && user.Preferences.Popularity > 0 {
		profile.PopularityPreference = math.Min(user.Preferences.Popularity, 1)
	}

	if implicit == nil {
		profile.Vector = normalizeL2(explicit)
		profile.Confidence = b.opts.ColdStartConfidence
	} else {
		blended := make([]float64, len(explicit))
		we := b.opts.ExplicitBlendWeight
		wi := 1 - we
		for i := range blended {
			blended[i] = we*explicit[i] + wi*implicit.Vector[i]
		}
		profile.Vector = normalizeL2(blended)
		profile.Confidence = implicit.Confidence
		profile.InteractionCount = implicit.Count
	}

	profile.DominantCategories, profile.DominantSubcategories = b.dominants(profile.Vector)
	return profile, nil
}

func (b *Builder) typeWeight(interactionType string) float64 {
	switch interactionType {
	case db.InteractionFavourite:
		return b.opts.FavouriteWeight
	case db.InteractionClickthrough:
		return b.opts.ClickthroughWeight
	case db.InteractionView:
		return b.opts.ViewWeight
	case db.InteractionUnfavourite:
		return b.opts.UnfavouriteWeight
	default:
		return 0
	}
}

// dominants lists the strongest category and subcategory entries by
// magnitude. Display only, never used for scoring.
func (b *Builder) dominants(vec []float64) (categories []string, subcategories []string) {
	layout := b.extractor.Layout()
	type entry struct {
		name      string
		magnitude float64
	}

	var cats []entry
	for i, name := range taxonomy.Categories() {
		if v := vec[layout.CategoryOffset+i]; v != 0 {
			cats = append(cats, entry{name: name, magnitude: math.Abs(v)})
		}
	}
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].magnitude > cats[j].magnitude })
	for i := 0; i < len(cats) && i < 3; i++ {
		categories = append(categories, cats[i].name)
	}

	var subs []entry
	for i, pair := range taxonomy.Pairs() {
		if v := vec[layout.PairOffset+i]; v != 0 {
			subs = append(subs, entry{name: pair.Subcategory, magnitude: math.Abs(v)})
		}
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].magnitude > subs[j].magnitude })
	for i := 0; i < len(subs) && i < 5; i++ {
		subcategories = append(subcategories, subs[i].name)
	}
	return categories, subcategories
}

// normalizeL2 scales a vector to unit length. An all-zero vector is returned
// as-is rather than dividing by zero.
func normalizeL2(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func priceMidpoint(low, high *float64) float64 {
	switch {
	case low != nil && high != nil:
		return (*low + *high) / 2
	case low != nil:
		return *low
	case high != nil:
		return *high
	default:
		return 0
	}
}
