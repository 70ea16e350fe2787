// Package vector maps events into a fixed-dimension weighted feature space.
// The layout is taxonomy-driven: category one-hot, flattened (category,
// subcategory) multi-hot, then price, venue tier, free flag, and popularity.
// Every component is pre-multiplied by its weight so plain cosine similarity
// on the concatenation reproduces the intended weighted distance.
package vector

import (
	"fmt"
	"math"
	"strings"

	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/normalize"
	"horse.fit/whatson/internal/taxonomy"
)

// Weights scales each feature block of the space. Category dominates by
// design so same-category events cluster before anything else matters.
type Weights struct {
	Category        float64
	Subcategory     float64
	Price           float64
	VenueTier       float64
	FreeFlag        float64
	Popularity      float64
	PriceLogCeiling float64
}

func WeightsFromConfig(cfg *config.Config) Weights {
	return Weights{
		Category:        cfg.CategoryWeight,
		Subcategory:     cfg.SubcategoryWeight,
		Price:           cfg.PriceWeight,
		VenueTier:       cfg.VenueTierWeight,
		FreeFlag:        cfg.FreeFlagWeight,
		Popularity:      cfg.PopularityWeight,
		PriceLogCeiling: cfg.PriceLogCeiling,
	}
}

// Layout describes where each feature block sits in the full vector.
type Layout struct {
	CategoryOffset  int
	CategoryCount   int
	PairOffset      int
	PairCount       int
	PriceIndex      int
	VenueIndex      int
	FreeIndex       int
	PopularityIndex int
	Dim             int
}

// EventVector is the derived, ephemeral feature encoding of one event.
// Component slices are views for inspection; Full is what scoring uses.
type EventVector struct {
	Category             []float64
	Subcategory          []float64
	PriceNormalized      float64
	VenueTier            float64
	IsFree               bool
	PopularityPercentile float64
	Full                 []float64
}

// Extractor encodes events against a fixed taxonomy layout and weight set.
type Extractor struct {
	normalizer *normalize.Normalizer
	catalog    *config.Catalog
	weights    Weights
	layout     Layout
}

func NewExtractor(normalizer *normalize.Normalizer, catalog *config.Catalog, weights Weights) *Extractor {
	if weights.Category <= 0 {
		weights.Category = 10
	}
	if weights.Subcategory <= 0 {
		weights.Subcategory = 5
	}
	if weights.PriceLogCeiling <= 1 {
		weights.PriceLogCeiling = 500
	}
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}

	categoryCount := len(taxonomy.Categories())
	pairCount := len(taxonomy.Pairs())
	layout := Layout{
		CategoryOffset:  0,
		CategoryCount:   categoryCount,
		PairOffset:      categoryCount,
		PairCount:       pairCount,
		PriceIndex:      categoryCount + pairCount,
		VenueIndex:      categoryCount + pairCount + 1,
		FreeIndex:       categoryCount + pairCount + 2,
		PopularityIndex: categoryCount + pairCount + 3,
		Dim:             categoryCount + pairCount + 4,
	}
	return &Extractor{
		normalizer: normalizer,
		catalog:    catalog,
		weights:    weights,
		layout:     layout,
	}
}

func (x *Extractor) Layout() Layout   { return x.layout }
func (x *Extractor) Weights() Weights { return x.weights }

// Extract encodes one event. Unknown categories land on the generic fallback
// dimension; subcategories only activate when they belong to the event's own
// category, so cross-category label noise cannot leak into the encoding.
func (x *Extractor) Extract(event *db.Event) EventVector {
	full := make([]float64, x.layout.Dim)

	category := taxonomy.CanonicalCategory(event.Category)
	if idx := taxonomy.CategoryIndex(category); idx >= 0 {
		full[x.layout.CategoryOffset+idx] = x.weights.Category
	}
	for _, sub := range event.Subcategories {
		if idx := taxonomy.PairIndex(category, sub); idx >= 0 {
			full[x.layout.PairOffset+idx] = x.weights.Subcategory
		}
	}

	price := x.NormalizePrice(eventPrice(event))
	if event.IsFree {
		price = 0
	}
	tier := x.VenueTier(event.VenueName)

	full[x.layout.PriceIndex] = price * x.weights.Price
	full[x.layout.VenueIndex] = tier * x.weights.VenueTier
	if event.IsFree {
		full[x.layout.FreeIndex] = x.weights.FreeFlag
	}
	full[x.layout.PopularityIndex] = event.PopularityPercentile * x.weights.Popularity

	return EventVector{
		Category:             full[x.layout.CategoryOffset : x.layout.CategoryOffset+x.layout.CategoryCount],
		Subcategory:          full[x.layout.PairOffset : x.layout.PairOffset+x.layout.PairCount],
		PriceNormalized:      price,
		VenueTier:            tier,
		IsFree:               event.IsFree,
		PopularityPercentile: event.PopularityPercentile,
		Full:                 full,
	}
}

// NormalizePrice compresses a price onto [0,1] on a log scale, flattening
// the upper range so very expensive events do not dominate distances.
// Non-positive prices map to 0; prices at or above the ceiling map to 1.
func (x *Extractor) NormalizePrice(price float64) float64 {
	if price <= 0 {
		return 0
	}
	normalized := math.Log1p(price) / math.Log1p(x.weights.PriceLogCeiling)
	if normalized > 1 {
		return 1
	}
	return normalized
}

// venue-size keywords checked against the plain normalisation (suffix
// stripping would remove exactly the words that carry the signal).
var (
	largeVenueKeywords = []string{"stadium", "arena", "showgrounds", "bowl", "amphitheatre"}
	midVenueKeywords   = []string{"theatre", "theater", "concert hall", "opera", "town hall", "convention"}
	smallVenueKeywords = []string{"bar", "club", "pub", "cafe", "basement", "loft", "lounge"}
)

// VenueTier scores a venue in [0,1]: curated premium table first, then size
// keywords, else a neutral default.
func (x *Extractor) VenueTier(venueName string) float64 {
	if strings.TrimSpace(venueName) == "" {
		return 0.5
	}
	stripped := x.normalizer.Venue(venueName)
	if tier, ok := x.catalog.PremiumVenues[stripped]; ok {
		return tier
	}

	plain := " " + normalize.Normalize(venueName) + " "
	for _, keyword := range largeVenueKeywords {
		if strings.Contains(plain, " "+keyword+" ") {
			return 0.9
		}
	}
	for _, keyword := range midVenueKeywords {
		if strings.Contains(plain, " "+keyword+" ") {
			return 0.7
		}
	}
	for _, keyword := range smallVenueKeywords {
		if strings.Contains(plain, " "+keyword+" ") {
			return 0.3
		}
	}
	return 0.5
}

// eventPrice picks the representative price: the floor when present, else
// the ceiling.
func eventPrice(event *db.Event) float64 {
	if event.PriceMin != nil {
		return *event.PriceMin
	}
	if event.PriceMax != nil {
		return *event.PriceMax
	}
	return 0
}

// Cosine returns the cosine similarity of two vectors. A length mismatch is
// a programmer error (the layouts drifted apart) and fails loudly; a
// zero-magnitude vector yields 0, never NaN.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
