package vector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/normalize"
	"horse.fit/whatson/internal/taxonomy"
)

func newTestExtractor() *Extractor {
	return NewExtractor(normalize.New(0), config.DefaultCatalog(), Weights{})
}

func floatPtr(f float64) *float64 { return &f }

func TestLayoutDimensions(t *testing.T) {
	t.Parallel()

	layout := newTestExtractor().Layout()
	require.Equal(t, len(taxonomy.Categories()), layout.CategoryCount)
	require.Equal(t, len(taxonomy.Pairs()), layout.PairCount)
	require.Equal(t, layout.CategoryCount+layout.PairCount+4, layout.Dim)
	require.Equal(t, layout.Dim-1, layout.PopularityIndex)
}

func TestExtractCategoryOneHot(t *testing.T) {
	t.Parallel()

	x := newTestExtractor()
	vec := x.Extract(&db.Event{
		Category:      "music",
		Subcategories: []string{"Jazz"},
		VenueName:     "The Jazzlab",
	})

	require.Len(t, vec.Full, x.Layout().Dim)

	activeCategories := 0
	for i, value := range vec.Category {
		if value != 0 {
			activeCategories++
			require.Equal(t, taxonomy.CategoryIndex("music"), i)
			require.Equal(t, x.Weights().Category, value)
		}
	}
	require.Equal(t, 1, activeCategories)

	jazzIdx := taxonomy.PairIndex("music", "Jazz")
	require.GreaterOrEqual(t, jazzIdx, 0)
	require.Equal(t, x.Weights().Subcategory, vec.Subcategory[jazzIdx])
}

func TestExtractUnknownCategoryFallsBack(t *testing.T) {
	t.Parallel()

	x := newTestExtractor()
	vec := x.Extract(&db.Event{Category: "astronomy"})
	require.Equal(t, x.Weights().Category, vec.Category[taxonomy.CategoryIndex(taxonomy.Fallback)])
}

func TestExtractForeignSubcategoryIgnored(t *testing.T) {
	t.Parallel()

	x := newTestExtractor()
	// Screenings belongs to film, not music; it must not activate.
	vec := x.Extract(&db.Event{
		Category:      "music",
		Subcategories: []string{"Screenings"},
	})
	for _, value := range vec.Subcategory {
		require.Zero(t, value)
	}
}

func TestExtractFreeEventZeroesPrice(t *testing.T) {
	t.Parallel()

	x := newTestExtractor()
	vec := x.Extract(&db.Event{
		Category: "community",
		IsFree:   true,
		PriceMin: floatPtr(25),
	})
	require.Zero(t, vec.PriceNormalized)
	require.Equal(t, x.Weights().FreeFlag, vec.Full[x.Layout().FreeIndex])
}

func TestNormalizePriceMonotonic(t *testing.T) {
	t.Parallel()

	x := newTestExtractor()
	require.Zero(t, x.NormalizePrice(0))
	require.Zero(t, x.NormalizePrice(-10))
	require.Equal(t, 1.0, x.NormalizePrice(500))
	require.Equal(t, 1.0, x.NormalizePrice(10_000))

	prices := []float64{1, 5, 20, 50, 150, 400}
	previous := 0.0
	for _, price := range prices {
		normalized := x.NormalizePrice(price)
		require.Greater(t, normalized, previous, "price %v", price)
		require.LessOrEqual(t, normalized, 1.0)
		previous = normalized
	}

	// Log compression: the same ratio step moves the scale less at the top.
	lowStep := x.NormalizePrice(20) - x.NormalizePrice(10)
	highStep := x.NormalizePrice(400) - x.NormalizePrice(200)
	require.Greater(t, lowStep, highStep)
}

func TestVenueTier(t *testing.T) {
	t.Parallel()

	x := newTestExtractor()
	cases := []struct {
		name  string
		venue string
		want  float64
	}{
		{name: "curated premium", venue: "Rod Laver Arena", want: 1.0},
		{name: "curated with suffix noise", venue: "Princess Theatre Melbourne", want: 0.9},
		{name: "large keyword", venue: "Lakeside Stadium", want: 0.9},
		{name: "mid keyword", venue: "Darebin Arts Theatre", want: 0.7},
		{name: "small keyword", venue: "The Night Cat Bar", want: 0.3},
		{name: "unknown", venue: "Somewhere Secret", want: 0.5},
		{name: "empty", venue: "  ", want: 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, x.VenueTier(tc.venue))
		})
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	a := []float64{1, 0, 2}
	b := []float64{1, 0, 2}
	c := []float64{0, 3, 0}

	same, err := Cosine(a, b)
	require.NoError(t, err)
	require.InDelta(t, 1.0, same, 1e-12)

	orthogonal, err := Cosine(a, c)
	require.NoError(t, err)
	require.Zero(t, orthogonal)

	ab, err := Cosine(a, []float64{2, 1, 0})
	require.NoError(t, err)
	ba, err := Cosine([]float64{2, 1, 0}, a)
	require.NoError(t, err)
	require.Equal(t, ab, ba)
}

func TestCosineZeroMagnitude(t *testing.T) {
	t.Parallel()

	got, err := Cosine([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	require.Zero(t, got)
}

func TestCosineLengthMismatch(t *testing.T) {
	t.Parallel()

	_, err := Cosine([]float64{1}, []float64{1, 2})
	require.Error(t, err)
	require.Contains(t, err.Error(), "length mismatch")
}

// Category dominance: two events sharing only a category must sit closer than
// two events differing in category but agreeing on every scalar feature.
func TestCategoryDominatesDistance(t *testing.T) {
	t.Parallel()

	x := newTestExtractor()

	jazzCheap := x.Extract(&db.Event{Category: "music", Subcategories: []string{"Jazz"}, PriceMin: floatPtr(10), VenueName: "The Night Cat Bar"})
	metalPricey := x.Extract(&db.Event{Category: "music", Subcategories: []string{"Metal"}, PriceMin: floatPtr(180), VenueName: "Rod Laver Arena"})
	comedyCheap := x.Extract(&db.Event{Category: "comedy", Subcategories: []string{"Stand-up"}, PriceMin: floatPtr(10), VenueName: "The Night Cat Bar"})

	sameCategory, err := Cosine(jazzCheap.Full, metalPricey.Full)
	require.NoError(t, err)
	crossCategory, err := Cosine(jazzCheap.Full, comedyCheap.Full)
	require.NoError(t, err)

	require.Greater(t, sameCategory, crossCategory)
}
