// Package taxonomy is the single source of truth for the event category
// tree. Every component that encodes, validates, or merges category data
// (vector extraction, merge validation, profile encoding) reads from here,
// so the vector dimension layout cannot drift between packages.
package taxonomy

import "strings"

// Fallback is the generic catch-all category assigned when a scraper
// supplies no usable category.
const Fallback = "community"

// categories is the closed category set in fixed encoding order.
// Order is load-bearing: vector dimensions are assigned from it.
var categories = []string{
	"music",
	"theatre",
	"comedy",
	"arts",
	"family",
	"food-drink",
	"sport",
	"film",
	"community",
}

// subcategories lists the allowed subcategory set per category, in fixed
// encoding order.
var subcategories = map[string][]string{
	"music":      {"Rock", "Pop", "Jazz", "Classical", "Electronic", "Hip Hop", "Folk", "Metal"},
	"theatre":    {"Musicals", "Drama", "Opera", "Ballet", "Cabaret", "Circus"},
	"comedy":     {"Stand-up", "Improv", "Sketch"},
	"arts":       {"Exhibitions", "Galleries", "Workshops", "Literature"},
	"family":     {"Kids", "Markets", "Festivals"},
	"food-drink": {"Food Festivals", "Wine & Beer", "Markets", "Pop-ups"},
	"sport":      {"AFL", "Cricket", "Soccer", "Tennis", "Racing"},
	"film":       {"Screenings", "Festivals", "Outdoor Cinema"},
	"community":  {"Free Events", "Talks", "Fundraisers", "Other"},
}

// Pair is one flattened (category, subcategory) entry of the taxonomy.
type Pair struct {
	Category    string
	Subcategory string
}

var flattened []Pair

func init() {
	for _, category := range categories {
		for _, sub := range subcategories[category] {
			flattened = append(flattened, Pair{Category: category, Subcategory: sub})
		}
	}
}

// Categories returns the closed category set in encoding order.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// Subcategories returns the allowed subcategories of a category in encoding
// order, or nil for an unknown category.
func Subcategories(category string) []string {
	subs, ok := subcategories[NormalizeCategory(category)]
	if !ok {
		return nil
	}
	out := make([]string, len(subs))
	copy(out, subs)
	return out
}

// Pairs returns every (category, subcategory) pair in encoding order.
func Pairs() []Pair {
	out := make([]Pair, len(flattened))
	copy(out, flattened)
	return out
}

// CategoryIndex returns the encoding position of a category, or -1.
func CategoryIndex(category string) int {
	normalized := NormalizeCategory(category)
	for i, c := range categories {
		if c == normalized {
			return i
		}
	}
	return -1
}

// PairIndex returns the encoding position of a (category, subcategory)
// pair, or -1 when either part is unknown.
func PairIndex(category, sub string) int {
	normalizedCategory := NormalizeCategory(category)
	for i, pair := range flattened {
		if pair.Category == normalizedCategory && strings.EqualFold(pair.Subcategory, strings.TrimSpace(sub)) {
			return i
		}
	}
	return -1
}

// IsCategory reports whether the value names a known category.
func IsCategory(category string) bool {
	return CategoryIndex(category) >= 0
}

// IsSubcategory reports whether sub is a valid member of the category's
// subcategory set.
func IsSubcategory(category, sub string) bool {
	return PairIndex(category, sub) >= 0
}

// NormalizeCategory lowercases and trims a raw category label so lookups
// tolerate scraper casing.
func NormalizeCategory(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// CanonicalCategory maps a raw label to its canonical category, falling back
// to the generic category for unknown values.
func CanonicalCategory(raw string) string {
	normalized := NormalizeCategory(raw)
	if IsCategory(normalized) {
		return normalized
	}
	return Fallback
}

// CanonicalSubcategory maps a raw label to the canonical casing of a
// subcategory within the category, or "" when it is not a member.
func CanonicalSubcategory(category, raw string) string {
	normalizedCategory := NormalizeCategory(category)
	trimmed := strings.TrimSpace(raw)
	for _, sub := range subcategories[normalizedCategory] {
		if strings.EqualFold(sub, trimmed) {
			return sub
		}
	}
	return ""
}
