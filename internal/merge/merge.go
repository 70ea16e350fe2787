// Package merge combines two listings judged to be the same event into one
// canonical record. Primary selection follows source priority, then
// completeness; field merging is deterministic and loses no information.
package merge

import (
	"strings"
	"time"

	"horse.fit/whatson/internal/config"
	"horse.fit/whatson/internal/db"
	"horse.fit/whatson/internal/taxonomy"
)

// placeholderText marks scraper filler that should never win a merge.
var placeholderText = map[string]struct{}{
	"tba": {}, "tbc": {}, "tbd": {}, "n/a": {}, "na": {},
	"details to come": {}, "to be announced": {}, "to be confirmed": {},
}

// Resolver applies merge decisions against the curated source tables.
type Resolver struct {
	catalog *config.Catalog
}

func NewResolver(catalog *config.Catalog) *Resolver {
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	return &Resolver{catalog: catalog}
}

// SelectPrimary picks which of the two events survives a merge: the one from
// the higher-priority source, ties broken by completeness, remaining ties by
// the first argument.
func (r *Resolver) SelectPrimary(a, b *db.Event) *db.Event {
	pa := r.catalog.SourcePriority(a.PrimarySource)
	pb := r.catalog.SourcePriority(b.PrimarySource)
	if pa != pb {
		if pa > pb {
			return a
		}
		return b
	}
	if completeness(b) > completeness(a) {
		return b
	}
	return a
}

// completeness counts the optional fields a record actually fills, one point
// each.
func completeness(e *db.Event) int {
	score := 0
	if !isPlaceholder(e.Description) {
		score++
	}
	if e.ImageURL != nil && strings.TrimSpace(*e.ImageURL) != "" {
		score++
	}
	if e.PriceMin != nil || e.PriceMax != nil {
		score++
	}
	if e.PriceDetails != nil && strings.TrimSpace(*e.PriceDetails) != "" {
		score++
	}
	if e.EndAt != nil {
		score++
	}
	if !isPlaceholder(e.VenueAddress) {
		score++
	}
	if len(e.Accessibility) > 0 {
		score++
	}
	return score
}

// Merge combines secondary into primary and returns the canonical record.
// Neither input is mutated. Merging an event with itself reproduces its
// merge-affected fields unchanged.
func (r *Resolver) Merge(primary, secondary *db.Event) *db.Event {
	merged := *primary
	merged.Category = taxonomy.CanonicalCategory(primary.Category)

	merged.Subcategories = mergeSubcategories(merged.Category, primary, secondary)

	merged.StartAt = primary.StartAt
	if secondary.StartAt.Before(merged.StartAt) {
		merged.StartAt = secondary.StartAt
	}
	latest := rangeEnd(primary)
	if other := rangeEnd(secondary); other.After(latest) {
		latest = other
	}
	if latest.After(merged.StartAt) {
		end := latest
		merged.EndAt = &end
	} else {
		merged.EndAt = nil
	}

	merged.Description = longerText(primary.Description, secondary.Description)

	merged.PriceMin, merged.PriceMax = mergePriceRange(primary, secondary)
	merged.PriceDetails = joinDetails(primary.PriceDetails, secondary.PriceDetails)
	merged.IsFree = primary.IsFree || secondary.IsFree
	if merged.IsFree {
		// A free event cannot carry a positive floor price.
		merged.PriceMin = nil
	}

	if len(strings.TrimSpace(secondary.VenueName)) > len(strings.TrimSpace(primary.VenueName)) {
		merged.VenueName = secondary.VenueName
	}
	merged.VenueAddress = preferText(primary.VenueAddress, secondary.VenueAddress)
	merged.VenueLocality = preferText(primary.VenueLocality, secondary.VenueLocality)
	if strings.TrimSpace(merged.VenueLocality) == "" {
		merged.VenueLocality = r.catalog.DefaultLocality
	}

	merged.ImageURL = firstURL(primary.ImageURL, secondary.ImageURL)
	merged.VideoURL = firstURL(primary.VideoURL, secondary.VideoURL)
	merged.Accessibility = unionStrings(primary.Accessibility, secondary.Accessibility)

	if merged.AgeRestriction == nil {
		merged.AgeRestriction = secondary.AgeRestriction
	}
	if merged.DurationMinutes == nil {
		merged.DurationMinutes = secondary.DurationMinutes
	}

	merged.Sources = unionStrings(primary.Sources, secondary.Sources)
	merged.BookingURLs = unionMap(primary.BookingURLs, secondary.BookingURLs)
	merged.ExternalIDs = unionMap(primary.ExternalIDs, secondary.ExternalIDs)

	merged.ViewCount = max(primary.ViewCount, secondary.ViewCount)
	merged.FavouriteCount = max(primary.FavouriteCount, secondary.FavouriteCount)
	merged.ClickthroughCount = max(primary.ClickthroughCount, secondary.ClickthroughCount)

	merged.FirstSeenAt = primary.FirstSeenAt
	if secondary.FirstSeenAt.Before(merged.FirstSeenAt) {
		merged.FirstSeenAt = secondary.FirstSeenAt
	}

	return &merged
}

// mergeSubcategories unions both subcategory lists, keeping entries valid for
// the merged category, and folds the secondary's differing non-generic
// category in as an extra label so its signal is not lost.
func mergeSubcategories(category string, primary, secondary *db.Event) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(label string) {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			return
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}

	for _, sub := range primary.Subcategories {
		if canonical := taxonomy.CanonicalSubcategory(category, sub); canonical != "" {
			add(canonical)
		}
	}
	for _, sub := range secondary.Subcategories {
		if canonical := taxonomy.CanonicalSubcategory(category, sub); canonical != "" {
			add(canonical)
		}
	}

	secondaryCategory := taxonomy.CanonicalCategory(secondary.Category)
	if secondaryCategory != category && secondaryCategory != taxonomy.Fallback {
		if canonical := taxonomy.CanonicalSubcategory(category, secondaryCategory); canonical != "" {
			add(canonical)
		} else {
			add(secondaryCategory)
		}
	}
	return out
}

// mergePriceRange unions the defined bounds of both records into the widest
// range: lowest floor, highest ceiling. Swaps if sources disagree so the
// floor never exceeds the ceiling.
func mergePriceRange(primary, secondary *db.Event) (*float64, *float64) {
	var low, high *float64
	for _, value := range []*float64{primary.PriceMin, secondary.PriceMin} {
		if value == nil {
			continue
		}
		if low == nil || *value < *low {
			v := *value
			low = &v
		}
	}
	for _, value := range []*float64{primary.PriceMax, secondary.PriceMax} {
		if value == nil {
			continue
		}
		if high == nil || *value > *high {
			v := *value
			high = &v
		}
	}
	if low != nil && high != nil && *low > *high {
		low, high = high, low
	}
	return low, high
}

func rangeEnd(e *db.Event) time.Time {
	if e.EndAt != nil && e.EndAt.After(e.StartAt) {
		return *e.EndAt
	}
	return e.StartAt
}

func joinDetails(a, b *string) *string {
	left := trimmedPtr(a)
	right := trimmedPtr(b)
	switch {
	case left == "" && right == "":
		return nil
	case left == "":
		return &right
	case right == "" || left == right:
		return &left
	default:
		joined := left + "; " + right
		return &joined
	}
}

func trimmedPtr(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// longerText returns the longer of two non-placeholder strings; a real value
// always beats a placeholder.
func longerText(a, b string) string {
	switch {
	case isPlaceholder(a):
		if isPlaceholder(b) {
			return a
		}
		return b
	case isPlaceholder(b):
		return a
	case len(strings.TrimSpace(b)) > len(strings.TrimSpace(a)):
		return b
	default:
		return a
	}
}

// preferText returns the first non-placeholder of the two.
func preferText(a, b string) string {
	if !isPlaceholder(a) {
		return a
	}
	if !isPlaceholder(b) {
		return b
	}
	return a
}

func isPlaceholder(text string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	if trimmed == "" {
		return true
	}
	_, ok := placeholderText[trimmed]
	return ok
}

func firstURL(a, b *string) *string {
	if a != nil && strings.TrimSpace(*a) != "" {
		return a
	}
	if b != nil && strings.TrimSpace(*b) != "" {
		return b
	}
	return nil
}

func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	var out []string
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, value := range list {
			trimmed := strings.TrimSpace(value)
			if trimmed == "" {
				continue
			}
			key := strings.ToLower(trimmed)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, trimmed)
		}
	}
	return out
}

// unionMap merges b into a copy of a; a's entries win conflicts.
func unionMap(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]string, len(a)+len(b))
	for key, value := range b {
		out[key] = value
	}
	for key, value := range a {
		out[key] = value
	}
	return out
}
