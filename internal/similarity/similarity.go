// Package similarity provides the string and date comparison primitives the
// dedup engine scores candidate pairs with.
package similarity

import (
	"strings"
	"time"

	"horse.fit/whatson/internal/normalize"
)

const (
	// DefaultQuickRejectThreshold is the character-set Jaccard floor below
	// which a pair is skipped without full comparison.
	DefaultQuickRejectThreshold = 0.3
	// DefaultDateWindow is the gap within which non-intersecting date ranges
	// still count as probably the same event run.
	DefaultDateWindow = 14 * 24 * time.Hour

	equalScore     = 1.0
	substringScore = 0.95
)

// BucketKey derives a coarse grouping key from the first three significant
// tokens of the normalised title. Empty when nothing survives normalisation.
func BucketKey(n *normalize.Normalizer, title string) string {
	tokens := strings.Fields(n.Title(title))
	if len(tokens) == 0 {
		return ""
	}
	if len(tokens) > 3 {
		tokens = tokens[:3]
	}
	return strings.Join(tokens, " ")
}

// FirstTokenKey returns just the first significant title token, used as a
// secondary bucket for titles that diverge after the third word.
func FirstTokenKey(n *normalize.Normalizer, title string) string {
	tokens := strings.Fields(n.Title(title))
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// QuickReject reports whether a title pair can be skipped without full
// comparison: the normalised forms are neither equal nor substrings of each
// other, and their character-set Jaccard falls below the threshold.
//
// This is a heuristic pre-filter. Bigram Dice is not provably bounded by
// character Jaccard, so the coupling between this threshold and the overall
// dedup threshold is covered by an empirical corpus test rather than assumed.
func QuickReject(n *normalize.Normalizer, title1, title2 string, threshold float64) bool {
	a := n.Title(title1)
	b := n.Title(title2)
	if a == b {
		return false
	}
	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return false
	}
	return charJaccard(a, b) < threshold
}

// TitleSimilarity scores two titles in [0,1]: 1.0 when the normalised forms
// are equal, 0.95 when one contains the other, otherwise bigram
// Sørensen–Dice overlap.
func TitleSimilarity(n *normalize.Normalizer, a, b string) float64 {
	return stringSimilarity(n.Title(a), n.Title(b))
}

// VenueSimilarity scores two venue names with the same scheme as
// TitleSimilarity, over suffix-stripped venue normalisations.
func VenueSimilarity(n *normalize.Normalizer, a, b string) float64 {
	return stringSimilarity(n.Venue(a), n.Venue(b))
}

func stringSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return equalScore
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return substringScore
	}
	return diceBigram(a, b)
}

// DateOverlap scores how consistent two event date ranges are, in [0,1].
// A missing end is treated as equal to the start. Intersecting ranges score
// 1.0; ranges within the window score 0.85; within twice the window 0.5;
// otherwise 0.
func DateOverlap(start1 time.Time, end1 *time.Time, start2 time.Time, end2 *time.Time, window time.Duration) float64 {
	if window <= 0 {
		window = DefaultDateWindow
	}
	e1 := rangeEnd(start1, end1)
	e2 := rangeEnd(start2, end2)

	if !start1.After(e2) && !start2.After(e1) {
		return 1.0
	}

	var gap time.Duration
	if e1.Before(start2) {
		gap = start2.Sub(e1)
	} else {
		gap = start1.Sub(e2)
	}

	switch {
	case gap <= window:
		return 0.85
	case gap <= 2*window:
		return 0.5
	default:
		return 0
	}
}

func rangeEnd(start time.Time, end *time.Time) time.Time {
	if end == nil || end.IsZero() || end.Before(start) {
		return start
	}
	return *end
}

func diceBigram(a, b string) float64 {
	left := bigramSet(a)
	right := bigramSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	intersection := 0
	for gram := range left {
		if _, ok := right[gram]; ok {
			intersection++
		}
	}
	return 2 * float64(intersection) / float64(len(left)+len(right))
}

func bigramSet(text string) map[string]struct{} {
	runes := []rune(text)
	if len(runes) < 2 {
		if len(runes) == 0 {
			return nil
		}
		return map[string]struct{}{string(runes): {}}
	}
	set := make(map[string]struct{}, len(runes)-1)
	for i := 0; i <= len(runes)-2; i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

func charJaccard(a, b string) float64 {
	left := charSet(a)
	right := charSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	intersection := 0
	for r := range left {
		if _, ok := right[r]; ok {
			intersection++
		}
	}
	union := len(left) + len(right) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func charSet(text string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(text))
	for _, r := range text {
		if r == ' ' {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}
