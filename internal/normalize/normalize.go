// Package normalize prepares listing titles and venue names for comparison.
// Normalisation is pure; the Normalizer only adds a size-capped memo cache
// because the same titles are re-normalised many times within a dedup pass.
package normalize

import (
	"strings"
	"sync"
	"unicode"
)

// DefaultCacheCeiling is the entry count at which a cache is cleared.
const DefaultCacheCeiling = 10_000

// titleStopWords are articles, conjunctions, and listing filler dropped from
// titles before comparison.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {},
	"and": {}, "or": {}, "of": {}, "at": {}, "in": {}, "on": {}, "to": {}, "with": {},
	"live": {}, "presents": {}, "present": {}, "presented": {},
	"featuring": {}, "feat": {}, "ft": {},
	"show": {}, "tour": {},
}

// venueSuffixes are geographic and venue-type qualifiers stripped from the
// end of venue names so "Princess Theatre Melbourne" and "Princess Theatre"
// compare equal.
var venueSuffixes = map[string]struct{}{
	"melbourne": {}, "victoria": {}, "vic": {}, "australia": {},
	"theatre": {}, "theater": {}, "hall": {}, "hotel": {},
	"centre": {}, "center": {}, "complex": {},
	"arena": {}, "stadium": {}, "pavilion": {},
	"club": {}, "bar": {}, "gallery": {}, "room": {},
}

// Cache memoises normalisation results. It is owned by the caller and passed
// into the Normalizer so tests can reset or bypass it deterministically.
type Cache struct {
	mu      sync.Mutex
	ceiling int
	entries map[string]string
}

// NewCache returns a cache cleared whenever it grows past ceiling entries.
func NewCache(ceiling int) *Cache {
	if ceiling <= 0 {
		ceiling = DefaultCacheCeiling
	}
	return &Cache{
		ceiling: ceiling,
		entries: make(map[string]string),
	}
}

func (c *Cache) get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *Cache) put(key, value string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.ceiling {
		c.entries = make(map[string]string)
	}
	c.entries[key] = value
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops all cached entries.
func (c *Cache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
}

// Normalizer normalises free text, titles, and venue names.
type Normalizer struct {
	titles *Cache
	venues *Cache
}

// New returns a Normalizer with its own title and venue caches.
func New(cacheCeiling int) *Normalizer {
	return &Normalizer{
		titles: NewCache(cacheCeiling),
		venues: NewCache(cacheCeiling),
	}
}

// Normalize lowercases, replaces non-word runes with spaces, collapses
// whitespace, and trims.
func Normalize(text string) string {
	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Title normalises an event title, dropping stop words and single-character
// tokens.
func (n *Normalizer) Title(title string) string {
	if cached, ok := n.titles.get(title); ok {
		return cached
	}
	result := normalizeTitle(title)
	n.titles.put(title, result)
	return result
}

// Venue normalises a venue name, repeatedly stripping trailing geographic
// and venue-type suffixes. Falls back to the plain normalisation when
// stripping would empty the name, so a key never collapses to "".
func (n *Normalizer) Venue(venue string) string {
	if cached, ok := n.venues.get(venue); ok {
		return cached
	}
	result := normalizeVenue(venue)
	n.venues.put(venue, result)
	return result
}

func normalizeTitle(title string) string {
	normalized := Normalize(title)
	if normalized == "" {
		return ""
	}

	fields := strings.Fields(normalized)
	kept := make([]string, 0, len(fields))
	for _, token := range fields {
		if len(token) <= 1 {
			continue
		}
		if _, stop := titleStopWords[token]; stop {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

func normalizeVenue(venue string) string {
	normalized := Normalize(venue)
	if normalized == "" {
		return ""
	}

	tokens := strings.Fields(normalized)
	for len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		if _, suffix := venueSuffixes[last]; !suffix {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return normalized
	}
	return strings.Join(tokens, " ")
}
