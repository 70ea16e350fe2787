package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds the curated operational tables: which sources we trust most
// when merging, which venues count as premium, and the locality fallback for
// merged records missing one. Defaults cover the Melbourne source set; a
// YAML file can replace any table wholesale.
type Catalog struct {
	// SourcePriorities ranks sources; higher wins primary selection and
	// comparison ordering. Unknown sources rank 0.
	SourcePriorities map[string]int `yaml:"source_priorities"`
	// PremiumVenues maps suffix-stripped normalised venue names to a tier
	// score in [0,1].
	PremiumVenues map[string]float64 `yaml:"premium_venues"`
	// DefaultLocality fills the venue locality when no source supplies one.
	DefaultLocality string `yaml:"default_locality"`
}

// DefaultCatalog returns the built-in tables. Venue-direct box offices rank
// above national ticketers, which rank above open aggregators and the
// municipal feed.
func DefaultCatalog() *Catalog {
	return &Catalog{
		SourcePriorities: map[string]int{
			"marriner":          100,
			"artscentre":        90,
			"ticketmaster":      80,
			"ticketek":          75,
			"moshtix":           60,
			"humanitix":         55,
			"eventbrite":        50,
			"whatson_melbourne": 40,
		},
		PremiumVenues: map[string]float64{
			// Keys are normalize.Venue output: lowercased, punctuation
			// stripped, trailing venue/geo suffixes removed.
			"mcg":                    1.0,
			"marvel":                 1.0,
			"rod laver":              1.0,
			"sidney myer music bowl": 0.95,
			"hamer":                  0.95,
			"princess":               0.9,
			"regent":                 0.9,
			"her majesty s":          0.9,
			"palais":                 0.9,
			"state theatre":          0.9,
			"the forum":              0.85,
			"the comedy":             0.85,
			"athenaeum":              0.8,
			"corner":                 0.7,
			"170 russell":            0.7,
		},
		DefaultLocality: "Melbourne",
	}
}

// LoadCatalog returns the default catalogue, overridden table-by-table from
// the YAML file at path when one is configured.
func LoadCatalog(path string) (*Catalog, error) {
	catalog := DefaultCatalog()
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return catalog, nil
	}

	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %q: %w", trimmed, err)
	}

	var override Catalog
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse catalog file %q: %w", trimmed, err)
	}

	if len(override.SourcePriorities) > 0 {
		catalog.SourcePriorities = override.SourcePriorities
	}
	if len(override.PremiumVenues) > 0 {
		catalog.PremiumVenues = override.PremiumVenues
	}
	if strings.TrimSpace(override.DefaultLocality) != "" {
		catalog.DefaultLocality = strings.TrimSpace(override.DefaultLocality)
	}

	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("catalog file %q: %w", trimmed, err)
	}
	return catalog, nil
}

func (c *Catalog) Validate() error {
	for source, priority := range c.SourcePriorities {
		if strings.TrimSpace(source) == "" {
			return fmt.Errorf("source priority entry has empty source name")
		}
		if priority < 0 {
			return fmt.Errorf("source %q has negative priority %d", source, priority)
		}
	}
	for venue, tier := range c.PremiumVenues {
		if strings.TrimSpace(venue) == "" {
			return fmt.Errorf("premium venue entry has empty name")
		}
		if tier < 0 || tier > 1 {
			return fmt.Errorf("venue %q tier %f outside [0,1]", venue, tier)
		}
	}
	return nil
}

// SourcePriority returns the rank of a source, 0 for unknown sources.
func (c *Catalog) SourcePriority(source string) int {
	if c == nil {
		return 0
	}
	return c.SourcePriorities[strings.ToLower(strings.TrimSpace(source))]
}
