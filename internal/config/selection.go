package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/massalia/agenda/internal/event"
)

// Geography scopes the calendar to one metro area. Tokens match the
// raw location text case-insensitively; postal prefixes match the
// leading digits of any postal code found in it.
type Geography struct {
	IncludeAreas   []string `yaml:"include_areas"`
	PostalPrefixes []string `yaml:"postal_prefixes"`
	LocalKeywords  []string `yaml:"local_keywords"`
}

// Dates bounds how far ahead (and behind) accepted events may start.
type Dates struct {
	MinDaysAhead int `yaml:"min_days_ahead"`
	MaxDaysAhead int `yaml:"max_days_ahead"`
}

// EventTypes lists type keywords that include or exclude an event.
type EventTypes struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// Keywords lists free-text tokens: negative ones reject, positive ones
// are recorded for ranking only.
type Keywords struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// Matching exposes the tunable similarity thresholds. They are
// configuration, not constants; a pinned snapshot reproduces a run.
type Matching struct {
	TitleSimilarity      float64 `yaml:"title_similarity"`
	VenueSimilarity      float64 `yaml:"venue_similarity"`
	VenueAmbiguityMargin float64 `yaml:"venue_ambiguity_margin"`
	TimeToleranceMinutes int     `yaml:"time_tolerance_minutes"`
	MergeThreshold       float64 `yaml:"merge_threshold"`
}

// FallbackPolicy decides what happens when classification finds no
// source mapping and no keyword match.
type FallbackPolicy string

const (
	// FallbackDefault assigns the configured catch-all category.
	FallbackDefault FallbackPolicy = "default"
	// FallbackReject drops the event at the classification stage.
	FallbackReject FallbackPolicy = "reject"
)

// Category configures classification: per-source raw-category mappings,
// the keyword fallback table, and the no-match policy.
type Category struct {
	FallbackPolicy FallbackPolicy               `yaml:"fallback_policy"`
	Default        string                       `yaml:"default"`
	Keywords       map[string][]string          `yaml:"keywords"`
	Sources        map[string]map[string]string `yaml:"sources"`
}

// Selection is the versioned selection-criteria document.
type Selection struct {
	Version    string     `yaml:"version"`
	Geography  Geography  `yaml:"geography"`
	Dates      Dates      `yaml:"dates"`
	EventTypes EventTypes `yaml:"event_types"`
	Keywords   Keywords   `yaml:"keywords"`
	Matching   Matching   `yaml:"matching"`
	Category   Category   `yaml:"category"`
}

// DefaultSelection returns the built-in criteria used when no document
// is provided. Thresholds mirror the tuned production values.
func DefaultSelection() *Selection {
	return &Selection{
		Version: "1.0",
		Geography: Geography{
			IncludeAreas:   []string{"marseille"},
			PostalPrefixes: []string{"13"},
		},
		Dates: Dates{MinDaysAhead: 0, MaxDaysAhead: 90},
		Matching: Matching{
			TitleSimilarity:      0.85,
			VenueSimilarity:      0.85,
			VenueAmbiguityMargin: 0.05,
			TimeToleranceMinutes: 30,
			MergeThreshold:       0.8,
		},
		Category: Category{
			FallbackPolicy: FallbackDefault,
			Default:        event.CategoryCommunaute,
		},
	}
}

// LoadSelection reads and validates the selection-criteria document.
// A missing file falls back to defaults; a malformed one is fatal.
func LoadSelection(path string) (*Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSelection(), nil
		}
		return nil, &Error{Document: "selection", Err: err}
	}

	sel := DefaultSelection()
	if err := yaml.Unmarshal(data, sel); err != nil {
		return nil, &Error{Document: "selection", Err: fmt.Errorf("invalid YAML: %w", err)}
	}
	if err := sel.Validate(); err != nil {
		return nil, &Error{Document: "selection", Err: err}
	}
	return sel, nil
}

// Validate checks internal consistency of the criteria.
func (s *Selection) Validate() error {
	if s.Dates.MaxDaysAhead < 0 {
		return fmt.Errorf("dates.max_days_ahead must be >= 0, got %d", s.Dates.MaxDaysAhead)
	}
	if s.Dates.MinDaysAhead < 0 {
		return fmt.Errorf("dates.min_days_ahead must be >= 0, got %d", s.Dates.MinDaysAhead)
	}
	if s.Dates.MinDaysAhead > s.Dates.MaxDaysAhead {
		return fmt.Errorf("dates.min_days_ahead (%d) cannot exceed dates.max_days_ahead (%d)",
			s.Dates.MinDaysAhead, s.Dates.MaxDaysAhead)
	}
	for name, v := range map[string]float64{
		"matching.title_similarity": s.Matching.TitleSimilarity,
		"matching.venue_similarity": s.Matching.VenueSimilarity,
		"matching.merge_threshold":  s.Matching.MergeThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0,1], got %g", name, v)
		}
	}
	if s.Matching.TimeToleranceMinutes < 0 {
		return fmt.Errorf("matching.time_tolerance_minutes must be >= 0, got %d", s.Matching.TimeToleranceMinutes)
	}
	switch s.Category.FallbackPolicy {
	case FallbackDefault, FallbackReject:
	default:
		return fmt.Errorf("category.fallback_policy must be %q or %q, got %q",
			FallbackDefault, FallbackReject, s.Category.FallbackPolicy)
	}
	if s.Category.FallbackPolicy == FallbackDefault && !event.ValidCategory(s.Category.Default) {
		return fmt.Errorf("category.default %q is not a canonical category", s.Category.Default)
	}
	for slug := range s.Category.Keywords {
		if !event.ValidCategory(slug) {
			return fmt.Errorf("category.keywords contains unknown category %q", slug)
		}
	}
	return nil
}
