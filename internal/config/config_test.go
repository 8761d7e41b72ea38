package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSelectionDefaults(t *testing.T) {
	sel, err := LoadSelection(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults, got %v", err)
	}
	if sel.Dates.MaxDaysAhead != 90 {
		t.Errorf("expected default max_days_ahead 90, got %d", sel.Dates.MaxDaysAhead)
	}
	if sel.Category.FallbackPolicy != FallbackDefault {
		t.Errorf("expected default fallback policy, got %q", sel.Category.FallbackPolicy)
	}
	if sel.Matching.TitleSimilarity != 0.85 {
		t.Errorf("expected default title similarity 0.85, got %g", sel.Matching.TitleSimilarity)
	}
}

func TestLoadSelection(t *testing.T) {
	path := writeFile(t, "selection.yaml", `
version: "2.3"
geography:
  include_areas: [marseille, aubagne]
  postal_prefixes: ["13"]
dates:
  min_days_ahead: 1
  max_days_ahead: 30
keywords:
  negative: [complet, "annulé"]
  positive: [gratuit]
matching:
  title_similarity: 0.9
  time_tolerance_minutes: 15
category:
  fallback_policy: reject
`)

	sel, err := LoadSelection(path)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Version != "2.3" {
		t.Errorf("expected version 2.3, got %q", sel.Version)
	}
	if sel.Dates.MaxDaysAhead != 30 {
		t.Errorf("expected max_days_ahead 30, got %d", sel.Dates.MaxDaysAhead)
	}
	if sel.Matching.TitleSimilarity != 0.9 {
		t.Errorf("expected title similarity 0.9, got %g", sel.Matching.TitleSimilarity)
	}
	// Unset thresholds keep their defaults.
	if sel.Matching.MergeThreshold != 0.8 {
		t.Errorf("expected merge threshold default 0.8, got %g", sel.Matching.MergeThreshold)
	}
	if sel.Category.FallbackPolicy != FallbackReject {
		t.Errorf("expected reject policy, got %q", sel.Category.FallbackPolicy)
	}
}

func TestLoadSelectionInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "min exceeds max",
			content: `
dates:
  min_days_ahead: 40
  max_days_ahead: 30
`,
		},
		{
			name: "bad threshold",
			content: `
matching:
  title_similarity: 1.5
`,
		},
		{
			name: "unknown fallback policy",
			content: `
category:
  fallback_policy: guess
`,
		},
		{
			name: "unknown default category",
			content: `
category:
  fallback_policy: default
  default: cuisine
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "selection.yaml", tt.content)
			if _, err := LoadSelection(path); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

const validSources = `
defaults:
  rate_limit:
    requests_per_second: 2.0
    delay_between_pages: 1.0
sources:
  - name: La Friche
    id: lafriche
    url: https://www.lafriche.org/agenda/
    parser: html
    enabled: true
    selectors:
      event_item: article.event
      event_title: h3
      event_link: a
    categories_map:
      "musique actuelle": musique
  - name: Shotgun
    id: shotgun
    url: https://shotgun.live/fr/cities/marseille
    parser: html
    enabled: false
`

func TestParseSources(t *testing.T) {
	cfg, err := ParseSources([]byte(validSources))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Sources))
	}
	if got := len(cfg.Enabled()); got != 1 {
		t.Errorf("expected 1 enabled source, got %d", got)
	}

	friche := cfg.ByID("lafriche")
	if friche == nil {
		t.Fatal("expected to find source lafriche")
	}
	// Defaults propagate into sources without their own rate limit.
	if friche.RateLimit.RequestsPerSecond != 2.0 {
		t.Errorf("expected default rate limit 2.0, got %g", friche.RateLimit.RequestsPerSecond)
	}
	if friche.CategoriesMap["musique actuelle"] != "musique" {
		t.Errorf("unexpected categories map: %v", friche.CategoriesMap)
	}
}

func TestParseSourcesSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty document", content: ""},
		{name: "no sources", content: "sources: []"},
		{
			name: "missing required field",
			content: `
sources:
  - name: La Friche
    id: lafriche
    parser: html
`,
		},
		{
			name: "bad id pattern",
			content: `
sources:
  - name: La Friche
    id: "La Friche!"
    url: https://www.lafriche.org/
    parser: html
`,
		},
		{
			name: "duplicate ids",
			content: `
sources:
  - name: A
    id: lafriche
    url: https://a.example.org/
    parser: html
  - name: B
    id: lafriche
    url: https://b.example.org/
    parser: html
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSources([]byte(tt.content)); err == nil {
				t.Error("expected schema validation error")
			}
		})
	}
}

func TestSourceEnvOverrides(t *testing.T) {
	t.Setenv("AGENDA_SOURCE_SHOTGUN_ENABLED", "true")
	t.Setenv("AGENDA_SOURCE_LAFRICHE_URL", "https://staging.lafriche.org/agenda/")

	cfg, err := ParseSources([]byte(validSources))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.ByID("shotgun").Enabled {
		t.Error("expected env override to enable shotgun")
	}
	if got := cfg.ByID("lafriche").URL; got != "https://staging.lafriche.org/agenda/" {
		t.Errorf("expected env override URL, got %q", got)
	}
}
