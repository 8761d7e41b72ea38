// Package venue maps free-text location strings to canonical venue
// slugs. The registry (venues.yaml) is the single source of truth for
// venue data; resolution tries exact normalized match, then substring
// containment, then fuzzy similarity with an ambiguity guard.
package venue

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/massalia/agenda/internal/config"
	"github.com/massalia/agenda/internal/textutil"
)

// Venue is one registry entry.
type Venue struct {
	Slug        string   `yaml:"slug"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description,omitempty"`
	Address     string   `yaml:"address,omitempty"`
	Website     string   `yaml:"website,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty"`
	SearchNames []string `yaml:"search_names,omitempty"`
}

// Registry holds the known venues plus the normalized lookup table
// built from titles, slugs, aliases and search names.
type Registry struct {
	venues []Venue
	lookup map[string]string // normalized key -> slug
	keys   []string          // lookup keys, longest first
}

// LoadRegistry reads venues.yaml. A missing registry is fatal: venue
// resolution without venues cannot mean anything.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.Error{Document: "venues", Err: err}
	}

	var venues []Venue
	if err := yaml.Unmarshal(data, &venues); err != nil {
		return nil, &config.Error{Document: "venues", Err: fmt.Errorf("invalid YAML: %w", err)}
	}
	return NewRegistry(venues)
}

// NewRegistry builds a registry from venue entries.
func NewRegistry(venues []Venue) (*Registry, error) {
	r := &Registry{venues: venues}
	if err := r.buildLookup(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) buildLookup() error {
	lookup := make(map[string]string)

	for _, v := range r.venues {
		if v.Slug == "" {
			return &config.Error{Document: "venues", Err: fmt.Errorf("venue %q has no slug", v.Title)}
		}

		keys := make(map[string]bool)
		keys[textutil.SlugToWords(v.Slug)] = true

		if v.Title != "" {
			norm := textutil.Normalize(v.Title)
			keys[norm] = true
			if stripped := textutil.StripArticles(norm); stripped != "" {
				keys[stripped] = true
			}
		}
		for _, alias := range v.Aliases {
			if slug := aliasSlug(alias); slug != "" {
				keys[textutil.SlugToWords(slug)] = true
			}
		}
		for _, name := range v.SearchNames {
			if norm := textutil.Normalize(name); norm != "" {
				keys[norm] = true
			}
		}

		// First venue wins on key collision, matching registry order.
		for key := range keys {
			if key == "" {
				continue
			}
			if _, taken := lookup[key]; !taken {
				lookup[key] = v.Slug
			}
		}
	}

	r.lookup = lookup
	r.keys = make([]string, 0, len(lookup))
	for key := range lookup {
		r.keys = append(r.keys, key)
	}
	// Longest key first so "theatre de la criee" beats "theatre".
	sort.Slice(r.keys, func(i, j int) bool {
		if len(r.keys[i]) != len(r.keys[j]) {
			return len(r.keys[i]) > len(r.keys[j])
		}
		return r.keys[i] < r.keys[j]
	})
	return nil
}

// aliasSlug extracts the slug from a site alias path:
// "/locations/friche-la-belle-de-mai/" -> "friche-la-belle-de-mai".
func aliasSlug(alias string) string {
	parts := strings.Split(strings.Trim(alias, "/"), "/")
	if len(parts) >= 2 && parts[0] == "locations" {
		return parts[1]
	}
	return ""
}

// Get returns the venue for a slug.
func (r *Registry) Get(slug string) (Venue, bool) {
	for _, v := range r.venues {
		if v.Slug == slug {
			return v, true
		}
	}
	return Venue{}, false
}

// Len returns the number of registered venues.
func (r *Registry) Len() int {
	return len(r.venues)
}
