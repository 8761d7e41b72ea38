package venue

import (
	"strings"

	"github.com/massalia/agenda/internal/textutil"
)

// Resolver maps raw location strings to canonical venue slugs.
// Resolution failure is not an error: unresolved locations are carried
// through the pipeline and flagged for manual venue creation.
type Resolver struct {
	registry *Registry

	// similarity is the minimum fuzzy score for a match; margin is how
	// close a runner-up may come before the match counts as ambiguous.
	similarity float64
	margin     float64
}

// NewResolver builds a resolver over the registry with the configured
// fuzzy threshold and ambiguity margin.
func NewResolver(registry *Registry, similarity, margin float64) *Resolver {
	return &Resolver{registry: registry, similarity: similarity, margin: margin}
}

// Resolve maps a raw location to a venue slug. ok is false when the
// location is unknown or the best fuzzy match is ambiguous.
func (r *Resolver) Resolve(rawLocation string) (slug string, ok bool) {
	normalized := textutil.Normalize(rawLocation)
	if normalized == "" {
		return "", false
	}

	// 1. Exact match on a known key.
	if slug, ok := r.registry.lookup[normalized]; ok {
		return slug, true
	}

	// 2. Substring containment, either direction, longest key first.
	for _, key := range r.registry.keys {
		if contains(normalized, key) || contains(key, normalized) {
			return r.registry.lookup[key], true
		}
	}

	// 3. Fuzzy similarity against the full key set. Ambiguous results
	// (runner-up for a different venue within the margin) return no
	// match rather than guessing.
	var best, second float64
	var bestSlug string
	for _, key := range r.registry.keys {
		score := textutil.Similarity(normalized, key)
		if score > best {
			if r.registry.lookup[key] != bestSlug {
				second = best
			}
			best = score
			bestSlug = r.registry.lookup[key]
		} else if score > second && r.registry.lookup[key] != bestSlug {
			second = score
		}
	}
	if best >= r.similarity && best-second > r.margin {
		return bestSlug, true
	}
	return "", false
}

// contains is substring containment over normalized text. Very short
// needles are ignored; they match everything.
func contains(haystack, needle string) bool {
	if len(needle) < 4 {
		return false
	}
	return strings.Contains(haystack, needle)
}
