package event

// Canonical category slugs, in tie-break priority order.
const (
	CategoryDanse      = "danse"
	CategoryMusique    = "musique"
	CategoryTheatre    = "theatre"
	CategoryArt        = "art"
	CategoryCommunaute = "communaute"
)

// Categories lists the canonical slugs in fixed priority order. The
// classifier breaks keyword-score ties by this order.
var Categories = []string{
	CategoryDanse,
	CategoryMusique,
	CategoryTheatre,
	CategoryArt,
	CategoryCommunaute,
}

// ValidCategory reports whether slug is one of the canonical categories.
func ValidCategory(slug string) bool {
	for _, c := range Categories {
		if c == slug {
			return true
		}
	}
	return false
}

// Classified is an accepted candidate with exactly one canonical
// category and a resolved venue slug. It is owned by the deduplication
// engine for the duration of matching and never re-classified.
type Classified struct {
	Candidate

	Category string `json:"category"`

	// CategoryExplicit is true when the category came from a per-source
	// mapping rather than keyword fallback. Explicit beats fallback
	// during merge.
	CategoryExplicit   bool    `json:"category_explicit"`
	CategoryConfidence float64 `json:"category_confidence"`

	// VenueSlug is empty when the raw location could not be resolved.
	// An unresolved venue is carried through, never a rejection.
	VenueSlug string `json:"venue_slug,omitempty"`
}

// VenueResolved reports whether the raw location mapped to a known venue.
func (c *Classified) VenueResolved() bool {
	return c.VenueSlug != ""
}
