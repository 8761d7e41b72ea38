package venue

import (
	"strings"

	"github.com/massalia/agenda/internal/textutil"
)

// DuplicatePair reports two registry entries that probably describe
// the same physical venue.
type DuplicatePair struct {
	SlugA      string  `json:"slug_a"`
	SlugB      string  `json:"slug_b"`
	Similarity float64 `json:"similarity"`
	MatchType  string  `json:"match_type"` // "name", "address" or "website"
}

// AuditResult summarizes registry health for operators.
type AuditResult struct {
	TotalVenues   int             `json:"total_venues"`
	MissingFields []MissingFields `json:"missing_fields,omitempty"`
	Duplicates    []DuplicatePair `json:"duplicates,omitempty"`
}

// MissingFields lists incomplete registry entries.
type MissingFields struct {
	Slug   string   `json:"slug"`
	Fields []string `json:"fields"`
}

// Audit checks the registry for incomplete entries and probable
// duplicates. threshold is the minimum similarity to report.
func (r *Registry) Audit(threshold float64) AuditResult {
	result := AuditResult{TotalVenues: len(r.venues)}

	for _, v := range r.venues {
		var missing []string
		if v.Title == "" {
			missing = append(missing, "title")
		}
		if v.Address == "" {
			missing = append(missing, "address")
		}
		if v.Website == "" {
			missing = append(missing, "website")
		}
		if len(missing) > 0 {
			result.MissingFields = append(result.MissingFields, MissingFields{Slug: v.Slug, Fields: missing})
		}
	}

	for i := 0; i < len(r.venues); i++ {
		for j := i + 1; j < len(r.venues); j++ {
			a, b := r.venues[i], r.venues[j]

			if sim := textutil.Similarity(a.Title, b.Title); a.Title != "" && b.Title != "" && sim >= threshold {
				result.Duplicates = append(result.Duplicates, DuplicatePair{
					SlugA: a.Slug, SlugB: b.Slug, Similarity: sim, MatchType: "name",
				})
				continue
			}
			if a.Address != "" && b.Address != "" && len(a.Address) > 10 && len(b.Address) > 10 {
				if sim := textutil.Similarity(a.Address, b.Address); sim >= threshold {
					result.Duplicates = append(result.Duplicates, DuplicatePair{
						SlugA: a.Slug, SlugB: b.Slug, Similarity: sim, MatchType: "address",
					})
					continue
				}
			}
			if da, db := domain(a.Website), domain(b.Website); da != "" && da == db {
				result.Duplicates = append(result.Duplicates, DuplicatePair{
					SlugA: a.Slug, SlugB: b.Slug, Similarity: 1.0, MatchType: "website",
				})
			}
		}
	}
	return result
}

func domain(url string) string {
	url = strings.ToLower(strings.TrimSpace(url))
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "www.")
	if i := strings.IndexByte(url, '/'); i >= 0 {
		url = url[:i]
	}
	return url
}
