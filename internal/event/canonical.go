package event

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
)

// IdentityKey derives the stable key that recognizes "the same canonical
// event" across runs. Multi-day groups key on the event-group id plus
// the day marker, so the same day found via different sources lands on
// one key while siblings stay apart; everything else keys on the
// earliest-seen source id.
func IdentityKey(eventGroupID, dayOf string, earliest SourceID) string {
	seed := strings.TrimSpace(eventGroupID)
	if seed == "" {
		seed = earliest.String()
	} else if dayOf != "" {
		seed += "|" + dayOf
	}
	h := sha1.New()
	h.Write([]byte(seed))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Canonical is the deduplicated, merged record representing one
// real-world occurrence, as emitted for publishing. It is the only
// long-lived artifact of a run.
type Canonical struct {
	IdentityKey string `json:"identity_key"`

	Name        string    `json:"name"`
	EventURL    string    `json:"event_url"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Category    string    `json:"category"`
	VenueSlug   string    `json:"venue_slug,omitempty"`
	Location    string    `json:"location,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	BookingURL  string    `json:"booking_url,omitempty"`

	EventGroupID string `json:"event_group_id,omitempty"`
	DayOf        string `json:"day_of,omitempty"`

	// CategoryExplicit is carried so later merges still know whether the
	// category can be beaten by an explicitly mapped one.
	CategoryExplicit bool `json:"category_explicit"`

	// SourceIDs lists every contributing extraction, earliest first.
	SourceIDs []SourceID `json:"source_ids"`

	// AlternateURLs collects event URLs from merged duplicates that
	// differ from the primary EventURL.
	AlternateURLs []string `json:"alternate_urls,omitempty"`

	// CrossRefs holds identity keys of records split off after a merge
	// conflict, so operators can find the disputed twin.
	CrossRefs []string `json:"cross_refs,omitempty"`

	MergeConfidence float64  `json:"merge_confidence"`
	Signals         []Signal `json:"signals,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCanonical lifts a single classified record into a canonical one.
// Merge folds further records in afterwards.
func NewCanonical(c *Classified, now time.Time) *Canonical {
	return &Canonical{
		IdentityKey:      IdentityKey(c.EventGroupID, c.DayOf, c.Source),
		Name:             c.Name,
		EventURL:         c.EventURL,
		Start:            c.Start,
		End:              c.End,
		Description:      c.Description,
		ImageURL:         c.ImageURL,
		Category:         c.Category,
		VenueSlug:        c.VenueSlug,
		Location:         c.Location,
		Tags:             append([]string(nil), c.Tags...),
		BookingURL:       c.BookingURL,
		EventGroupID:     c.EventGroupID,
		DayOf:            c.DayOf,
		CategoryExplicit: c.CategoryExplicit,
		SourceIDs:        []SourceID{c.Source},
		MergeConfidence:  1.0,
		FirstSeen:        now,
		UpdatedAt:        now,
	}
}

// Day returns the calendar date of the event start in the reference
// time zone, formatted as YYYY-MM-DD.
func (c *Canonical) Day() string {
	return c.Start.In(Paris).Format("2006-01-02")
}

// HasSource reports whether id already contributed to this record.
func (c *Canonical) HasSource(id SourceID) bool {
	for _, s := range c.SourceIDs {
		if s == id {
			return true
		}
	}
	return false
}
