package event

import (
	"fmt"
	"strings"
	"time"
)

// Paris is the reference time zone for all date arithmetic. Every start
// timestamp that enters the pipeline carries an explicit offset from it.
var Paris = loadParis()

func loadParis() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		// Containers without tzdata still get a usable offset.
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// SourceID identifies one extraction: the source adapter plus the
// source-local id of the listing it came from.
type SourceID struct {
	Source  string `json:"source"`
	LocalID string `json:"local_id"`
}

func (s SourceID) String() string {
	return s.Source + ":" + s.LocalID
}

// IsZero reports whether the source id is unset.
func (s SourceID) IsZero() bool {
	return s.Source == "" && s.LocalID == ""
}

// Candidate is a single source's extraction of one event occurrence,
// prior to any decision. Adapters guarantee Name, EventURL and Start
// are populated; Validate enforces that at the pipeline boundary.
type Candidate struct {
	Name        string    `json:"name"`
	EventURL    string    `json:"event_url"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Location    string    `json:"location,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	BookingURL  string    `json:"booking_url,omitempty"`

	// Multi-day event support: siblings share an EventGroupID and carry a
	// "Jour N sur M" marker. Siblings are never duplicates of each other.
	EventGroupID string `json:"event_group_id,omitempty"`
	DayOf        string `json:"day_of,omitempty"`

	Source    SourceID  `json:"source_id"`
	CrawledAt time.Time `json:"crawled_at"`
}

// ValidationError reports a candidate missing a required field. The
// record is dropped and logged; the run continues.
type ValidationError struct {
	Source SourceID
	Field  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("candidate %s: missing required field %q", e.Source, e.Field)
}

// Validate checks the invariants adapters are expected to uphold.
func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Source: c.Source, Field: "name"}
	}
	if strings.TrimSpace(c.EventURL) == "" {
		return &ValidationError{Source: c.Source, Field: "event_url"}
	}
	if c.Start.IsZero() {
		return &ValidationError{Source: c.Source, Field: "start"}
	}
	return nil
}

// Day returns the calendar date of the event start in the reference
// time zone, formatted as YYYY-MM-DD. Used for dedupe bucketing.
func (c *Candidate) Day() string {
	return c.Start.In(Paris).Format("2006-01-02")
}

// StartClock returns the start time of day in the reference time zone.
func (c *Candidate) StartClock() string {
	return c.Start.In(Paris).Format("15:04")
}
