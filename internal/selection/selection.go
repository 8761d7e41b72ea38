// Package selection decides which candidate events belong in the
// calendar. The engine is a pure function of a candidate and the loaded
// selection criteria: checks run in a fixed order, the first failing
// check wins, and an accepted candidate always carries reason "none".
package selection

import (
	"regexp"
	"strings"
	"time"

	"github.com/massalia/agenda/internal/config"
	"github.com/massalia/agenda/internal/event"
	"github.com/massalia/agenda/internal/textutil"
	"github.com/massalia/agenda/internal/venue"
)

var postalCodeRe = regexp.MustCompile(`\b(\d{5})\b`)

// Engine evaluates candidates against the selection criteria.
type Engine struct {
	criteria *config.Selection
	resolver *venue.Resolver // optional; a resolvable location counts as local
	now      func() time.Time

	// Skip makes the engine accept everything with reason "none".
	// Diagnostics only; it changes no other component's behavior.
	Skip bool
}

// NewEngine builds an engine. resolver may be nil; now defaults to
// time.Now when nil (tests pin it).
func NewEngine(criteria *config.Selection, resolver *venue.Resolver, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{criteria: criteria, resolver: resolver, now: now}
}

// Decide evaluates one candidate. Evaluation order is fixed and
// short-circuits: date window, geography, excluded keywords, excluded
// types. Positive keywords are recorded but never gate inclusion.
func (e *Engine) Decide(c *event.Candidate) event.Decision {
	if e.Skip {
		return event.Accept(c, e.positiveKeywords(c))
	}

	if d, ok := e.checkDates(c); !ok {
		return d
	}
	if d, ok := e.checkGeography(c); !ok {
		return d
	}
	if d, ok := e.checkExcludedKeywords(c); !ok {
		return d
	}
	if d, ok := e.checkTypes(c); !ok {
		return d
	}

	return event.Accept(c, e.positiveKeywords(c))
}

// checkDates requires the start to fall inside
// [today+min_days_ahead, today+max_days_ahead] in the reference zone.
func (e *Engine) checkDates(c *event.Candidate) (event.Decision, bool) {
	now := e.now().In(event.Paris)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, event.Paris)

	start := c.Start.In(event.Paris)
	if start.Before(today) {
		return event.Reject(c, event.ReasonDateRange, "event is in the past"), false
	}

	min := today.AddDate(0, 0, e.criteria.Dates.MinDaysAhead)
	if start.Before(min) {
		return event.Reject(c, event.ReasonDateRange, "event starts before the minimum window"), false
	}

	// Max bound is inclusive of the whole last day.
	max := today.AddDate(0, 0, e.criteria.Dates.MaxDaysAhead+1)
	if !start.Before(max) {
		return event.Reject(c, event.ReasonDateRange, "event starts beyond the maximum window"), false
	}
	return event.Decision{}, true
}

// checkGeography requires the raw location (or a resolvable venue) to
// match an included-area token, postal-code prefix or local keyword.
func (e *Engine) checkGeography(c *event.Candidate) (event.Decision, bool) {
	geo := e.criteria.Geography
	if len(geo.IncludeAreas) == 0 && len(geo.PostalPrefixes) == 0 && len(geo.LocalKeywords) == 0 {
		return event.Decision{}, true
	}

	// A location that resolves to a known venue is local by definition:
	// the registry only holds venues inside the coverage area.
	if e.resolver != nil {
		if _, ok := e.resolver.Resolve(c.Location); ok {
			return event.Decision{}, true
		}
	}

	text := textutil.Normalize(c.Location)
	for _, area := range geo.IncludeAreas {
		if area == "" {
			continue
		}
		if strings.Contains(text, textutil.Normalize(area)) {
			return event.Decision{}, true
		}
	}
	for _, code := range postalCodeRe.FindAllString(c.Location, -1) {
		for _, prefix := range geo.PostalPrefixes {
			if prefix != "" && strings.HasPrefix(code, prefix) {
				return event.Decision{}, true
			}
		}
	}
	for _, kw := range geo.LocalKeywords {
		if kw != "" && strings.Contains(text, textutil.Normalize(kw)) {
			return event.Decision{}, true
		}
	}

	return event.Reject(c, event.ReasonGeography, "location matches no included area"), false
}

// checkExcludedKeywords scans name, description and tags for negative
// tokens (cancelled, sold out, professional-training markers, ...).
func (e *Engine) checkExcludedKeywords(c *event.Candidate) (event.Decision, bool) {
	text := e.searchText(c)
	for _, kw := range e.criteria.Keywords.Negative {
		norm := textutil.Normalize(kw)
		if norm != "" && strings.Contains(text, norm) {
			return event.Reject(c, event.ReasonExcludedKeyword, kw), false
		}
	}
	return event.Decision{}, true
}

// checkTypes rejects explicitly excluded event types and, when an
// include list is configured, anything matching none of it.
func (e *Engine) checkTypes(c *event.Candidate) (event.Decision, bool) {
	text := e.searchText(c) + " " + textutil.Normalize(strings.Join(c.Categories, " "))

	for _, typ := range e.criteria.EventTypes.Exclude {
		norm := textutil.Normalize(typ)
		if norm != "" && strings.Contains(text, norm) {
			return event.Reject(c, event.ReasonExcludedType, typ), false
		}
	}

	if len(e.criteria.EventTypes.Include) > 0 {
		for _, typ := range e.criteria.EventTypes.Include {
			if strings.Contains(text, textutil.Normalize(typ)) {
				return event.Decision{}, true
			}
		}
		return event.Reject(c, event.ReasonExcludedType, "matches no included event type"), false
	}
	return event.Decision{}, true
}

func (e *Engine) positiveKeywords(c *event.Candidate) []string {
	text := e.searchText(c)
	var found []string
	for _, kw := range e.criteria.Keywords.Positive {
		norm := textutil.Normalize(kw)
		if norm != "" && strings.Contains(text, norm) {
			found = append(found, kw)
		}
	}
	return found
}

func (e *Engine) searchText(c *event.Candidate) string {
	parts := []string{c.Name, c.Description}
	parts = append(parts, c.Tags...)
	return textutil.Normalize(strings.Join(parts, " "))
}
