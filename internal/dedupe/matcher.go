// Package dedupe resolves cross-source identity: it scores candidate
// pairs for duplicate confidence, groups matches transitively, and
// merges each group into one canonical record. Previously-published
// canonical records join the match pool as baselines so a later run
// updates them instead of emitting duplicates.
package dedupe

import (
	"time"

	"github.com/massalia/agenda/internal/config"
	"github.com/massalia/agenda/internal/event"
	"github.com/massalia/agenda/internal/textutil"
)

// Signal confidences. Exact link identity is certain; venue/date/time
// agreement is near-certain; fuzzy titles alone are only a hypothesis
// until corroborated.
const (
	confURL             = 1.0
	confBooking         = 1.0
	confDateTimeVenue   = 0.95
	confDateTimeNoVenue = 0.75
	confFuzzyTitle      = 0.75
	confFuzzyCorrob     = 0.85
)

// Matcher computes duplicate confidence between two classified records.
// It is a pure function of its inputs and the matching thresholds.
type Matcher struct {
	titleSimilarity float64
	timeTolerance   time.Duration
}

// NewMatcher builds a matcher from the matching configuration.
func NewMatcher(cfg config.Matching) *Matcher {
	return &Matcher{
		titleSimilarity: cfg.TitleSimilarity,
		timeTolerance:   time.Duration(cfg.TimeToleranceMinutes) * time.Minute,
	}
}

// Score evaluates one pair. It returns nil when no duplicate signal
// fires. Multi-day siblings (same event-group id, different day
// markers) are never matched, whatever the other signals say.
func (m *Matcher) Score(a, b *event.Classified) *event.MatchPair {
	if a.Source == b.Source {
		// Same extraction twice; the adapter deduplicates local ids.
		return nil
	}
	if siblings(a, b) {
		return nil
	}

	var signals []event.Signal
	confidence := 0.0
	record := func(s event.Signal, conf float64) {
		signals = append(signals, s)
		if conf > confidence {
			confidence = conf
		}
	}

	if ua, ub := NormalizeURL(a.EventURL), NormalizeURL(b.EventURL); ua != "" && ua == ub {
		record(event.SignalSameURL, confURL)
	}
	if ba, bb := NormalizeURL(a.BookingURL), NormalizeURL(b.BookingURL); ba != "" && ba == bb {
		record(event.SignalSameBookingLink, confBooking)
	}

	sameDay := a.Day() == b.Day()
	withinTolerance := absDuration(a.Start.Sub(b.Start)) <= m.timeTolerance

	if sameDay && withinTolerance {
		switch {
		case a.VenueResolved() && b.VenueResolved() && a.VenueSlug == b.VenueSlug:
			record(event.SignalDateTimeLocation, confDateTimeVenue)
		case !a.VenueResolved() || !b.VenueResolved():
			// Venue unresolved on at least one side: fall back to the
			// normalized raw location, at reduced confidence.
			la, lb := textutil.Normalize(a.Location), textutil.Normalize(b.Location)
			if la != "" && la == lb {
				record(event.SignalDateTimeLocation, confDateTimeNoVenue)
			}
		}
	}

	if sameDay && textutil.Similarity(a.Name, b.Name) >= m.titleSimilarity {
		conf := confFuzzyTitle
		// Venue agreement corroborates a fuzzy title.
		if a.VenueResolved() && b.VenueResolved() && a.VenueSlug == b.VenueSlug {
			conf = confFuzzyCorrob
		}
		record(event.SignalFuzzyTitle, conf)
	}

	if len(signals) == 0 {
		return nil
	}
	return &event.MatchPair{A: a, B: b, Confidence: confidence, Signals: signals}
}

// siblings reports whether a and b are days of the same multi-day
// event group. Siblings are related, never duplicates.
func siblings(a, b *event.Classified) bool {
	return a.EventGroupID != "" && a.EventGroupID == b.EventGroupID && a.DayOf != b.DayOf
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
