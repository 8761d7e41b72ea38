package event

// Signal names the evidence behind a duplicate match.
type Signal string

const (
	SignalSameURL          Signal = "same-url"
	SignalSameBookingLink  Signal = "same-booking-link"
	SignalDateTimeLocation Signal = "date-time-location-match"
	SignalFuzzyTitle       Signal = "fuzzy-title"

	// SignalSameSourceID links a re-crawled record to the published
	// canonical it already contributed to.
	SignalSameSourceID Signal = "same-source-id"
)

// Exact reports whether the signal is strong enough to chain group
// membership. Fuzzy title similarity alone is not.
func (s Signal) Exact() bool {
	return s != SignalFuzzyTitle
}

// MatchPair is a scored duplicate hypothesis between two classified
// records. Pairs are ephemeral, computed per run.
type MatchPair struct {
	A          *Classified `json:"-"`
	B          *Classified `json:"-"`
	Confidence float64     `json:"confidence"`
	Signals    []Signal    `json:"signals"`
}

// HasExactSignal reports whether at least one non-fuzzy signal backs
// the pair. Groups may only grow through exact-signal edges.
func (p *MatchPair) HasExactSignal() bool {
	for _, s := range p.Signals {
		if s.Exact() {
			return true
		}
	}
	return false
}
