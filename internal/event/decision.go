package event

// Reason codes for selection decisions. A rejected candidate always
// carries a non-ReasonNone code; an accepted one always carries
// ReasonNone.
type Reason string

const (
	ReasonNone            Reason = "none"
	ReasonGeography       Reason = "geography"
	ReasonDateRange       Reason = "date-range"
	ReasonExcludedType    Reason = "excluded-type"
	ReasonExcludedKeyword Reason = "excluded-keyword"
)

// Decision is the selection outcome for one candidate. It is created
// once, never mutated, and used only for logging and inspection.
type Decision struct {
	Candidate *Candidate `json:"-"`
	Accepted  bool       `json:"accepted"`
	Reason    Reason     `json:"reason"`

	// Detail names the criterion or token that triggered a rejection,
	// e.g. the matched excluded keyword.
	Detail string `json:"detail,omitempty"`

	// Boosts lists positive keywords found in the candidate's text.
	// They are recorded for downstream ranking and never gate inclusion.
	Boosts []string `json:"boosts,omitempty"`
}

// Accept builds an accepting decision for c.
func Accept(c *Candidate, boosts []string) Decision {
	return Decision{Candidate: c, Accepted: true, Reason: ReasonNone, Boosts: boosts}
}

// Reject builds a rejecting decision for c with the given reason code.
func Reject(c *Candidate, reason Reason, detail string) Decision {
	return Decision{Candidate: c, Accepted: false, Reason: reason, Detail: detail}
}
