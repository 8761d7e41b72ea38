// Package event defines the records that flow through the decision pipeline.
//
// A Candidate is one source's extraction of one event occurrence. Selection
// produces a Decision per candidate, classification turns accepted candidates
// into Classified records, and deduplication merges matched groups into
// Canonical records — the only long-lived artifact. Each canonical record
// carries a deterministic SHA1-based identity key so the same real-world
// event is recognized across separate pipeline runs.
package event
