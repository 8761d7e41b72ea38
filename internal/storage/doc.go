// Package storage persists the published canonical-event snapshot and
// per-run decision logs. The snapshot is the cross-run identity
// baseline; decision logs make every run auditable after the fact.
package storage
