package cli

import (
	"sort"

	"github.com/massalia/agenda/internal/event"
)

// sortedByStart returns the records in display order: start time, then
// identity key as a deterministic tie-break.
func sortedByStart(canonicals []*event.Canonical) []*event.Canonical {
	out := make([]*event.Canonical, len(canonicals))
	copy(out, canonicals)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].IdentityKey < out[j].IdentityKey
	})
	return out
}
