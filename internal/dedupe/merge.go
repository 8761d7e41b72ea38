package dedupe

import (
	"fmt"
	"sort"
	"time"

	"github.com/massalia/agenda/internal/event"
)

// node is one participant in matching: either a classified record from
// the current batch or a previously-published canonical acting as the
// merge baseline.
type node struct {
	classified *event.Classified
	prior      *event.Canonical
}

// rank orders nodes for merging: prior canonicals first (they are the
// baseline), then earliest-crawled, then source id for determinism.
func rankLess(a, b *node) bool {
	if (a.prior != nil) != (b.prior != nil) {
		return a.prior != nil
	}
	if !a.classified.CrawledAt.Equal(b.classified.CrawledAt) {
		return a.classified.CrawledAt.Before(b.classified.CrawledAt)
	}
	return a.classified.Source.String() < b.classified.Source.String()
}

// Conflict records a duplicate signal that could not be honored: two
// records disagreed on a material field (date/time), so both were kept
// and cross-referenced instead of silently picking one.
type Conflict struct {
	BaseKey  string `json:"base_key"`
	SplitKey string `json:"split_key"`
	Detail   string `json:"detail"`
}

// resolveGroup turns one connected match group into canonical records.
// Members agreeing with the earliest member's date/time merge into one
// record; materially disagreeing members, and sibling days of a run an
// agreeing member already represents, are split off as independent
// records with cross-reference tags, and each split is reported.
func resolveGroup(members []*node, confidence float64, signals []event.Signal, tolerance time.Duration, now time.Time) ([]*event.Canonical, []Conflict) {
	sorted := make([]*node, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return rankLess(sorted[i], sorted[j]) })

	base := sorted[0]
	agreeing := []*node{base}
	type pending struct {
		n      *node
		detail string
	}
	var disagreeing []pending
	for _, n := range sorted[1:] {
		// Siblings never match directly, but shared exact evidence (one
		// listing URL for the whole run) can chain them into one group.
		// A different day of a run some agreeing member already covers
		// stays its own record even when the published starts coincide.
		if sib := siblingIn(agreeing, n); sib != nil {
			disagreeing = append(disagreeing, pending{n, fmt.Sprintf(
				"distinct days of one run: %q vs %q",
				sib.classified.DayOf, n.classified.DayOf)})
			continue
		}
		if materialDisagreement(base, n, tolerance) {
			disagreeing = append(disagreeing, pending{n, fmt.Sprintf(
				"duplicate signal but start differs: %s vs %s",
				base.start().Format(time.RFC3339), n.start().Format(time.RFC3339))})
			continue
		}
		agreeing = append(agreeing, n)
	}

	merged := mergeNodes(agreeing, confidence, signals, now)

	var out []*event.Canonical
	var conflicts []Conflict
	out = append(out, merged)

	for _, p := range disagreeing {
		split := mergeNodes([]*node{p.n}, 1.0, nil, now)
		split.CrossRefs = append(split.CrossRefs, merged.IdentityKey)
		merged.CrossRefs = append(merged.CrossRefs, split.IdentityKey)
		conflicts = append(conflicts, Conflict{
			BaseKey:  merged.IdentityKey,
			SplitKey: split.IdentityKey,
			Detail:   p.detail,
		})
		out = append(out, split)
	}
	return out, conflicts
}

// siblingIn finds an agreeing member that is a sibling of n: same
// event-group id, different day marker.
func siblingIn(agreeing []*node, n *node) *node {
	for _, m := range agreeing {
		if siblings(m.classified, n.classified) {
			return m
		}
	}
	return nil
}

// materialDisagreement reports whether n's start differs from the
// base's by more than the tolerance, or lands on another day.
func materialDisagreement(base, n *node, tolerance time.Duration) bool {
	if base.day() != n.day() {
		return true
	}
	return absDuration(base.start().Sub(n.start())) > tolerance
}

// mergeNodes combines an agreeing group into one canonical record.
// Field policy, each field independent: prior published data is the
// baseline; the longest description wins; a present image beats an
// absent one; an explicitly mapped category beats a keyword-fallback
// one; name and start come from the earliest member. The result does
// not depend on pair evaluation order, only on the canonical member
// ordering.
func mergeNodes(sorted []*node, confidence float64, signals []event.Signal, now time.Time) *event.Canonical {
	base := sorted[0]

	var merged *event.Canonical
	if base.prior != nil {
		clone := *base.prior
		clone.Tags = append([]string(nil), base.prior.Tags...)
		clone.SourceIDs = append([]event.SourceID(nil), base.prior.SourceIDs...)
		clone.AlternateURLs = append([]string(nil), base.prior.AlternateURLs...)
		clone.CrossRefs = append([]string(nil), base.prior.CrossRefs...)
		merged = &clone
	} else {
		merged = event.NewCanonical(base.classified, now)
	}

	for _, n := range sorted[1:] {
		foldIn(merged, n.classified)
	}

	if confidence < merged.MergeConfidence {
		merged.MergeConfidence = confidence
	}
	merged.Signals = mergeSignals(merged.Signals, signals)
	merged.UpdatedAt = now
	return merged
}

// foldIn improves merged with data from one more contributor.
func foldIn(merged *event.Canonical, c *event.Classified) {
	if !merged.HasSource(c.Source) {
		merged.SourceIDs = append(merged.SourceIDs, c.Source)
	}

	if len(c.Description) > len(merged.Description) {
		merged.Description = c.Description
	}
	if merged.ImageURL == "" {
		merged.ImageURL = c.ImageURL
	}
	if merged.BookingURL == "" {
		merged.BookingURL = c.BookingURL
	}
	if merged.VenueSlug == "" {
		merged.VenueSlug = c.VenueSlug
	}
	if merged.Location == "" {
		merged.Location = c.Location
	}
	if merged.EventGroupID == "" {
		merged.EventGroupID = c.EventGroupID
	}
	if merged.DayOf == "" {
		merged.DayOf = c.DayOf
	}
	if merged.End.IsZero() {
		merged.End = c.End
	}
	if c.CategoryExplicit && !merged.CategoryExplicit {
		merged.Category = c.Category
		merged.CategoryExplicit = true
	}

	if url := c.EventURL; url != "" && NormalizeURL(url) != NormalizeURL(merged.EventURL) {
		if !containsString(merged.AlternateURLs, url) {
			merged.AlternateURLs = append(merged.AlternateURLs, url)
		}
	}
	for _, tag := range c.Tags {
		if !containsString(merged.Tags, tag) {
			merged.Tags = append(merged.Tags, tag)
		}
	}
}

func mergeSignals(existing, extra []event.Signal) []event.Signal {
	for _, s := range extra {
		found := false
		for _, have := range existing {
			if have == s {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, s)
		}
	}
	return existing
}

func containsString(list []string, s string) bool {
	for _, have := range list {
		if have == s {
			return true
		}
	}
	return false
}

func (n *node) start() time.Time {
	if n.prior != nil {
		return n.prior.Start
	}
	return n.classified.Start
}

func (n *node) day() string {
	if n.prior != nil {
		return n.prior.Day()
	}
	return n.classified.Day()
}
