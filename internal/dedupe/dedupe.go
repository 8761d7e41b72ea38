package dedupe

import (
	"sort"
	"time"

	"github.com/massalia/agenda/internal/config"
	"github.com/massalia/agenda/internal/event"
)

// OutcomeKind says what deduplication did with one batch record.
type OutcomeKind string

const (
	OutcomeNew      OutcomeKind = "new"
	OutcomeMerged   OutcomeKind = "merged"
	OutcomeUpdated  OutcomeKind = "updated" // merged into a previously-published record
	OutcomeConflict OutcomeKind = "conflict-split"
)

// Outcome is the per-record merge log entry: which canonical record a
// batch record ended up in, and on what evidence.
type Outcome struct {
	Source      event.SourceID `json:"source_id"`
	Kind        OutcomeKind    `json:"kind"`
	IdentityKey string         `json:"identity_key"`
	Confidence  float64        `json:"confidence"`
	Signals     []event.Signal `json:"signals,omitempty"`
}

// Result is the output of one deduplication run.
type Result struct {
	Canonicals []*event.Canonical
	Outcomes   []Outcome
	Conflicts  []Conflict
}

// Engine orchestrates matching and merging across a batch plus the
// previously-published canonical set. It is a pure function of its
// inputs: same batch, same prior set, same configuration, same output.
type Engine struct {
	matcher        *Matcher
	mergeThreshold float64
	tolerance      time.Duration
	now            func() time.Time
}

// NewEngine builds a deduplication engine. now defaults to time.Now
// when nil.
func NewEngine(cfg config.Matching, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		matcher:        NewMatcher(cfg),
		mergeThreshold: cfg.MergeThreshold,
		tolerance:      time.Duration(cfg.TimeToleranceMinutes) * time.Minute,
		now:            now,
	}
}

// scoredPair is an accepted match edge between node indices.
type scoredPair struct {
	i, j int
	pair *event.MatchPair
}

// Run deduplicates the batch against itself and the prior canonical
// set. Prior records joining a group act as the merge baseline: the
// resulting canonical keeps their identity key and is an update, not a
// new record. Prior records no batch record touches are not emitted.
func (e *Engine) Run(batch []*event.Classified, prior []*event.Canonical) Result {
	now := e.now()

	// Stable node order regardless of fetch completion order: prior
	// records by identity key, then batch records by source id.
	priorSorted := append([]*event.Canonical(nil), prior...)
	sort.Slice(priorSorted, func(i, j int) bool {
		return priorSorted[i].IdentityKey < priorSorted[j].IdentityKey
	})
	batchSorted := append([]*event.Classified(nil), batch...)
	sort.Slice(batchSorted, func(i, j int) bool {
		return batchSorted[i].Source.String() < batchSorted[j].Source.String()
	})

	nodes := make([]*node, 0, len(priorSorted)+len(batchSorted))
	for _, p := range priorSorted {
		nodes = append(nodes, &node{classified: classifiedView(p), prior: p})
	}
	firstBatch := len(nodes)
	for _, c := range batchSorted {
		nodes = append(nodes, &node{classified: c})
	}

	pairs := e.scorePairs(nodes)

	// Group phase. Fuzzy-title-only edges may join two lone records but
	// never chain into an existing group; exact-signal edges chain.
	uf := newUnionFind(len(nodes))
	accepted := make([]scoredPair, 0, len(pairs))
	for _, sp := range pairs {
		if sp.pair.Confidence < e.mergeThreshold {
			continue
		}
		if !sp.pair.HasExactSignal() &&
			(uf.componentSize(sp.i) > 1 || uf.componentSize(sp.j) > 1) {
			continue
		}
		uf.union(sp.i, sp.j)
		accepted = append(accepted, sp)
	}

	groups := make(map[int][]int)
	for i := range nodes {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}
	groupConf := make(map[int]float64)
	groupSignals := make(map[int][]event.Signal)
	for _, sp := range accepted {
		root := uf.find(sp.i)
		if cur, ok := groupConf[root]; !ok || sp.pair.Confidence < cur {
			groupConf[root] = sp.pair.Confidence
		}
		groupSignals[root] = mergeSignals(groupSignals[root], sp.pair.Signals)
	}

	// Resolve groups in deterministic order.
	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	result := Result{}
	keyByNode := make(map[int]string, len(nodes))
	kindByNode := make(map[int]OutcomeKind, len(nodes))

	for _, root := range roots {
		members := groups[root]

		hasBatch := false
		hasPrior := false
		for _, idx := range members {
			if idx >= firstBatch {
				hasBatch = true
			} else {
				hasPrior = true
			}
		}
		if !hasBatch {
			// Untouched prior records stay with the published snapshot.
			continue
		}

		groupNodes := make([]*node, 0, len(members))
		for _, idx := range members {
			groupNodes = append(groupNodes, nodes[idx])
		}
		conf, ok := groupConf[root]
		if !ok {
			conf = 1.0
		}

		canonicals, conflicts := resolveGroup(groupNodes, conf, groupSignals[root], e.tolerance, now)
		result.Canonicals = append(result.Canonicals, canonicals...)
		result.Conflicts = append(result.Conflicts, conflicts...)

		primary := canonicals[0]
		for _, idx := range members {
			n := nodes[idx]
			key := primary.IdentityKey
			kind := OutcomeNew
			switch {
			case ownSplit(n, canonicals[1:]):
				key = ownSplitKey(n, canonicals[1:])
				kind = OutcomeConflict
			case len(members) > 1 && hasPrior:
				kind = OutcomeUpdated
			case len(members) > 1:
				kind = OutcomeMerged
			}
			keyByNode[idx] = key
			kindByNode[idx] = kind
		}
	}

	// One outcome per batch record, in stable batch order.
	for i := firstBatch; i < len(nodes); i++ {
		n := nodes[i]
		conf := groupConf[uf.find(i)]
		if conf == 0 {
			conf = 1.0
		}
		result.Outcomes = append(result.Outcomes, Outcome{
			Source:      n.classified.Source,
			Kind:        kindByNode[i],
			IdentityKey: keyByNode[i],
			Confidence:  conf,
			Signals:     groupSignals[uf.find(i)],
		})
	}
	return result
}

// scorePairs buckets nodes by calendar date, normalized event URL and
// normalized booking URL, then scores each candidate pair once. Cost
// stays bounded by bucket sizes, never quadratic over the archive.
func (e *Engine) scorePairs(nodes []*node) []scoredPair {
	buckets := make(map[string][]int)
	add := func(key string, idx int) {
		if key != "" {
			buckets[key] = append(buckets[key], idx)
		}
	}
	for i, n := range nodes {
		add("day|"+n.day(), i)
		add("url|"+NormalizeURL(n.classified.EventURL), i)
		add("booking|"+NormalizeURL(n.classified.BookingURL), i)
		if n.prior != nil {
			for _, sid := range n.prior.SourceIDs {
				add("src|"+sid.String(), i)
			}
		} else {
			add("src|"+n.classified.Source.String(), i)
		}
	}

	seen := make(map[[2]int]bool)
	var pairs []scoredPair
	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		idxs := buckets[key]
		for x := 0; x < len(idxs); x++ {
			for y := x + 1; y < len(idxs); y++ {
				i, j := idxs[x], idxs[y]
				if i > j {
					i, j = j, i
				}
				if i == j || seen[[2]int{i, j}] {
					continue
				}
				seen[[2]int{i, j}] = true
				if p := e.score(nodes[i], nodes[j]); p != nil {
					pairs = append(pairs, scoredPair{i: i, j: j, pair: p})
				}
			}
		}
	}

	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].i != pairs[b].i {
			return pairs[a].i < pairs[b].i
		}
		return pairs[a].j < pairs[b].j
	})
	return pairs
}

// score evaluates one node pair. A batch record whose source id already
// contributed to a prior canonical rejoins it unconditionally; the
// matcher covers every other pairing.
func (e *Engine) score(a, b *node) *event.MatchPair {
	if p := priorRejoin(a, b); p != nil {
		return p
	}
	return e.matcher.Score(a.classified, b.classified)
}

func priorRejoin(a, b *node) *event.MatchPair {
	prior, fresh := a, b
	if prior.prior == nil {
		prior, fresh = b, a
	}
	if prior.prior == nil || fresh.prior != nil {
		return nil
	}
	if !prior.prior.HasSource(fresh.classified.Source) {
		return nil
	}
	return &event.MatchPair{
		A:          prior.classified,
		B:          fresh.classified,
		Confidence: 1.0,
		Signals:    []event.Signal{event.SignalSameSourceID},
	}
}

// classifiedView adapts a published canonical record for pairwise
// scoring against batch records.
func classifiedView(c *event.Canonical) *event.Classified {
	return &event.Classified{
		Candidate: event.Candidate{
			Name:         c.Name,
			EventURL:     c.EventURL,
			Start:        c.Start,
			End:          c.End,
			Description:  c.Description,
			ImageURL:     c.ImageURL,
			Location:     c.Location,
			Tags:         c.Tags,
			BookingURL:   c.BookingURL,
			EventGroupID: c.EventGroupID,
			DayOf:        c.DayOf,
			Source:       earliestSource(c),
			CrawledAt:    c.FirstSeen,
		},
		Category:         c.Category,
		CategoryExplicit: c.CategoryExplicit,
		VenueSlug:        c.VenueSlug,
	}
}

func earliestSource(c *event.Canonical) event.SourceID {
	if len(c.SourceIDs) > 0 {
		return c.SourceIDs[0]
	}
	return event.SourceID{}
}

func ownSplit(n *node, splits []*event.Canonical) bool {
	return ownSplitKey(n, splits) != ""
}

// ownSplitKey finds the split canonical that n became, if any.
func ownSplitKey(n *node, splits []*event.Canonical) string {
	for _, c := range splits {
		if n.prior != nil && c.IdentityKey == n.prior.IdentityKey {
			return c.IdentityKey
		}
		if n.prior == nil && len(c.SourceIDs) == 1 && c.SourceIDs[0] == n.classified.Source {
			return c.IdentityKey
		}
	}
	return ""
}
