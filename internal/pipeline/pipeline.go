// Package pipeline orchestrates one crawl run: fetch candidates from
// every source, select, classify, resolve venues, deduplicate against
// the published set, and emit canonical records plus a decision log
// that accounts for every input candidate.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/massalia/agenda/internal/adapter"
	"github.com/massalia/agenda/internal/classify"
	"github.com/massalia/agenda/internal/config"
	"github.com/massalia/agenda/internal/dedupe"
	"github.com/massalia/agenda/internal/event"
	"github.com/massalia/agenda/internal/selection"
	"github.com/massalia/agenda/internal/venue"
)

// State names the stage a run has reached.
type State string

const (
	StateFetched      State = "fetched"
	StateSelected     State = "selected"
	StateClassified   State = "classified"
	StateDeduplicated State = "deduplicated"
	StateEmitted      State = "emitted"
	StateFailed       State = "failed"
)

// Status is the run exit status.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
)

// Outcome values for decision-log entries. Every candidate gets exactly
// one entry with exactly one of these.
const (
	LogAcceptedNew   = "accepted-new"
	LogMerged        = "merged"
	LogUpdated       = "merged-update"
	LogConflictSplit = "conflict-split"
	LogRejected      = "rejected"
	LogDropped       = "dropped"
)

// LogEntry records what happened to one input candidate.
type LogEntry struct {
	Source      event.SourceID `json:"source_id"`
	Name        string         `json:"name"`
	Outcome     string         `json:"outcome"`
	Reason      string         `json:"reason,omitempty"`
	IdentityKey string         `json:"identity_key,omitempty"`
	Confidence  float64        `json:"confidence,omitempty"`
	Signals     []event.Signal `json:"signals,omitempty"`
}

// SourceStat reports one source's fetch outcome.
type SourceStat struct {
	ID      string `json:"id"`
	Fetched int    `json:"fetched"`
	Error   string `json:"error,omitempty"`
}

// Counts summarizes a run for reporting.
type Counts struct {
	Candidates int `json:"candidates"`
	Accepted   int `json:"accepted"`
	Merged     int `json:"merged"`
	Updated    int `json:"updated"`
	Rejected   int `json:"rejected"`
	Dropped    int `json:"dropped"`
	Conflicts  int `json:"conflicts"`
}

// Result is the output of one run.
type Result struct {
	RunID      string    `json:"run_id"`
	State      State     `json:"state"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Canonicals []*event.Canonical `json:"canonicals"`
	Log        []LogEntry         `json:"log"`
	Sources    []SourceStat       `json:"sources"`
	Counts     Counts             `json:"counts"`

	// Unresolved collects raw location strings no venue matched, for
	// manual venue-page creation.
	Unresolved []string `json:"unresolved_locations,omitempty"`
}

// Pipeline wires the run stages together. Construct once per process;
// Run may be called repeatedly.
type Pipeline struct {
	registry   *adapter.Registry
	selector   *selection.Engine
	classifier *classify.Classifier
	resolver   *venue.Resolver
	engine     *dedupe.Engine
	log        zerolog.Logger
	now        func() time.Time

	// SourceConcurrency bounds parallel source fetches.
	SourceConcurrency int
}

// New assembles a pipeline from loaded configuration. now may be nil.
func New(criteria *config.Selection, registry *adapter.Registry, venues *venue.Registry, logger zerolog.Logger, skipSelection bool, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	resolver := venue.NewResolver(venues, criteria.Matching.VenueSimilarity, criteria.Matching.VenueAmbiguityMargin)
	selector := selection.NewEngine(criteria, resolver, now)
	selector.Skip = skipSelection

	return &Pipeline{
		registry:          registry,
		selector:          selector,
		classifier:        classify.New(criteria.Category),
		resolver:          resolver,
		engine:            dedupe.NewEngine(criteria.Matching, now),
		log:               logger,
		now:               now,
		SourceConcurrency: 3,
	}
}

// Run executes one crawl against the prior canonical set. Cancellation
// mid-fetch degrades to a partial run over the sources that completed;
// the core stages always finish so partial results stay inspectable.
// The returned error is non-nil only on total source loss.
func (p *Pipeline) Run(ctx context.Context, prior []*event.Canonical) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
	}
	log := p.log.With().Str("run_id", result.RunID).Logger()
	log.Info().Int("sources", p.registry.Len()).Int("prior", len(prior)).Msg("run started")

	candidates := p.fetch(ctx, result, log)
	result.State = StateFetched
	result.Counts.Candidates = len(candidates)

	failed := 0
	for _, st := range result.Sources {
		if st.Error != "" {
			failed++
		}
	}
	if len(result.Sources) > 0 && failed == len(result.Sources) {
		result.State = StateFailed
		result.Status = StatusFailure
		result.FinishedAt = p.now()
		return result, fmt.Errorf("all %d sources failed", failed)
	}

	accepted := p.selectStage(candidates, result, log)
	result.State = StateSelected

	classified := p.classifyStage(accepted, result, log)
	result.State = StateClassified

	p.dedupeStage(classified, prior, result, log)
	result.State = StateDeduplicated

	if failed > 0 {
		result.Status = StatusPartial
	} else {
		result.Status = StatusSuccess
	}
	result.State = StateEmitted
	result.FinishedAt = p.now()

	log.Info().
		Str("status", string(result.Status)).
		Int("accepted", result.Counts.Accepted).
		Int("merged", result.Counts.Merged).
		Int("rejected", result.Counts.Rejected).
		Int("dropped", result.Counts.Dropped).
		Msg("run finished")
	return result, nil
}

// fetch pulls candidates from every source with bounded concurrency.
// A source failure is contained to its stat entry.
func (p *Pipeline) fetch(ctx context.Context, result *Result, log zerolog.Logger) []event.Candidate {
	adapters := p.registry.All()
	stats := make([]SourceStat, len(adapters))
	batches := make([][]event.Candidate, len(adapters))

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(p.SourceConcurrency)

	for i, a := range adapters {
		i, a := i, a
		g.Go(func() error {
			candidates, err := a.Fetch(ctx)
			mu.Lock()
			defer mu.Unlock()
			stats[i] = SourceStat{ID: a.ID(), Fetched: len(candidates)}
			if err != nil {
				stats[i].Error = err.Error()
				log.Warn().Str("source", a.ID()).Err(err).Msg("source fetch failed")
				return nil
			}
			batches[i] = candidates
			return nil
		})
	}
	_ = g.Wait()

	result.Sources = stats

	var all []event.Candidate
	for _, batch := range batches {
		all = append(all, batch...)
	}
	// Stable order regardless of fetch completion order.
	sort.Slice(all, func(i, j int) bool {
		return all[i].Source.String() < all[j].Source.String()
	})
	return all
}

// selectStage validates and filters candidates, logging one decision
// per candidate. Validation failures drop the record, never the batch.
func (p *Pipeline) selectStage(candidates []event.Candidate, result *Result, log zerolog.Logger) []event.Candidate {
	accepted := make([]event.Candidate, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]

		if err := c.Validate(); err != nil {
			verr, _ := err.(*event.ValidationError)
			reason := "validation"
			if verr != nil {
				reason = "missing " + verr.Field
			}
			result.Log = append(result.Log, LogEntry{
				Source: c.Source, Name: c.Name, Outcome: LogDropped, Reason: reason,
			})
			result.Counts.Dropped++
			log.Debug().Stringer("candidate", c.Source).Str("reason", reason).Msg("candidate dropped")
			continue
		}

		decision := p.selector.Decide(c)
		if !decision.Accepted {
			result.Log = append(result.Log, LogEntry{
				Source:  c.Source,
				Name:    c.Name,
				Outcome: LogRejected,
				Reason:  string(decision.Reason),
			})
			result.Counts.Rejected++
			log.Debug().Stringer("candidate", c.Source).
				Str("reason", string(decision.Reason)).Str("detail", decision.Detail).
				Msg("candidate rejected")
			continue
		}
		accepted = append(accepted, *c)
	}
	return accepted
}

// classifyStage assigns categories and resolves venues. Under the
// reject fallback policy an unclassifiable candidate is dropped here.
func (p *Pipeline) classifyStage(candidates []event.Candidate, result *Result, log zerolog.Logger) []*event.Classified {
	seen := make(map[string]bool)
	classified := make([]*event.Classified, 0, len(candidates))

	for i := range candidates {
		c := candidates[i]

		res, err := p.classifier.Classify(c.Source.Source, c.Categories, c.Name, c.Description)
		if err != nil {
			result.Log = append(result.Log, LogEntry{
				Source: c.Source, Name: c.Name, Outcome: LogDropped, Reason: "no-category",
			})
			result.Counts.Dropped++
			log.Debug().Stringer("candidate", c.Source).Msg("no category, dropped under reject policy")
			continue
		}

		slug, ok := p.resolver.Resolve(c.Location)
		if !ok && c.Location != "" && !seen[c.Location] {
			seen[c.Location] = true
			result.Unresolved = append(result.Unresolved, c.Location)
		}

		classified = append(classified, &event.Classified{
			Candidate:          c,
			Category:           res.Category,
			CategoryExplicit:   res.Explicit,
			CategoryConfidence: res.Confidence,
			VenueSlug:          slug,
		})
	}
	sort.Strings(result.Unresolved)
	return classified
}

// dedupeStage runs the deduplication engine and folds its outcomes
// into the decision log and counts.
func (p *Pipeline) dedupeStage(classified []*event.Classified, prior []*event.Canonical, result *Result, log zerolog.Logger) {
	dres := p.engine.Run(classified, prior)
	result.Canonicals = dres.Canonicals
	result.Counts.Conflicts = len(dres.Conflicts)

	names := make(map[event.SourceID]string, len(classified))
	for _, c := range classified {
		names[c.Source] = c.Name
	}

	for _, o := range dres.Outcomes {
		entry := LogEntry{
			Source:      o.Source,
			Name:        names[o.Source],
			IdentityKey: o.IdentityKey,
			Confidence:  o.Confidence,
			Signals:     o.Signals,
		}
		switch o.Kind {
		case dedupe.OutcomeNew:
			entry.Outcome = LogAcceptedNew
			result.Counts.Accepted++
		case dedupe.OutcomeMerged:
			entry.Outcome = LogMerged
			result.Counts.Merged++
		case dedupe.OutcomeUpdated:
			entry.Outcome = LogUpdated
			result.Counts.Updated++
		case dedupe.OutcomeConflict:
			entry.Outcome = LogConflictSplit
			result.Counts.Accepted++
		}
		result.Log = append(result.Log, entry)
		log.Info().
			Stringer("candidate", o.Source).
			Str("outcome", entry.Outcome).
			Str("identity_key", o.IdentityKey).
			Float64("confidence", o.Confidence).
			Msg("dedupe outcome")
	}

	for _, conflict := range dres.Conflicts {
		log.Warn().
			Str("base", conflict.BaseKey).
			Str("split", conflict.SplitKey).
			Str("detail", conflict.Detail).
			Msg("merge conflict, records kept separate")
	}
}
