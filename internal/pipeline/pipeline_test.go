package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/massalia/agenda/internal/adapter"
	"github.com/massalia/agenda/internal/config"
	"github.com/massalia/agenda/internal/event"
	"github.com/massalia/agenda/internal/venue"
)

var testNow = time.Date(2026, 8, 27, 8, 0, 0, 0, event.Paris)

type fakeAdapter struct {
	id         string
	candidates []event.Candidate
	err        error
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) Fetch(ctx context.Context) ([]event.Candidate, error) {
	return f.candidates, f.err
}

func candidate(source, localID, name, location string, start time.Time) event.Candidate {
	return event.Candidate{
		Name:      name,
		EventURL:  fmt.Sprintf("https://%s.example.org/e/%s", source, localID),
		Start:     start,
		Location:  location,
		Source:    event.SourceID{Source: source, LocalID: localID},
		CrawledAt: testNow,
	}
}

func testCriteria() *config.Selection {
	criteria := config.DefaultSelection()
	criteria.Keywords.Negative = []string{"complet", "annulé"}
	return criteria
}

func testVenues(t *testing.T) *venue.Registry {
	t.Helper()
	registry, err := venue.NewRegistry([]venue.Venue{
		{Slug: "la-friche", Title: "Friche la Belle de Mai", Aliases: []string{"/locations/la-friche/"}},
		{Slug: "le-molotov", Title: "Le Molotov"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return registry
}

func testPipeline(t *testing.T, adapters ...adapter.Adapter) *Pipeline {
	t.Helper()
	registry := &adapter.Registry{}
	for _, a := range adapters {
		registry.Register(a)
	}
	return New(testCriteria(), registry, testVenues(t), zerolog.Nop(), false,
		func() time.Time { return testNow })
}

func logEntry(result *Result, id event.SourceID) *LogEntry {
	for i := range result.Log {
		if result.Log[i].Source == id {
			return &result.Log[i]
		}
	}
	return nil
}

func TestRunFullPipeline(t *testing.T) {
	upcoming := time.Date(2026, 9, 12, 20, 0, 0, 0, event.Paris)

	soldOut := candidate("lafriche", "3", "Concert de jazz", "Friche la Belle de Mai", upcoming)
	soldOut.Description = "Complet depuis hier."
	invalid := candidate("lafriche", "4", "", "Friche la Belle de Mai", upcoming)

	a := &fakeAdapter{id: "lafriche", candidates: []event.Candidate{
		candidate("lafriche", "1", "Nuit électro", "Friche la Belle de Mai", upcoming),
		candidate("lafriche", "2", "Vernissage hors zone", "Lyon 3e", upcoming),
		soldOut,
		invalid,
	}}
	b := &fakeAdapter{id: "shotgun", candidates: []event.Candidate{
		candidate("shotgun", "9", "Nuit electro", "La Friche", upcoming.Add(5*time.Minute)),
	}}

	result, err := testPipeline(t, a, b).Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.Status != StatusSuccess || result.State != StateEmitted {
		t.Fatalf("status %s state %s", result.Status, result.State)
	}
	if result.Counts.Candidates != 5 {
		t.Errorf("candidates = %d, want 5", result.Counts.Candidates)
	}
	if len(result.Log) != 5 {
		t.Fatalf("every candidate needs a log entry, got %d", len(result.Log))
	}

	// The cross-source duplicate pair merges into one canonical record.
	if len(result.Canonicals) != 1 {
		t.Fatalf("expected 1 canonical record, got %d", len(result.Canonicals))
	}
	if result.Counts.Merged != 2 {
		t.Errorf("merged = %d, want 2", result.Counts.Merged)
	}

	tests := []struct {
		id      event.SourceID
		outcome string
		reason  string
	}{
		{event.SourceID{Source: "lafriche", LocalID: "1"}, LogMerged, ""},
		{event.SourceID{Source: "shotgun", LocalID: "9"}, LogMerged, ""},
		{event.SourceID{Source: "lafriche", LocalID: "2"}, LogRejected, "geography"},
		{event.SourceID{Source: "lafriche", LocalID: "3"}, LogRejected, "excluded-keyword"},
		{event.SourceID{Source: "lafriche", LocalID: "4"}, LogDropped, "missing name"},
	}
	for _, tt := range tests {
		entry := logEntry(result, tt.id)
		if entry == nil {
			t.Errorf("no log entry for %s", tt.id)
			continue
		}
		if entry.Outcome != tt.outcome {
			t.Errorf("%s: outcome %s, want %s", tt.id, entry.Outcome, tt.outcome)
		}
		if tt.reason != "" && entry.Reason != tt.reason {
			t.Errorf("%s: reason %q, want %q", tt.id, entry.Reason, tt.reason)
		}
	}
}

func TestRunRecordsUnresolvedLocations(t *testing.T) {
	upcoming := time.Date(2026, 9, 12, 20, 0, 0, 0, event.Paris)
	a := &fakeAdapter{id: "lafriche", candidates: []event.Candidate{
		candidate("lafriche", "1", "Concert secret", "Lieu Secret XYZ, Marseille", upcoming),
	}}

	result, err := testPipeline(t, a).Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// Unresolvable venue is carried through, never a rejection.
	if result.Counts.Accepted != 1 {
		t.Fatalf("accepted = %d, want 1", result.Counts.Accepted)
	}
	if result.Canonicals[0].VenueSlug != "" {
		t.Errorf("venue slug should stay empty, got %q", result.Canonicals[0].VenueSlug)
	}
	if len(result.Unresolved) != 1 || result.Unresolved[0] != "Lieu Secret XYZ, Marseille" {
		t.Errorf("unresolved = %v", result.Unresolved)
	}
}

func TestRunPartialWhenSourceFails(t *testing.T) {
	upcoming := time.Date(2026, 9, 12, 20, 0, 0, 0, event.Paris)
	ok := &fakeAdapter{id: "lafriche", candidates: []event.Candidate{
		candidate("lafriche", "1", "Nuit électro", "Friche la Belle de Mai", upcoming),
	}}
	down := &fakeAdapter{id: "shotgun", err: fmt.Errorf("status 503")}

	result, err := testPipeline(t, ok, down).Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusPartial {
		t.Errorf("status = %s, want %s", result.Status, StatusPartial)
	}
	if len(result.Canonicals) != 1 {
		t.Errorf("surviving source's records must be emitted, got %d", len(result.Canonicals))
	}

	var downStat *SourceStat
	for i := range result.Sources {
		if result.Sources[i].ID == "shotgun" {
			downStat = &result.Sources[i]
		}
	}
	if downStat == nil || downStat.Error == "" {
		t.Error("failed source must be reported in stats")
	}
}

func TestRunFailsWhenAllSourcesFail(t *testing.T) {
	down := &fakeAdapter{id: "lafriche", err: fmt.Errorf("connection refused")}

	result, err := testPipeline(t, down).Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error on total source loss")
	}
	if result.Status != StatusFailure || result.State != StateFailed {
		t.Errorf("status %s state %s", result.Status, result.State)
	}
}

func TestRunSkipSelection(t *testing.T) {
	past := testNow.AddDate(0, 0, -7)
	a := &fakeAdapter{id: "lafriche", candidates: []event.Candidate{
		candidate("lafriche", "1", "Rétrospective", "Friche la Belle de Mai", past),
	}}

	registry := &adapter.Registry{}
	registry.Register(a)
	p := New(testCriteria(), registry, testVenues(t), zerolog.Nop(), true,
		func() time.Time { return testNow })

	result, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Counts.Rejected != 0 || result.Counts.Accepted != 1 {
		t.Errorf("skip-selection must accept everything: %+v", result.Counts)
	}
}

func TestRunRejectFallbackPolicy(t *testing.T) {
	upcoming := time.Date(2026, 9, 12, 20, 0, 0, 0, event.Paris)
	blank := candidate("lafriche", "1", "Xyzzy", "Friche la Belle de Mai", upcoming)

	criteria := testCriteria()
	criteria.Category.FallbackPolicy = config.FallbackReject

	registry := &adapter.Registry{}
	registry.Register(&fakeAdapter{id: "lafriche", candidates: []event.Candidate{blank}})
	p := New(criteria, registry, testVenues(t), zerolog.Nop(), false,
		func() time.Time { return testNow })

	result, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Counts.Dropped != 1 || len(result.Canonicals) != 0 {
		t.Errorf("unclassifiable candidate should drop under reject policy: %+v", result.Counts)
	}
	entry := logEntry(result, blank.Source)
	if entry == nil || entry.Reason != "no-category" {
		t.Errorf("expected a no-category drop entry, got %+v", entry)
	}
}

func TestRunUpdatesAgainstPrior(t *testing.T) {
	upcoming := time.Date(2026, 9, 12, 20, 0, 0, 0, event.Paris)
	c := candidate("lafriche", "1", "Nuit électro", "Friche la Belle de Mai", upcoming)
	c.Description = "Concert."
	a := &fakeAdapter{id: "lafriche", candidates: []event.Candidate{c}}

	first, err := testPipeline(t, a).Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	richer := c
	richer.Description = "Concert de clôture avec trois collectifs marseillais."
	a.candidates = []event.Candidate{richer}

	second, err := testPipeline(t, a).Run(context.Background(), first.Canonicals)
	if err != nil {
		t.Fatal(err)
	}
	if second.Counts.Updated != 1 {
		t.Fatalf("expected an update outcome: %+v", second.Counts)
	}
	if second.Canonicals[0].IdentityKey != first.Canonicals[0].IdentityKey {
		t.Error("identity key must be stable across runs")
	}
	if second.Canonicals[0].Description != richer.Description {
		t.Errorf("fuller description should win, got %q", second.Canonicals[0].Description)
	}
}
