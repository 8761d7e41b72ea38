package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/massalia/agenda/internal/event"
)

func canonical(key, name string, start time.Time) *event.Canonical {
	return &event.Canonical{
		IdentityKey:     key,
		Name:            name,
		EventURL:        "https://example.org/e/" + key,
		Start:           start,
		Category:        event.CategoryMusique,
		SourceIDs:       []event.SourceID{{Source: "lafriche", LocalID: key}},
		MergeConfidence: 1.0,
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2026, 9, 12, 20, 0, 0, 0, event.Paris)
	snapshot := NewSnapshot()
	snapshot.Apply([]*event.Canonical{
		canonical("bbb", "Nuit électro", start),
		canonical("aaa", "Atelier céramique", start.AddDate(0, 0, 1)),
	})

	if err := store.SaveSnapshot(snapshot); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(loaded.Events))
	}
	if loaded.UpdatedAt == "" {
		t.Error("expected UpdatedAt to be set on save")
	}

	// Canonicals come back in identity-key order for the dedupe baseline.
	prior := loaded.Canonicals()
	if prior[0].IdentityKey != "aaa" || prior[1].IdentityKey != "bbb" {
		t.Errorf("unexpected order: %s, %s", prior[0].IdentityKey, prior[1].IdentityKey)
	}

	got, err := store.GetByKey("bbb")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Nuit électro" {
		t.Errorf("name = %q", got.Name)
	}
	if _, err := store.GetByKey("missing"); err == nil {
		t.Error("expected an error for an unknown key")
	}
}

func TestLoadSnapshotFirstRun(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	snapshot, err := store.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshot.Events) != 0 {
		t.Errorf("first run should start empty, got %d events", len(snapshot.Events))
	}
}

func TestLoadSnapshotMalformed(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "snapshot.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadSnapshot(); err == nil {
		t.Error("expected an error for a malformed snapshot")
	}
}

func TestSnapshotApplyUpserts(t *testing.T) {
	start := time.Date(2026, 9, 12, 20, 0, 0, 0, event.Paris)
	snapshot := NewSnapshot()
	snapshot.Apply([]*event.Canonical{canonical("aaa", "Atelier", start)})

	updated := canonical("aaa", "Atelier céramique", start)
	updated.Description = "Initiation au tournage."
	snapshot.Apply([]*event.Canonical{updated, canonical("ccc", "Concert", start)})

	if len(snapshot.Events) != 2 {
		t.Fatalf("expected 2 events after upsert, got %d", len(snapshot.Events))
	}
	if snapshot.Events["aaa"].Description != "Initiation au tournage." {
		t.Error("existing record should be replaced by the updated one")
	}
}

func TestSnapshotPrune(t *testing.T) {
	cutoff := time.Date(2026, 8, 27, 0, 0, 0, 0, event.Paris)
	snapshot := NewSnapshot()
	snapshot.Apply([]*event.Canonical{
		canonical("past", "Fini", cutoff.AddDate(0, 0, -10)),
		canonical("future", "À venir", cutoff.AddDate(0, 0, 10)),
	})

	if removed := snapshot.Prune(cutoff); removed != 1 {
		t.Fatalf("expected 1 pruned record, got %d", removed)
	}
	if _, ok := snapshot.Events["future"]; !ok {
		t.Error("future record must survive pruning")
	}
}

func TestWriteDecisionLog(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	entries := []map[string]string{{"candidate": "lafriche:1", "outcome": "accepted-new"}}
	if err := store.WriteDecisionLog("run-42", entries); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "decisions_run-42.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("decision log should not be empty")
	}
}
