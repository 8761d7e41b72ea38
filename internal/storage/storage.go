package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/massalia/agenda/internal/event"
)

// Snapshot is the published canonical-event set, keyed by identity key.
// It is the cross-run baseline: the next run loads it, matches new
// candidates against it, and saves the updated set back.
type Snapshot struct {
	Version   string                      `json:"version"`
	UpdatedAt string                      `json:"updated_at"`
	Events    map[string]*event.Canonical `json:"events"`
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Version: "1", Events: make(map[string]*event.Canonical)}
}

// Canonicals returns the snapshot's records sorted by identity key, the
// stable order the deduplication engine expects.
func (s *Snapshot) Canonicals() []*event.Canonical {
	out := make([]*event.Canonical, 0, len(s.Events))
	for _, c := range s.Events {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityKey < out[j].IdentityKey })
	return out
}

// Apply upserts a run's emitted records into the snapshot. Records the
// run did not touch are left as published.
func (s *Snapshot) Apply(canonicals []*event.Canonical) {
	for _, c := range canonicals {
		s.Events[c.IdentityKey] = c
	}
}

// Prune drops records whose event start is before the cutoff. Returns
// the number removed.
func (s *Snapshot) Prune(cutoff time.Time) int {
	removed := 0
	for key, c := range s.Events {
		if c.Start.Before(cutoff) {
			delete(s.Events, key)
			removed++
		}
	}
	return removed
}

// Store persists snapshots and per-run decision logs under one data
// directory.
type Store struct {
	dataDir string
}

// New creates a store, expanding ~ and creating the directory if needed.
func New(dataDir string) (*Store, error) {
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Store{dataDir: dataDir}, nil
}

func (s *Store) snapshotPath() string {
	return filepath.Join(s.dataDir, "snapshot.json")
}

// LoadSnapshot reads the published snapshot. A missing file is a first
// run and returns an empty snapshot.
func (s *Store) LoadSnapshot() (*Snapshot, error) {
	data, err := os.ReadFile(s.snapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			return NewSnapshot(), nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if snapshot.Events == nil {
		snapshot.Events = make(map[string]*event.Canonical)
	}
	return &snapshot, nil
}

// SaveSnapshot writes the snapshot atomically: a half-written snapshot
// must never replace the published one.
func (s *Store) SaveSnapshot(snapshot *Snapshot) error {
	snapshot.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := s.snapshotPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.snapshotPath()); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// GetByKey retrieves one published record by identity key.
func (s *Store) GetByKey(key string) (*event.Canonical, error) {
	snapshot, err := s.LoadSnapshot()
	if err != nil {
		return nil, err
	}
	if c, exists := snapshot.Events[key]; exists {
		return c, nil
	}
	return nil, fmt.Errorf("event not found: %s", key)
}

// WriteDecisionLog persists one run's decision log next to the
// snapshot, named by run id.
func (s *Store) WriteDecisionLog(runID string, log any) error {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding decision log: %w", err)
	}
	path := filepath.Join(s.dataDir, fmt.Sprintf("decisions_%s.json", runID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing decision log: %w", err)
	}
	return nil
}
