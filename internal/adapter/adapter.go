// Package adapter fetches candidate events from configured sources.
// Each source resolves to one Adapter at startup; the pipeline is
// adapter-agnostic and only ever sees candidate values.
package adapter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/massalia/agenda/internal/config"
	"github.com/massalia/agenda/internal/event"
)

// Adapter extracts candidate events from one source.
type Adapter interface {
	ID() string
	Fetch(ctx context.Context) ([]event.Candidate, error)
}

// Registry maps source ids to adapters, resolved once at startup.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds adapters for every enabled source. An unknown
// parser name is a configuration error and fails the run up front.
func NewRegistry(sources *config.Sources, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, src := range sources.Enabled() {
		switch src.Parser {
		case "html", "":
			r.Register(NewHTML(src, logger))
		default:
			return nil, &config.Error{
				Document: "sources",
				Err:      fmt.Errorf("source %q: unknown parser %q", src.ID, src.Parser),
			}
		}
	}
	return r, nil
}

// Register adds an adapter, replacing any previous one with the same id.
func (r *Registry) Register(a Adapter) {
	if r.adapters == nil {
		r.adapters = make(map[string]Adapter)
	}
	if _, exists := r.adapters[a.ID()]; !exists {
		r.order = append(r.order, a.ID())
	}
	r.adapters[a.ID()] = a
}

// Resolve finds the adapter for a source id.
func (r *Registry) Resolve(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// All returns the adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

// Len reports the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.adapters)
}
