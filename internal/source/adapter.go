// Package source contains the marketplace adapters, the per-source rate
// limiter / circuit breaker, and the fan-out orchestrator.
package source

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/config"
	"github.com/dealhound-cloud/dealhound/internal/domain/candidate"
	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
)

// Adapter is the uniform fetch contract one marketplace integration
// implements. Fetch failures are classified by the orchestrator via the
// sentinel taxonomy.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, c criteria.Criteria) ([]candidate.Candidate, error)
}

// Registry holds the enabled adapters keyed by source name.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds adapters for every enabled source in cfg.
// Adapter selection is config-driven; there is no dynamic loading.
func NewRegistry(sources map[string]config.SourceConfig, logger *zap.Logger) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter)}
	for name, sc := range sources {
		if !sc.Enabled {
			continue
		}
		a, err := NewHTTPJSONAdapter(name, sc, logger)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}
		r.adapters[name] = a
	}
	return r, nil
}

// Register adds or replaces an adapter. Used by tests and custom wiring.
func (r *Registry) Register(a Adapter) {
	if r.adapters == nil {
		r.adapters = make(map[string]Adapter)
	}
	r.adapters[a.Name()] = a
}

// Get returns the adapter for a source name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered source names, sorted for determinism.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int { return len(r.adapters) }
