package papersources

import (
	"sync"

	"github.com/helixir/research-crawler/internal/domain"
)

// Registry holds the adapter for each source type. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.SourceType]Adapter
}

// NewRegistry creates a new registry with no adapters.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.SourceType]Adapter),
	}
}

// Register adds an adapter, replacing any adapter of the same source type.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.SourceType()] = adapter
}

// Get returns the adapter for sourceType.
func (r *Registry) Get(sourceType domain.SourceType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[sourceType]
	return a, ok
}

// Adapters returns the registered adapters in source-group order
// (arxiv, scholar, ieee, acm). The returned slice is a snapshot.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapters := make([]Adapter, 0, len(r.adapters))
	for _, st := range domain.AllSourceTypes {
		if a, ok := r.adapters[st]; ok {
			adapters = append(adapters, a)
		}
	}
	return adapters
}

// Unconfigured lists registered source types whose adapter cannot make live
// calls, in source-group order.
func (r *Registry) Unconfigured() []domain.SourceType {
	var out []domain.SourceType
	for _, a := range r.Adapters() {
		if !a.IsConfigured() {
			out = append(out, a.SourceType())
		}
	}
	return out
}
