package backend

import (
	"sort"
	"sync"

	"github.com/seantiz/vidrestore/internal/model"
)

// ErrNotRegistered is returned when no engine is loaded for a variant.
var ErrNotRegistered = model.NewError(model.KindEngine, "engine variant not loaded", nil)

// BackendInfo pairs a variant with its engine capabilities.
type BackendInfo struct {
	Variant      string       `json:"variant"`
	Capabilities Capabilities `json:"capabilities"`
}

// Registry holds loaded engines keyed by variant.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds an engine under the given variant, replacing any previous one.
func (r *Registry) Register(variant string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[variant] = b
}

// Resolve returns the engine loaded for variant.
func (r *Registry) Resolve(variant string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[variant]
	if !ok {
		return nil, model.NewError(model.KindEngine, "engine variant "+variant+" not loaded", ErrNotRegistered)
	}
	return b, nil
}

// Has reports whether an engine is loaded for variant.
func (r *Registry) Has(variant string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[variant]
	return ok
}

// Len returns the number of loaded engines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// List returns information about all registered engines, sorted by variant
// for a stable API response.
func (r *Registry) List() []BackendInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]BackendInfo, 0, len(r.backends))
	for variant, b := range r.backends {
		infos = append(infos, BackendInfo{
			Variant:      variant,
			Capabilities: b.Capabilities(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Variant < infos[j].Variant
	})
	return infos
}
