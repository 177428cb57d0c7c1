package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/petspeakapp/petspeak/internal/analyzer"
)

// ErrProviderNotRegistered is returned by [Registry.CreateAnalyzer] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps analyzer provider names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]func(ProviderEntry) (analyzer.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		analyzers: make(map[string]func(ProviderEntry) (analyzer.Provider, error)),
	}
}

// RegisterAnalyzer registers an analyzer provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterAnalyzer(name string, factory func(ProviderEntry) (analyzer.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyzers[name] = factory
}

// CreateAnalyzer instantiates an analyzer provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateAnalyzer(entry ProviderEntry) (analyzer.Provider, error) {
	r.mu.RLock()
	factory, ok := r.analyzers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: analyzer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
