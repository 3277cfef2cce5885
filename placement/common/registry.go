package common

import (
	"fmt"
	"sort"
	"sync"
)

// SolverRegistry manages the available placement strategies
type SolverRegistry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

var globalRegistry = NewSolverRegistry()

func NewSolverRegistry() *SolverRegistry {
	return &SolverRegistry{factories: make(map[string]Factory)}
}

// Register registers a strategy under the given name
func (sr *SolverRegistry) Register(name string, factory Factory) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, exists := sr.factories[name]; exists {
		return fmt.Errorf("strategy '%s' is already registered", name)
	}

	sr.factories[name] = factory
	return nil
}

// Get builds the named strategy with opts
func (sr *SolverRegistry) Get(name string, opts Options) (Solver, error) {
	sr.mu.RLock()
	factory, exists := sr.factories[name]
	sr.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("strategy '%s' not found in registry", name)
	}
	return factory(opts)
}

// List returns all registered strategy names, sorted
func (sr *SolverRegistry) List() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.factories))
	for name := range sr.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func GetGlobalRegistry() *SolverRegistry {
	return globalRegistry
}

func RegisterGlobal(name string, factory Factory) error {
	return globalRegistry.Register(name, factory)
}

func GetGlobal(name string, opts Options) (Solver, error) {
	return globalRegistry.Get(name, opts)
}

func ListGlobal() []string {
	return globalRegistry.List()
}
