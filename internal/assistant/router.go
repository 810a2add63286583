package assistant

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Rrens/swift-assistant/internal/config"
)

// Factory builds a client from the assistant configuration
type Factory func(cfg config.AssistantConfig, threads *Threads) (Client, error)

// Router maps backend names to client factories
type Router struct {
	factories      map[string]Factory
	defaultBackend string
	mu             sync.RWMutex
}

// NewRouter creates a new assistant router
func NewRouter(defaultBackend string) *Router {
	return &Router{
		factories:      make(map[string]Factory),
		defaultBackend: defaultBackend,
	}
}

// Register registers a backend factory
func (r *Router) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Open builds the client for name, falling back to the default backend
func (r *Router) Open(name string, cfg config.AssistantConfig, threads *Threads) (Client, error) {
	if name == "" {
		name = r.defaultBackend
	}

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("assistant backend not found: %s", name)
	}

	client, err := factory(cfg, threads)
	if err != nil {
		return nil, fmt.Errorf("assistant backend not configured: %s: %w", name, err)
	}
	return client, nil
}

// Backends returns the registered backend names, sorted
func (r *Router) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultBackend returns the default backend name
func (r *Router) DefaultBackend() string {
	return r.defaultBackend
}
