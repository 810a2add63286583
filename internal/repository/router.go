package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/Rrens/swift-assistant/internal/security"
)

// Factory opens a storage backend from the application config
type Factory func(ctx context.Context, cfg *config.Config) (domain.StateStorage, error)

// Router maps backend names to their factories
type Router struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRouter creates an empty backend router
func NewRouter() *Router {
	return &Router{
		factories: make(map[string]Factory),
	}
}

// Register registers a factory for a backend name
func (r *Router) Register(backend string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backend] = factory
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

// Open creates the backend selected by cfg.Storage.Backend. When an
// encryption key is configured the backend is wrapped so payloads are
// sealed at rest.
func (r *Router) Open(ctx context.Context, cfg *config.Config) (domain.StateStorage, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Storage.Backend]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}

	storage, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	if cfg.Storage.EncryptionKey == "" {
		return storage, nil
	}

	encryptor, err := security.NewEncryptorFromBase64(cfg.Storage.EncryptionKey)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("invalid storage encryption key: %w", err)
	}
	return NewEncrypted(storage, encryptor), nil
}
