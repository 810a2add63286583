package memory

import (
	"context"
	"sync"

	"github.com/Rrens/swift-assistant/internal/domain"
)

// StateStorage keeps payloads in process memory. Nothing survives a restart.
type StateStorage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewStateStorage() *StateStorage {
	return &StateStorage{
		values: make(map[string][]byte),
	}
}

func (s *StateStorage) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *StateStorage) Save(ctx context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, len(payload))
	copy(v, payload)
	s.values[key] = v
	return nil
}

func (s *StateStorage) Close() error {
	return nil
}
