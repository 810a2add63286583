package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/redis/go-redis/v9"
)

const statePrefix = "chat:state:"

// StateStorage keeps the session collection under a single Redis key
type StateStorage struct {
	client *Client
}

// NewStateStorage creates a Redis-backed state storage
func NewStateStorage(client *Client) *StateStorage {
	return &StateStorage{client: client}
}

func stateKey(key string) string {
	return statePrefix + key
}

// Load retrieves the payload stored under key
func (s *StateStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.rdb.Get(ctx, stateKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	return data, nil
}

// Save replaces the payload stored under key. State never expires.
func (s *StateStorage) Save(ctx context.Context, key string, payload []byte) error {
	if err := s.client.rdb.Set(ctx, stateKey(key), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity
func (s *StateStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close closes the Redis connection
func (s *StateStorage) Close() error {
	return s.client.Close()
}
