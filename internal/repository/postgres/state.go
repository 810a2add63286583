package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/jackc/pgx/v5"
)

// StateStorage keeps the session collection in the chat_state table
type StateStorage struct {
	db *DB
}

// NewStateStorage creates a PostgreSQL-backed state storage
func NewStateStorage(db *DB) *StateStorage {
	return &StateStorage{db: db}
}

// Load retrieves the payload stored under key
func (s *StateStorage) Load(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT payload FROM chat_state WHERE namespace = $1`

	var payload []byte
	err := s.db.Pool.QueryRow(ctx, query, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return payload, nil
}

// Save replaces the payload stored under key
func (s *StateStorage) Save(ctx context.Context, key string, payload []byte) error {
	query := `
		INSERT INTO chat_state (namespace, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (namespace) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.Pool.Exec(ctx, query, key, payload); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Ping verifies database connectivity
func (s *StateStorage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the connection pool
func (s *StateStorage) Close() error {
	s.db.Close()
	return nil
}
