package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/Rrens/swift-assistant/internal/repository"
	"github.com/Rrens/swift-assistant/internal/repository/memory"
	"github.com/Rrens/swift-assistant/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryFactory(inner *memory.StateStorage) repository.Factory {
	return func(ctx context.Context, cfg *config.Config) (domain.StateStorage, error) {
		return inner, nil
	}
}

func TestRouter_Backends(t *testing.T) {
	r := repository.NewRouter()
	r.Register("redis", memoryFactory(memory.NewStateStorage()))
	r.Register("file", memoryFactory(memory.NewStateStorage()))

	assert.Equal(t, []string{"file", "redis"}, r.Backends())
}

func TestRouter_OpenUnknownBackend(t *testing.T) {
	r := repository.NewRouter()

	cfg := &config.Config{}
	cfg.Storage.Backend = "tape"

	_, err := r.Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported storage backend: tape")
}

func TestRouter_OpenFactoryError(t *testing.T) {
	r := repository.NewRouter()
	r.Register("broken", func(ctx context.Context, cfg *config.Config) (domain.StateStorage, error) {
		return nil, errors.New("connection refused")
	})

	cfg := &config.Config{}
	cfg.Storage.Backend = "broken"

	_, err := r.Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "connection refused")
}

func TestRouter_OpenWrapsWithEncryption(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStateStorage()

	r := repository.NewRouter()
	r.Register("memory", memoryFactory(inner))

	key, err := security.GenerateKey()
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Storage.Backend = "memory"
	cfg.Storage.EncryptionKey = security.EncodeKey(key)

	storage, err := r.Open(ctx, cfg)
	require.NoError(t, err)
	require.IsType(t, &repository.Encrypted{}, storage)

	payload := []byte(`[{"id":"a"}]`)
	require.NoError(t, storage.Save(ctx, "sessions", payload))

	sealed, err := inner.Load(ctx, "sessions")
	require.NoError(t, err)
	assert.NotEqual(t, payload, sealed)

	got, err := storage.Load(ctx, "sessions")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRouter_OpenRejectsBadKey(t *testing.T) {
	r := repository.NewRouter()
	r.Register("memory", memoryFactory(memory.NewStateStorage()))

	cfg := &config.Config{}
	cfg.Storage.Backend = "memory"
	cfg.Storage.EncryptionKey = "c2hvcnQ="

	_, err := r.Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "invalid storage encryption key")
}

func TestEncrypted_PassesThroughNotFound(t *testing.T) {
	key, err := security.GenerateKey()
	require.NoError(t, err)
	encryptor, err := security.NewEncryptor(key)
	require.NoError(t, err)

	storage := repository.NewEncrypted(memory.NewStateStorage(), encryptor)

	_, err = storage.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
	assert.NoError(t, storage.Ping(context.Background()))
}

func TestEncrypted_TamperedPayload(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStateStorage()

	key, err := security.GenerateKey()
	require.NoError(t, err)
	encryptor, err := security.NewEncryptor(key)
	require.NoError(t, err)

	require.NoError(t, inner.Save(ctx, "sessions", []byte("plain json, never sealed")))

	_, err = repository.NewEncrypted(inner, encryptor).Load(ctx, "sessions")
	assert.ErrorContains(t, err, "failed to decrypt state")
}
