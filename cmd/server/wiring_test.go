package main

import (
	"context"
	"testing"

	"github.com/Rrens/swift-assistant/internal/assistant"
	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageBackends(t *testing.T) {
	r := storageBackends()
	assert.Equal(t, []string{"file", "memory", "mongo", "mysql", "postgres", "redis", "sqlite"}, r.Backends())

	cfg := &config.Config{}
	cfg.Storage.Backend = "file"
	cfg.Storage.File.Dir = t.TempDir()

	storage, err := r.Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, storage.Close())
}

func TestAssistantBackends(t *testing.T) {
	r := assistantBackends("gateway")
	assert.Equal(t, []string{"anthropic", "deepseek", "gateway", "gemini", "ollama", "openai"}, r.Backends())

	cfg := config.AssistantConfig{}
	cfg.Gateway.URL = "http://localhost:8000/api/chat"

	client, err := r.Open("", cfg, assistant.NewThreads(5))
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = r.Open("openai", cfg, assistant.NewThreads(5))
	assert.Error(t, err)
}
