package main

import (
	"context"

	"github.com/Rrens/swift-assistant/internal/assistant"
	"github.com/Rrens/swift-assistant/internal/assistant/anthropic"
	"github.com/Rrens/swift-assistant/internal/assistant/gateway"
	"github.com/Rrens/swift-assistant/internal/assistant/gemini"
	"github.com/Rrens/swift-assistant/internal/assistant/ollama"
	"github.com/Rrens/swift-assistant/internal/assistant/openai"
	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/Rrens/swift-assistant/internal/repository"
	"github.com/Rrens/swift-assistant/internal/repository/file"
	"github.com/Rrens/swift-assistant/internal/repository/memory"
	"github.com/Rrens/swift-assistant/internal/repository/mongo"
	"github.com/Rrens/swift-assistant/internal/repository/postgres"
	"github.com/Rrens/swift-assistant/internal/repository/redis"
	"github.com/Rrens/swift-assistant/internal/repository/sqlstore"
)

// storageBackends registers every state storage backend
func storageBackends() *repository.Router {
	r := repository.NewRouter()

	r.Register("file", func(ctx context.Context, cfg *config.Config) (domain.StateStorage, error) {
		storage, err := file.NewStateStorage(cfg.Storage.File.Dir)
		if err != nil {
			return nil, err
		}
		return storage, nil
	})
	r.Register("memory", func(ctx context.Context, cfg *config.Config) (domain.StateStorage, error) {
		return memory.NewStateStorage(), nil
	})
	r.Register("redis", func(ctx context.Context, cfg *config.Config) (domain.StateStorage, error) {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redis.NewStateStorage(client), nil
	})
	r.Register("postgres", func(ctx context.Context, cfg *config.Config) (domain.StateStorage, error) {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return postgres.NewStateStorage(db), nil
	})
	r.Register("sqlite", func(ctx context.Context, cfg *config.Config) (domain.StateStorage, error) {
		storage, err := sqlstore.OpenSQLite(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return storage, nil
	})
	r.Register("mysql", func(ctx context.Context, cfg *config.Config) (domain.StateStorage, error) {
		storage, err := sqlstore.OpenMySQL(ctx, cfg.Storage.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		return storage, nil
	})
	r.Register("mongo", func(ctx context.Context, cfg *config.Config) (domain.StateStorage, error) {
		storage, err := mongo.NewStateStorage(ctx, cfg.Storage.Mongo)
		if err != nil {
			return nil, err
		}
		return storage, nil
	})

	return r
}

// assistantBackends registers every assistant backend
func assistantBackends(defaultBackend string) *assistant.Router {
	r := assistant.NewRouter(defaultBackend)
	r.Register("gateway", gateway.Factory)
	r.Register("ollama", ollama.Factory)
	r.Register("gemini", gemini.Factory)
	r.Register("openai", openai.Factory)
	r.Register("deepseek", openai.DeepSeekFactory)
	r.Register("anthropic", anthropic.Factory)
	return r
}
