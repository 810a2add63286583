package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/swift-assistant/internal/api"
	"github.com/Rrens/swift-assistant/internal/assistant"
	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/Rrens/swift-assistant/internal/observability"
	"github.com/Rrens/swift-assistant/internal/repository/redis"
	"github.com/Rrens/swift-assistant/internal/service"
	"github.com/Rrens/swift-assistant/internal/session"
)

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := observability.Setup(cfg.Logging, os.Getenv("ENV") == "production")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Backend).
		Str("assistant", cfg.Assistant.Backend).
		Msg("Starting Swift Assistant server")

	ctx := context.Background()

	// Initialize state storage
	openCtx, cancelOpen := context.WithTimeout(ctx, 30*time.Second)
	storage, err := storageBackends().Open(openCtx, cfg)
	cancelOpen()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open state storage")
	}
	defer storage.Close()

	// Initialize session store
	store := session.NewStore(storage, session.OptionsFromConfig(cfg))
	store.Initialize(ctx)

	// Initialize assistant client
	threads := assistant.NewThreadsWithLimit(cfg.Assistant.MaxHistory, cfg.Assistant.MaxThreads)
	client, err := assistantBackends("gateway").Open(cfg.Assistant.Backend, cfg.Assistant, threads)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure assistant backend")
	}

	chat := service.NewChatService(store, client)

	deps := api.Dependencies{
		Store:   store,
		Chat:    chat,
		Storage: storage,
	}

	// Initialize rate limiter
	if cfg.Security.RateLimit.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis for rate limiting")
		}
		defer redisClient.Close()

		deps.Limiter = redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
	}

	// Initialize router
	router := api.NewRouter(cfg, deps)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
