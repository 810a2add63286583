package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/swift-assistant/internal/api/handler"
	customMiddleware "github.com/Rrens/swift-assistant/internal/api/middleware"
	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/Rrens/swift-assistant/internal/security"
	"github.com/Rrens/swift-assistant/internal/service"
	"github.com/Rrens/swift-assistant/internal/session"
)

// Dependencies are the components the HTTP layer serves
type Dependencies struct {
	Store   *session.Store
	Chat    *service.ChatService
	Storage domain.StateStorage
	// Limiter is optional; requests are not limited when nil
	Limiter customMiddleware.Limiter
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(deps.Store)
	chatHandler := handler.NewChatHandler(deps.Chat, deps.Store)
	eventsHandler := handler.NewEventsHandler(deps.Store, deps.Chat)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Storage))

		r.Group(func(r chi.Router) {
			if cfg.Auth.Enabled() {
				jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
				r.Use(customMiddleware.NewAuthMiddleware(jwtManager).Authenticate)
			} else {
				log.Warn().Msg("auth.jwt_secret is empty, API is unauthenticated")
			}

			// Long-lived stream, kept outside the request timeout
			r.Get("/events", eventsHandler.Stream)

			r.Group(func(r chi.Router) {
				if cfg.Server.MiddlewareTimeout > 0 {
					r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
				}
				if deps.Limiter != nil {
					r.Use(customMiddleware.NewRateLimitMiddleware(deps.Limiter).Limit)
				}

				r.Route("/sessions", func(r chi.Router) {
					r.Get("/", sessionHandler.List)
					r.Post("/", sessionHandler.Create)
					r.Get("/active", sessionHandler.Active)

					r.Route("/{sessionID}", func(r chi.Router) {
						r.Get("/", sessionHandler.Get)
						r.Delete("/", sessionHandler.Delete)
						r.Put("/active", sessionHandler.Activate)
					})
				})

				r.Route("/chat", func(r chi.Router) {
					r.Post("/", chatHandler.Send)
					r.Get("/draft", chatHandler.GetDraft)
					r.Put("/draft", chatHandler.PutDraft)
					r.Get("/status", chatHandler.Status)
				})
			})
		})
	})

	return r
}
