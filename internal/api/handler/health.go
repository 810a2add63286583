package handler

import (
	"net/http"

	"github.com/Rrens/swift-assistant/internal/api/response"
	"github.com/Rrens/swift-assistant/internal/domain"
)

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck reports readiness, pinging the state storage when it supports it
func ReadyCheck(storage domain.StateStorage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := storage.(domain.Pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				response.ServiceUnavailable(w, "storage not ready")
				return
			}
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}
