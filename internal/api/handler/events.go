package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/swift-assistant/internal/api/response"
	"github.com/Rrens/swift-assistant/internal/service"
	"github.com/Rrens/swift-assistant/internal/session"
)

const heartbeatInterval = 15 * time.Second

// EventsHandler streams store changes and the sending indicator as
// server-sent events
type EventsHandler struct {
	store     *session.Store
	chat      *service.ChatService
	heartbeat time.Duration
}

func NewEventsHandler(store *session.Store, chat *service.ChatService) *EventsHandler {
	return &EventsHandler{store: store, chat: chat, heartbeat: heartbeatInterval}
}

// Stream holds the connection open until the client goes away
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		response.InternalError(w, "streaming unsupported")
		return
	}
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout
	rc.SetWriteDeadline(time.Time{})

	events, cancelEvents := h.store.Subscribe()
	defer cancelEvents()
	status, cancelStatus := h.chat.Subscribe()
	defer cancelStatus()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(name string, payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("event", name).Msg("failed to encode event")
			return true
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send("ready", map[string]any{
		"active_id": h.store.ActiveID(),
		"sending":   h.chat.Sending(),
	}) {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok || !send(string(ev.Type), ev) {
				return
			}
		case st, ok := <-status:
			if !ok || !send("chat.status", st) {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}
