package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/swift-assistant/internal/api/response"
	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/Rrens/swift-assistant/internal/service"
	"github.com/Rrens/swift-assistant/internal/session"
)

// ChatHandler runs chat turns and manages the pending input
type ChatHandler struct {
	chat  *service.ChatService
	store *session.Store
}

func NewChatHandler(chat *service.ChatService, store *session.Store) *ChatHandler {
	return &ChatHandler{chat: chat, store: store}
}

// Send runs one turn. The reply (or the error notice) is part of the
// transcript in both cases, so a failed assistant call still returns 200.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Message   string `json:"message" validate:"required,max=8000"`
		SessionID string `json:"session_id" validate:"omitempty,max=64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	var (
		result *service.TurnResult
		err    error
	)
	if input.SessionID != "" {
		result, err = h.chat.SendTo(r.Context(), input.SessionID, input.Message)
	} else {
		result, err = h.chat.Send(r.Context(), input.Message)
	}

	switch {
	case errors.Is(err, service.ErrTurnInFlight):
		response.Conflict(w, err.Error())
	case errors.Is(err, service.ErrEmptyMessage):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, service.ErrNoActiveSession):
		response.NotFound(w, err.Error())
	case err != nil:
		response.InternalError(w, "failed to send message")
	default:
		response.OK(w, result)
	}
}

// GetDraft returns the pending input text
func (h *ChatHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"draft": h.chat.Draft()})
}

// PutDraft replaces the pending input text
func (h *ChatHandler) PutDraft(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Draft string `json:"draft" validate:"max=8000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	h.chat.SetDraft(input.Draft)
	response.OK(w, map[string]string{"draft": input.Draft})
}

// Status reports the sending indicator, the draft and the active session
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{
		"sending":   h.chat.Sending(),
		"draft":     h.chat.Draft(),
		"active_id": h.store.ActiveID(),
	})
}
