package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/swift-assistant/internal/api/response"
	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/Rrens/swift-assistant/internal/markdown"
	"github.com/Rrens/swift-assistant/internal/session"
)

// SessionHandler exposes the session store
type SessionHandler struct {
	store *session.Store
}

func NewSessionHandler(store *session.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

type messageView struct {
	Role    domain.MessageRole `json:"role"`
	Content string             `json:"content"`
	SentAt  time.Time          `json:"sent_at"`
	Blocks  []markdown.Block   `json:"blocks,omitempty"`
}

type sessionView struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	ThreadID  string        `json:"thread_id,omitempty"`
	Active    bool          `json:"active"`
	CreatedAt time.Time     `json:"created_at,omitzero"`
	Messages  []messageView `json:"messages,omitempty"`
	Count     int           `json:"message_count"`
}

type renderOptions struct {
	messages  bool
	render    bool
	highlight bool
}

func toSessionView(s domain.Session, activeID string, opts renderOptions) sessionView {
	view := sessionView{
		ID:        s.ID,
		Title:     s.Title,
		ThreadID:  s.ContinuityToken,
		Active:    s.ID == activeID,
		CreatedAt: s.CreatedAt,
		Count:     len(s.Messages),
	}
	if !opts.messages {
		return view
	}

	transcript := s.Transcript()
	view.Messages = make([]messageView, len(transcript))
	for i, m := range transcript {
		mv := messageView{Role: m.Role, Content: m.Content, SentAt: m.SentAt}
		if opts.render {
			mv.Blocks = markdown.Render(m.Content)
			if opts.highlight {
				mv.Blocks = markdown.Highlight(mv.Blocks)
			}
		}
		view.Messages[i] = mv
	}
	return view
}

func parseRenderOptions(r *http.Request) renderOptions {
	q := r.URL.Query()
	render, _ := strconv.ParseBool(q.Get("render"))
	highlight, _ := strconv.ParseBool(q.Get("highlight"))
	return renderOptions{messages: true, render: render || highlight, highlight: highlight}
}

// List returns every session in collection order with the active id
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, activeID := h.store.Snapshot()

	views := make([]sessionView, len(sessions))
	for i, s := range sessions {
		views[i] = toSessionView(s, activeID, renderOptions{})
	}

	response.OK(w, map[string]any{
		"sessions":  views,
		"active_id": activeID,
	})
}

// Create starts a new session and makes it active
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title string `json:"title" validate:"max=100"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, validationErrors(err))
		return
	}

	id := h.store.CreateSession(r.Context(), input.Title)
	created, ok := h.store.Session(id)
	if !ok {
		// Deleted by a concurrent request before we could read it back
		response.NotFound(w, domain.ErrSessionNotFound.Error())
		return
	}

	response.Created(w, toSessionView(created, id, renderOptions{messages: true}))
}

// Active returns the active session with its transcript
func (h *SessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	active, ok := h.store.Active()
	if !ok {
		response.NotFound(w, "no active session")
		return
	}

	response.OK(w, toSessionView(active, active.ID, parseRenderOptions(r)))
}

// Get returns one session with its transcript in display order
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	sess, ok := h.store.Session(id)
	if !ok {
		response.NotFound(w, domain.ErrSessionNotFound.Error())
		return
	}

	response.OK(w, toSessionView(sess, h.store.ActiveID(), parseRenderOptions(r)))
}

// Activate makes a session the active one
func (h *SessionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if err := h.store.SetActive(id); err != nil {
		response.NotFound(w, err.Error())
		return
	}

	response.OK(w, map[string]string{"active_id": id})
}

// Delete removes a session; the last remaining session cannot be deleted
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	err := h.store.DeleteSession(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrLastSession):
		response.Conflict(w, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		response.NotFound(w, err.Error())
	case err != nil:
		response.InternalError(w, "failed to delete session")
	default:
		response.NoContent(w)
	}
}
