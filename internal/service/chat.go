package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/swift-assistant/internal/assistant"
	"github.com/Rrens/swift-assistant/internal/domain"
)

// ErrorPrefix marks transcript entries that describe a failed turn
const ErrorPrefix = "⚠️ Error: "

var (
	// ErrTurnInFlight is returned while another turn is outstanding
	ErrTurnInFlight = errors.New("a message is already being sent")
	// ErrEmptyMessage is returned for input that is blank after trimming
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoActiveSession is returned before the store has been initialised
	ErrNoActiveSession = errors.New("no active session")
)

// SessionStore is the part of the session store a turn needs
type SessionStore interface {
	ActiveID() string
	Session(id string) (domain.Session, bool)
	AppendMessage(ctx context.Context, id string, msg domain.Message) error
	SetContinuityToken(ctx context.Context, id, token string) error
}

// TurnResult describes a completed turn
type TurnResult struct {
	SessionID string         `json:"session_id"`
	Outgoing  domain.Message `json:"outgoing"`
	Incoming  domain.Message `json:"incoming"`
	Failed    bool           `json:"failed"`
}

// Status is broadcast whenever the sending indicator changes
type Status struct {
	Sending   bool   `json:"sending"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatService runs user turns against the assistant. Only one turn may be
// in flight at a time across all sessions; further sends are rejected.
type ChatService struct {
	store  SessionStore
	client assistant.Client

	sending atomic.Bool

	mu        sync.Mutex
	draft     string
	listeners map[int]chan Status
	nextID    int

	now func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(store SessionStore, client assistant.Client) *ChatService {
	return &ChatService{
		store:     store,
		client:    client,
		listeners: make(map[int]chan Status),
		now:       time.Now,
	}
}

// Send runs one turn against the active session
func (s *ChatService) Send(ctx context.Context, text string) (*TurnResult, error) {
	id := s.store.ActiveID()
	if id == "" {
		return nil, ErrNoActiveSession
	}
	return s.SendTo(ctx, id, text)
}

// SendDraft sends the pending input text to the active session
func (s *ChatService) SendDraft(ctx context.Context) (*TurnResult, error) {
	return s.Send(ctx, s.Draft())
}

// SendTo runs one turn against sessionID. The reply is delivered to that
// session even if the active session changes while the turn is in flight.
// The assistant call is not cancelled when ctx is; it is bounded by the
// client's own timeout.
func (s *ChatService) SendTo(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	target, ok := s.store.Session(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	if !s.sending.CompareAndSwap(false, true) {
		return nil, ErrTurnInFlight
	}
	defer s.finish(target.ID)

	// Captured now so a later token or session switch cannot redirect the turn
	token := target.ContinuityToken

	outgoing := domain.NewMessage(domain.RoleOutgoing, text, s.now())
	if err := s.store.AppendMessage(ctx, target.ID, outgoing); err != nil {
		return nil, err
	}
	s.SetDraft("")
	s.broadcast(Status{Sending: true, SessionID: target.ID})

	logger := log.With().Str("session_id", target.ID).Logger()
	start := time.Now()

	result := &TurnResult{SessionID: target.ID, Outgoing: outgoing}

	reply, err := s.client.Send(context.WithoutCancel(ctx), text, token)
	if err != nil {
		logger.Warn().Err(err).Dur("latency", time.Since(start)).Msg("assistant turn failed")
		result.Failed = true
		result.Incoming = domain.NewMessage(domain.RoleIncoming, ErrorPrefix+assistant.UserMessage(err), s.now())
	} else {
		logger.Info().Dur("latency", time.Since(start)).Bool("new_thread", token == "" && reply.ContinuityToken != "").Msg("assistant turn completed")
		result.Incoming = domain.NewMessage(domain.RoleIncoming, reply.Text, s.now())
	}

	if err := s.store.AppendMessage(ctx, target.ID, result.Incoming); err != nil {
		logger.Warn().Err(err).Msg("reply arrived for a removed session")
		return result, nil
	}

	if err == nil && reply.ContinuityToken != "" {
		if err := s.store.SetContinuityToken(ctx, target.ID, reply.ContinuityToken); err != nil {
			logger.Warn().Err(err).Msg("failed to record continuity token")
		}
	}

	return result, nil
}

// Sending reports whether a turn is in flight
func (s *ChatService) Sending() bool {
	return s.sending.Load()
}

// Draft returns the pending input text
func (s *ChatService) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the pending input text
func (s *ChatService) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Subscribe registers a listener for sending-state changes. Updates are
// dropped for a listener that is not keeping up.
func (s *ChatService) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 8)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *ChatService) finish(sessionID string) {
	s.sending.Store(false)
	s.broadcast(Status{Sending: false, SessionID: sessionID})
}

func (s *ChatService) broadcast(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- st:
		default:
		}
	}
}
