// Package session owns the collection of chat sessions, the active-session
// pointer and their synchronisation with durable storage.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/Rrens/swift-assistant/internal/domain"
)

// Options configures the texts and persistence key of a Store
type Options struct {
	Namespace       string
	WelcomeMessage  string
	GreetingMessage string
	TitlePrefix     string
	WriteTimeout    time.Duration
}

// OptionsFromConfig collects store options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Namespace:       cfg.Storage.Namespace,
		WelcomeMessage:  cfg.Chat.WelcomeMessage,
		GreetingMessage: cfg.Chat.GreetingMessage,
		TitlePrefix:     cfg.Chat.TitlePrefix,
		WriteTimeout:    cfg.Storage.WriteTimeout,
	}
}

// Store is the authoritative in-memory session collection. Every mutation
// writes the whole collection to storage before the lock is released, so
// writes reach storage in mutation order.
type Store struct {
	mu       sync.Mutex
	storage  domain.StateStorage
	opts     Options
	sessions []domain.Session
	activeID string
	counter  int

	subscribers map[int]chan Event
	nextSub     int

	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewStore creates an empty store. Call Initialize before use.
func NewStore(storage domain.StateStorage, opts Options) *Store {
	if opts.TitlePrefix == "" {
		opts.TitlePrefix = "Chat"
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Store{
		storage:     storage,
		opts:        opts,
		subscribers: make(map[int]chan Event),
		logger:      log.With().Str("component", "session_store").Logger(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Initialize loads the persisted collection. Missing, empty, unreadable or
// malformed state all yield a fresh default session; it never fails.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("namespace", s.opts.Namespace).Msg("discarding persisted sessions")
	}

	if len(sessions) > 0 {
		s.sessions = sessions
		s.activeID = sessions[0].ID
		s.counter = highestTitleNumber(sessions, s.opts.TitlePrefix)
		s.logger.Info().Int("sessions", len(sessions)).Msg("sessions restored")
		return
	}

	s.sessions = nil
	s.counter = 0
	first := s.newSession("", s.opts.WelcomeMessage)
	s.sessions = []domain.Session{first}
	s.activeID = first.ID
	s.persist(ctx)
	s.logger.Info().Str("session_id", first.ID).Msg("default session created")
}

// CreateSession inserts a new session at the front of the collection, makes
// it active and returns its id
func (s *Store) CreateSession(ctx context.Context, titleHint string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.newSession(titleHint, s.opts.GreetingMessage)
	s.sessions = append([]domain.Session{sess}, s.sessions...)
	s.activeID = sess.ID
	s.persist(ctx)

	s.publish(Event{Type: EventSessionCreated, SessionID: sess.ID, Title: sess.Title})
	s.publish(Event{Type: EventSessionActivated, SessionID: sess.ID})
	return sess.ID
}

// DeleteSession removes a session. The last remaining session cannot be
// deleted. Deleting the active session activates the first remaining one.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) <= 1 {
		return domain.ErrLastSession
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.ErrSessionNotFound
	}

	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	wasActive := s.activeID == id
	if wasActive {
		s.activeID = s.sessions[0].ID
	}
	s.persist(ctx)

	s.publish(Event{Type: EventSessionDeleted, SessionID: id})
	if wasActive {
		s.publish(Event{Type: EventSessionActivated, SessionID: s.activeID})
	}
	return nil
}

// AppendMessage appends msg to the session's transcript. A session deleted
// while a turn was in flight is reported but otherwise ignored.
func (s *Store) AppendMessage(ctx context.Context, id string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		s.logger.Warn().Str("session_id", id).Str("role", string(msg.Role)).Msg("append to unknown session ignored")
		return domain.ErrSessionNotFound
	}

	if msg.SentAt.IsZero() {
		msg.SentAt = s.now()
	}
	s.sessions[idx].Messages = append(s.sessions[idx].Messages, msg)
	s.persist(ctx)

	s.publish(Event{Type: EventMessageAppended, SessionID: id, Message: &msg})
	return nil
}

// SetContinuityToken records the assistant's thread id for a session. An
// empty token never clears an existing one, and an established token is
// never replaced.
func (s *Store) SetContinuityToken(ctx context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		s.logger.Warn().Str("session_id", id).Msg("token for unknown session ignored")
		return domain.ErrSessionNotFound
	}

	sess := &s.sessions[idx]
	if token == "" || sess.HasToken() {
		if token != "" && token != sess.ContinuityToken {
			s.logger.Debug().Str("session_id", id).Msg("keeping established continuity token")
		}
		return nil
	}

	sess.ContinuityToken = token
	s.persist(ctx)

	s.publish(Event{Type: EventTokenUpdated, SessionID: id, Token: token})
	return nil
}

// Active returns a copy of the active session
func (s *Store) Active() (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(s.activeID)
	if idx < 0 {
		return domain.Session{}, false
	}
	return s.sessions[idx].Clone(), true
}

// ActiveID returns the id of the active session, or "" before Initialize
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// SetActive switches the active session. The pointer is not persisted.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return domain.ErrSessionNotFound
	}
	if s.activeID == id {
		return nil
	}
	s.activeID = id
	s.publish(Event{Type: EventSessionActivated, SessionID: id})
	return nil
}

// Session returns a copy of the session with id
func (s *Store) Session(id string) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Session{}, false
	}
	return s.sessions[idx].Clone(), true
}

// Sessions returns copies of all sessions in collection order
func (s *Store) Sessions() []domain.Session {
	sessions, _ := s.Snapshot()
	return sessions
}

// Snapshot returns copies of all sessions together with the active id,
// read under one lock
func (s *Store) Snapshot() ([]domain.Session, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Session, len(s.sessions))
	for i := range s.sessions {
		out[i] = s.sessions[i].Clone()
	}
	return out, s.activeID
}

func (s *Store) newSession(titleHint, greeting string) domain.Session {
	s.counter++
	title := strings.TrimSpace(titleHint)
	if title == "" {
		title = fmt.Sprintf("%s %d", s.opts.TitlePrefix, s.counter)
	}

	now := s.now()
	return domain.Session{
		ID:        s.newID(),
		Title:     title,
		Messages:  []domain.Message{domain.NewMessage(domain.RoleIncoming, greeting, now)},
		CreatedAt: now,
	}
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) load(ctx context.Context) ([]domain.Session, error) {
	payload, err := s.storage.Load(ctx, s.opts.Namespace)
	if errors.Is(err, domain.ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	var sessions []domain.Session
	if err := json.Unmarshal(payload, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return sessions, nil
}

// persist writes the whole collection. Failures are logged and the
// in-memory state is kept. Must be called with s.mu held.
func (s *Store) persist(ctx context.Context) {
	payload, err := json.Marshal(s.sessions)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode sessions")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.WriteTimeout)
	defer cancel()

	if err := s.storage.Save(ctx, s.opts.Namespace, payload); err != nil {
		s.logger.Error().Err(err).Str("namespace", s.opts.Namespace).Int("sessions", len(s.sessions)).Msg("failed to persist sessions")
	}
}

// highestTitleNumber continues the "<prefix> N" sequence after a restore
func highestTitleNumber(sessions []domain.Session, prefix string) int {
	highest := len(sessions)
	for _, sess := range sessions {
		rest, ok := strings.CutPrefix(sess.Title, prefix+" ")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}
