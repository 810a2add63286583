package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when an operation targets an unknown session
	ErrSessionNotFound = errors.New("session not found")
	// ErrLastSession is returned when deleting the only remaining session
	ErrLastSession = errors.New("cannot delete the last remaining session")
	// ErrStateNotFound is returned by StateStorage when nothing is stored under a key
	ErrStateNotFound = errors.New("persisted state not found")
)

// Session is one independent conversation thread
type Session struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	ContinuityToken string    `json:"thread_id,omitempty"`
	Messages        []Message `json:"messages"`
	CreatedAt       time.Time `json:"created_at,omitzero"`
}

// HasToken reports whether the assistant already issued a continuity token
func (s *Session) HasToken() bool {
	return s.ContinuityToken != ""
}

// Transcript returns the messages in display order
func (s *Session) Transcript() []Message {
	return SortForDisplay(s.Messages)
}

// Clone returns a deep copy that shares no slice memory with s
func (s *Session) Clone() Session {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return c
}

// StateStorage is the durable key/value area the session collection is written to.
// The whole collection is stored as one value under a fixed namespace key.
type StateStorage interface {
	// Load returns the stored payload or ErrStateNotFound
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the payload stored under key
	Save(ctx context.Context, key string, payload []byte) error

	// Close releases the underlying connection
	Close() error
}

// Pinger is implemented by storages that can report connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}
