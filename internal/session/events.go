package session

import (
	"time"

	"github.com/Rrens/swift-assistant/internal/domain"
)

// EventType names a change to the session collection
type EventType string

const (
	EventSessionCreated   EventType = "session.created"
	EventSessionDeleted   EventType = "session.deleted"
	EventSessionActivated EventType = "session.activated"
	EventMessageAppended  EventType = "message.appended"
	EventTokenUpdated     EventType = "token.updated"
)

const subscriberBuffer = 64

// Event is delivered to subscribers after a change has been applied
type Event struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id"`
	Title     string          `json:"title,omitempty"`
	Message   *domain.Message `json:"message,omitempty"`
	Token     string          `json:"thread_id,omitempty"`
	At        time.Time       `json:"at"`
}

// Subscribe registers a listener for store events. The returned function
// unsubscribes and closes the channel. Events are dropped for a subscriber
// whose buffer is full.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once bool
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subscribers, id)
		close(ch)
	}
}

// publish must be called with s.mu held
func (s *Store) publish(ev Event) {
	ev.At = s.now()
	for id, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.logger.Debug().Int("subscriber", id).Str("event", string(ev.Type)).Msg("subscriber lagging, event dropped")
		}
	}
}
