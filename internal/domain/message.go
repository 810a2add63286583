package domain

import (
	"sort"
	"time"
)

// MessageRole represents the producer of a message
type MessageRole string

const (
	// RoleOutgoing marks a message typed by the user
	RoleOutgoing MessageRole = "user"
	// RoleIncoming marks a reply (or an error notice) from the assistant
	RoleIncoming MessageRole = "assistant"
)

// Message is one entry of a session transcript
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	SentAt  time.Time   `json:"sent_at"`
}

// NewMessage creates a message stamped with the given time
func NewMessage(role MessageRole, content string, sentAt time.Time) Message {
	return Message{
		Role:    role,
		Content: content,
		SentAt:  sentAt,
	}
}

// SortForDisplay returns a copy of messages ordered by SentAt ascending.
// Messages with equal timestamps keep their insertion order.
func SortForDisplay(messages []Message) []Message {
	sorted := make([]Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SentAt.Before(sorted[j].SentAt)
	})
	return sorted
}
