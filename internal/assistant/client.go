package assistant

import (
	"context"
	"errors"
	"fmt"
)

// NetworkErrorMessage is shown when the assistant could not be reached at all
const NetworkErrorMessage = "Network error: unable to reach the assistant. Please try again."

// Reply is the outcome of one successful exchange
type Reply struct {
	Text string
	// ContinuityToken is empty when the assistant did not return one
	ContinuityToken string
}

// Client performs exactly one request/response exchange per call. No
// retries are attempted.
type Client interface {
	Send(ctx context.Context, text, continuityToken string) (*Reply, error)
}

// ErrorKind classifies a failed exchange
type ErrorKind string

const (
	// ErrorTransport means the request never got a usable HTTP response
	ErrorTransport ErrorKind = "transport"
	// ErrorServer means the assistant answered and reported a failure
	ErrorServer ErrorKind = "server"
)

// ChatError carries the most specific human-readable reason for a failed exchange
type ChatError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *ChatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// NewTransportError reports a request that did not reach the assistant
func NewTransportError(err error) *ChatError {
	return &ChatError{Kind: ErrorTransport, Message: NetworkErrorMessage, Err: err}
}

// NewServerError reports a failure the assistant returned
func NewServerError(statusCode int, message string) *ChatError {
	return &ChatError{Kind: ErrorServer, Message: message, StatusCode: statusCode}
}

// UserMessage returns the text that belongs in the transcript for err
func UserMessage(err error) string {
	var chatErr *ChatError
	if errors.As(err, &chatErr) && chatErr.Message != "" {
		return chatErr.Message
	}
	return NetworkErrorMessage
}
