// Package gateway talks to the assistant endpoint of the logistics API gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Rrens/swift-assistant/internal/assistant"
	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/rs/zerolog/log"
)

const (
	unreadableResponse = "The assistant returned an unreadable response."
	requestNotHandled  = "The assistant could not process the request."
	maxBodyBytes       = 4 << 20
)

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

type chatResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
	Error    string `json:"error"`
}

// Client implements assistant.Client over one HTTP POST per turn
type Client struct {
	url    string
	apiKey string
	client *http.Client
}

// NewClient creates a gateway client. timeout bounds the whole exchange.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Factory builds the gateway backend for the assistant router
func Factory(cfg config.AssistantConfig, _ *assistant.Threads) (assistant.Client, error) {
	if cfg.Gateway.URL == "" {
		return nil, errors.New("gateway url is required")
	}
	return NewClient(cfg.Gateway.URL, cfg.Gateway.APIKey, cfg.Timeout), nil
}

// Send posts text (and the thread id, when set) and normalises the outcome
func (c *Client) Send(ctx context.Context, text, continuityToken string) (*assistant.Reply, error) {
	body, err := json.Marshal(chatRequest{Message: text, ThreadID: continuityToken})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Str("url", c.url).Msg("assistant request failed")
		return nil, assistant.NewTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Int("status", resp.StatusCode).Msg("assistant response interrupted")
		return nil, assistant.NewTransportError(err)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Bool("thread", continuityToken != "").
		Msg("assistant responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, assistant.NewServerError(resp.StatusCode, statusMessage(resp.StatusCode, raw))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		chatErr := assistant.NewServerError(resp.StatusCode, unreadableResponse)
		chatErr.Err = err
		return nil, chatErr
	}

	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = requestNotHandled
		}
		return nil, assistant.NewServerError(resp.StatusCode, msg)
	}

	return &assistant.Reply{Text: out.Response, ContinuityToken: out.ThreadID}, nil
}

// statusMessage picks the body's error field, then the status text, then the generic message
func statusMessage(code int, raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return assistant.NetworkErrorMessage
}
