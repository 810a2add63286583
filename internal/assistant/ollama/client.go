// Package ollama answers chat turns with a local Ollama model.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Rrens/swift-assistant/internal/assistant"
	"github.com/Rrens/swift-assistant/internal/config"
)

// Client implements assistant.Client against Ollama's chat API
type Client struct {
	host         string
	model        string
	systemPrompt string
	threads      *assistant.Threads
	client       *http.Client
}

// NewClient creates a new Ollama client
func NewClient(cfg config.AssistantConfig, threads *assistant.Threads) *Client {
	model := cfg.Ollama.Model
	if model == "" {
		model = "llama3"
	}
	return &Client{
		host:         strings.TrimRight(cfg.Ollama.Host, "/"),
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		threads:      threads,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Factory builds the Ollama backend for the assistant router
func Factory(cfg config.AssistantConfig, threads *assistant.Threads) (assistant.Client, error) {
	if cfg.Ollama.Host == "" {
		return nil, errors.New("ollama host is required")
	}
	return NewClient(cfg, threads), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

// Send runs one turn on the thread named by continuityToken
func (c *Client) Send(ctx context.Context, text, continuityToken string) (*assistant.Reply, error) {
	return c.threads.Exchange(ctx, continuityToken, text, c.complete)
}

func (c *Client) complete(ctx context.Context, history []assistant.Turn, text string) (string, error) {
	turns := assistant.BuildMessages(c.systemPrompt, history, text)
	messages := make([]chatMessage, len(turns))
	for i, t := range turns {
		messages[i] = chatMessage{Role: t.Role, Content: t.Content}
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: map[string]any{
			"temperature": 0.3,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", assistant.NewTransportError(err)
	}
	defer resp.Body.Close()

	var out chatResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", assistant.NewServerError(resp.StatusCode, msg)
	}
	if decodeErr != nil {
		chatErr := assistant.NewServerError(resp.StatusCode, "The assistant returned an unreadable response.")
		chatErr.Err = decodeErr
		return "", chatErr
	}

	return assistant.ExtractReply(out.Message.Content), nil
}
