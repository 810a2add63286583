package anthropic

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

const apiVersion = "2023-06-01"

// Client implements assistant.Client for the Anthropic messages API
type Client struct {
	apiKey       string
	model        string
	baseURL      string
	systemPrompt string
	threads      *assistant.Threads
	client       *http.Client
}

// NewClient creates a new Anthropic client
func NewClient(cfg config.AssistantConfig, threads *assistant.Threads) *Client {
	return &Client{
		apiKey:       cfg.Anthropic.APIKey,
		model:        cfg.Anthropic.Model,
		baseURL:      strings.TrimRight(cfg.Anthropic.BaseURL, "/"),
		systemPrompt: cfg.SystemPrompt,
		threads:      threads,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Factory builds the Anthropic backend
func Factory(cfg config.AssistantConfig, threads *assistant.Threads) (assistant.Client, error) {
	if cfg.Anthropic.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if cfg.Anthropic.BaseURL == "" || cfg.Anthropic.Model == "" {
		return nil, errors.New("base url and model are required")
	}
	return NewClient(cfg, threads), nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Send runs one turn on the thread named by continuityToken
func (c *Client) Send(ctx context.Context, text, continuityToken string) (*assistant.Reply, error) {
	return c.threads.Exchange(ctx, continuityToken, text, c.complete)
}

func (c *Client) complete(ctx context.Context, history []assistant.Turn, text string) (string, error) {
	// the system prompt travels in its own field
	turns := assistant.BuildMessages("", history, text)
	messages := make([]message, len(turns))
	for i, t := range turns {
		messages[i] = message{Role: t.Role, Content: t.Content}
	}

	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: 2048,
		System:    c.systemPrompt,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", assistant.NewTransportError(err)
	}
	defer resp.Body.Close()

	var out messagesResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", assistant.NewServerError(resp.StatusCode, msg)
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" || block.Type == "" {
			sb.WriteString(block.Text)
		}
	}
	if decodeErr != nil || sb.Len() == 0 {
		chatErr := assistant.NewServerError(resp.StatusCode, "The assistant returned an unreadable response.")
		chatErr.Err = decodeErr
		return "", chatErr
	}

	return assistant.ExtractReply(sb.String()), nil
}
