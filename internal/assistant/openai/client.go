// Package openai answers chat turns through an OpenAI-compatible
// chat completions API. DeepSeek speaks the same protocol and is served by
// the same client.
package openai

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

// Client implements assistant.Client for chat completions
type Client struct {
	apiKey       string
	model        string
	baseURL      string
	systemPrompt string
	threads      *assistant.Threads
	client       *http.Client
}

// NewClient creates a client for the API described by api
func NewClient(api config.APIConfig, cfg config.AssistantConfig, threads *assistant.Threads) *Client {
	return &Client{
		apiKey:       api.APIKey,
		model:        api.Model,
		baseURL:      strings.TrimRight(api.BaseURL, "/"),
		systemPrompt: cfg.SystemPrompt,
		threads:      threads,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Factory builds the OpenAI backend
func Factory(cfg config.AssistantConfig, threads *assistant.Threads) (assistant.Client, error) {
	return newFromAPI("openai", cfg.OpenAI, cfg, threads)
}

// DeepSeekFactory builds the DeepSeek backend
func DeepSeekFactory(cfg config.AssistantConfig, threads *assistant.Threads) (assistant.Client, error) {
	return newFromAPI("deepseek", cfg.DeepSeek, cfg, threads)
}

func newFromAPI(name string, api config.APIConfig, cfg config.AssistantConfig, threads *assistant.Threads) (assistant.Client, error) {
	if api.APIKey == "" {
		return nil, fmt.Errorf("%s api key is required", name)
	}
	if api.BaseURL == "" || api.Model == "" {
		return nil, errors.New("base url and model are required")
	}
	return NewClient(api, cfg, threads), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
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
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   2048,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", assistant.NewTransportError(err)
	}
	defer resp.Body.Close()

	var out chatResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", assistant.NewServerError(resp.StatusCode, msg)
	}
	if decodeErr != nil || len(out.Choices) == 0 {
		chatErr := assistant.NewServerError(resp.StatusCode, "The assistant returned an unreadable response.")
		chatErr.Err = decodeErr
		return "", chatErr
	}

	return assistant.ExtractReply(out.Choices[0].Message.Content), nil
}
