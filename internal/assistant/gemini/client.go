// Package gemini answers chat turns with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/Rrens/swift-assistant/internal/assistant"
	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-2.5-flash"

// Client implements assistant.Client with a Gemini chat session per turn,
// seeded from the thread's stored history
type Client struct {
	apiKey       string
	model        string
	systemPrompt string
	timeout      time.Duration
	threads      *assistant.Threads
	// extra client options, e.g. an endpoint override
	opts []option.ClientOption
}

// NewClient creates a new Gemini client
func NewClient(cfg config.AssistantConfig, threads *assistant.Threads) *Client {
	model := cfg.Gemini.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:       cfg.Gemini.APIKey,
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		timeout:      cfg.Timeout,
		threads:      threads,
	}
}

// Factory builds the Gemini backend for the assistant router
func Factory(cfg config.AssistantConfig, threads *assistant.Threads) (assistant.Client, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	return NewClient(cfg, threads), nil
}

// Send runs one turn on the thread named by continuityToken
func (c *Client) Send(ctx context.Context, text, continuityToken string) (*assistant.Reply, error) {
	return c.threads.Exchange(ctx, continuityToken, text, c.complete)
}

func (c *Client) complete(ctx context.Context, history []assistant.Turn, text string) (string, error) {
	// The caller detaches ctx from the request, so this is the only bound on the turn
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", assistant.NewTransportError(err)
	}
	defer client.Close()

	model := client.GenerativeModel(c.model)
	if c.systemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(c.systemPrompt))
	}

	chat := model.StartChat()
	chat.History = toContents(history)

	resp, err := chat.SendMessage(ctx, genai.Text(text))
	if err != nil {
		return "", classify(ctx, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", assistant.NewServerError(0, "The assistant returned an empty response.")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out.WriteString(string(t))
		}
	}
	return assistant.ExtractReply(out.String()), nil
}

// classify maps a SendMessage failure onto the transport/server split.
// An expired turn context or a failed round trip is a transport error; an
// API error body supplies the server message.
func classify(ctx context.Context, err error) *assistant.ChatError {
	var urlErr *url.Error
	if ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &urlErr) {
		return assistant.NewTransportError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		chatErr := assistant.NewServerError(apiErr.Code, apiErr.Message)
		chatErr.Err = err
		return chatErr
	}

	chatErr := assistant.NewServerError(0, "The assistant could not process the request.")
	chatErr.Err = err
	return chatErr
}

// toContents maps stored turns onto Gemini's user/model roles
func toContents(history []assistant.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, t := range history {
		role := "user"
		if t.Role == assistant.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return contents
}
