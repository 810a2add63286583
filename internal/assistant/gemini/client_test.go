package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Rrens/swift-assistant/internal/assistant"
	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func TestToContents_MapsRoles(t *testing.T) {
	contents := toContents([]assistant.Turn{
		{Role: assistant.RoleUser, Content: "where is P-1?"},
		{Role: assistant.RoleAssistant, Content: "in transit"},
	})

	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("in transit")}, contents[1].Parts)
}

func TestFactory(t *testing.T) {
	_, err := Factory(config.AssistantConfig{}, assistant.NewThreads(1))
	assert.Error(t, err)

	client, err := Factory(config.AssistantConfig{Gemini: config.GeminiConfig{APIKey: "k"}}, assistant.NewThreads(1))
	require.NoError(t, err)
	assert.Equal(t, defaultModel, client.(*Client).model)
}

func TestClient_HungEndpointTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(config.AssistantConfig{
		Timeout: 100 * time.Millisecond,
		Gemini:  config.GeminiConfig{APIKey: "k"},
	}, assistant.NewThreads(5))
	client.opts = []option.ClientOption{option.WithEndpoint(srv.URL)}

	done := make(chan error, 1)
	go func() {
		_, err := client.Send(context.Background(), "where is P-1?", "")
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, assistant.NetworkErrorMessage, assistant.UserMessage(err))
	case <-time.After(5 * time.Second):
		t.Fatal("gemini turn was not bounded by the configured timeout")
	}
}

func TestClassify(t *testing.T) {
	live := context.Background()

	expired, cancel := context.WithTimeout(live, time.Nanosecond)
	defer cancel()
	<-expired.Done()

	tests := []struct {
		name    string
		ctx     context.Context
		err     error
		kind    assistant.ErrorKind
		message string
	}{
		{"deadline", live, context.DeadlineExceeded, assistant.ErrorTransport, assistant.NetworkErrorMessage},
		{"expired context", expired, errors.New("rpc error"), assistant.ErrorTransport, assistant.NetworkErrorMessage},
		{"round trip", live, &url.Error{Op: "Post", URL: "https://x", Err: errors.New("connection refused")}, assistant.ErrorTransport, assistant.NetworkErrorMessage},
		{"api error", live, &googleapi.Error{Code: 400, Message: "API key not valid"}, assistant.ErrorServer, "API key not valid"},
		{"other", live, errors.New("blocked"), assistant.ErrorServer, "The assistant could not process the request."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.ctx, tt.err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.message, got.Message)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}
