package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/swift-assistant/internal/api"
	"github.com/Rrens/swift-assistant/internal/assistant"
	"github.com/Rrens/swift-assistant/internal/config"
	"github.com/Rrens/swift-assistant/internal/repository/memory"
	"github.com/Rrens/swift-assistant/internal/security"
	"github.com/Rrens/swift-assistant/internal/service"
	"github.com/Rrens/swift-assistant/internal/session"
)

// stubClient answers every turn from a function
type stubClient func(text, token string) (*assistant.Reply, error)

func (f stubClient) Send(ctx context.Context, text, token string) (*assistant.Reply, error) {
	return f(text, token)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	store  *session.Store
	chat   *service.ChatService
	token  string
	client *http.Client
}

func newTestServer(t *testing.T, cfg *config.Config, client assistant.Client) *testServer {
	t.Helper()

	storage := memory.NewStateStorage()
	store := session.NewStore(storage, session.Options{
		Namespace:       "test",
		WelcomeMessage:  "Welcome!",
		GreetingMessage: "New chat.",
	})
	store.Initialize(context.Background())
	chat := service.NewChatService(store, client)

	handler := api.NewRouter(cfg, api.Dependencies{Store: store, Chat: chat, Storage: storage})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{t: t, srv: srv, store: store, chat: chat, client: srv.Client()}
}

func defaultConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.MiddlewareTimeout = 5 * time.Second
	return cfg
}

func (s *testServer) do(method, path string, body any) (int, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type sessionDTO struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ThreadID string `json:"thread_id"`
	Active   bool   `json:"active"`
	Count    int    `json:"message_count"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
		Blocks  []struct {
			Kind     string `json:"kind"`
			Language string `json:"language"`
			HTML     string `json:"html"`
		} `json:"blocks"`
	} `json:"messages"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, defaultConfig(), nil)

	status, env := s.do(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, _ = s.do(http.MethodGet, "/api/v1/ready", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestSessionsLifecycle(t *testing.T) {
	s := newTestServer(t, defaultConfig(), nil)

	status, env := s.do(http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[struct {
		Sessions []sessionDTO `json:"sessions"`
		ActiveID string       `json:"active_id"`
	}](t, env.Data)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, "Chat 1", list.Sessions[0].Title)
	assert.Equal(t, list.Sessions[0].ID, list.ActiveID)
	first := list.ActiveID

	// The only session cannot be deleted
	status, env = s.do(http.MethodDelete, "/api/v1/sessions/"+first, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)

	status, env = s.do(http.MethodPost, "/api/v1/sessions", map[string]string{"title": "Billing"})
	require.Equal(t, http.StatusCreated, status)
	created := decode[sessionDTO](t, env.Data)
	assert.Equal(t, "Billing", created.Title)
	assert.True(t, created.Active)
	require.Len(t, created.Messages, 1)
	assert.Equal(t, "New chat.", created.Messages[0].Content)

	status, env = s.do(http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Chat 3", decode[sessionDTO](t, env.Data).Title)

	status, _ = s.do(http.MethodPut, "/api/v1/sessions/"+first+"/active", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodGet, "/api/v1/sessions/active", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, first, decode[sessionDTO](t, env.Data).ID)

	status, _ = s.do(http.MethodDelete, "/api/v1/sessions/"+first, nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.NotEqual(t, first, s.store.ActiveID())

	status, _ = s.do(http.MethodGet, "/api/v1/sessions/"+first, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodDelete, "/api/v1/sessions/"+first, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodPut, "/api/v1/sessions/"+first+"/active", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateSession_Validation(t *testing.T) {
	s := newTestServer(t, defaultConfig(), nil)

	status, env := s.do(http.MethodPost, "/api/v1/sessions", map[string]string{"title": strings.Repeat("x", 101)})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]any{"Title": "must be at most 100 characters"}, env.Error)
}

func TestChat_Turn(t *testing.T) {
	client := stubClient(func(text, token string) (*assistant.Reply, error) {
		if token == "" {
			return &assistant.Reply{Text: "Here you go:\n```go\nfmt.Println(1)\n```", ContinuityToken: "abc"}, nil
		}
		return &assistant.Reply{Text: "**ok**"}, nil
	})
	s := newTestServer(t, defaultConfig(), client)
	id := s.store.ActiveID()

	status, env := s.do(http.MethodPost, "/api/v1/chat", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, status)
	result := decode[service.TurnResult](t, env.Data)
	assert.Equal(t, id, result.SessionID)
	assert.Equal(t, "hello", result.Outgoing.Content)
	assert.False(t, result.Failed)

	status, _ = s.do(http.MethodPost, "/api/v1/chat", map[string]string{"message": "again", "session_id": id})
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodGet, "/api/v1/sessions/"+id+"?highlight=true", nil)
	require.Equal(t, http.StatusOK, status)
	sess := decode[sessionDTO](t, env.Data)
	assert.Equal(t, "abc", sess.ThreadID)
	require.Len(t, sess.Messages, 5)
	assert.Equal(t, "user", sess.Messages[1].Role)

	reply := sess.Messages[2]
	require.Len(t, reply.Blocks, 2)
	assert.Equal(t, "code", reply.Blocks[1].Kind)
	assert.Equal(t, "go", reply.Blocks[1].Language)
	assert.Contains(t, reply.Blocks[1].HTML, "chroma")
}

func TestChat_Errors(t *testing.T) {
	client := stubClient(func(text, token string) (*assistant.Reply, error) {
		return nil, assistant.NewServerError(http.StatusBadGateway, "Bad Gateway")
	})
	s := newTestServer(t, defaultConfig(), client)

	status, _ := s.do(http.MethodPost, "/api/v1/chat", map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/api/v1/chat", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/api/v1/chat", map[string]string{"message": "hi", "session_id": "missing"})
	assert.Equal(t, http.StatusNotFound, status)

	status, env := s.do(http.MethodPost, "/api/v1/chat", map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, status)
	result := decode[service.TurnResult](t, env.Data)
	assert.True(t, result.Failed)
	assert.Equal(t, service.ErrorPrefix+"Bad Gateway", result.Incoming.Content)
}

func TestChat_InFlightConflict(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	client := stubClient(func(text, token string) (*assistant.Reply, error) {
		close(entered)
		<-release
		return &assistant.Reply{Text: "done"}, nil
	})
	s := newTestServer(t, defaultConfig(), client)

	done := make(chan int, 1)
	go func() {
		status, _ := s.do(http.MethodPost, "/api/v1/chat", map[string]string{"message": "slow"})
		done <- status
	}()

	<-entered
	status, env := s.do(http.MethodGet, "/api/v1/chat/status", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, env.Data)["sending"])

	status, _ = s.do(http.MethodPost, "/api/v1/chat", map[string]string{"message": "second"})
	assert.Equal(t, http.StatusConflict, status)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestChat_Draft(t *testing.T) {
	s := newTestServer(t, defaultConfig(), stubClient(func(text, token string) (*assistant.Reply, error) {
		return &assistant.Reply{Text: "ok"}, nil
	}))

	status, _ := s.do(http.MethodPut, "/api/v1/chat/draft", map[string]string{"draft": "half typed"})
	require.Equal(t, http.StatusOK, status)

	status, env := s.do(http.MethodGet, "/api/v1/chat/draft", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "half typed", decode[map[string]string](t, env.Data)["draft"])

	_, err := s.chat.SendDraft(context.Background())
	require.NoError(t, err)

	_, env = s.do(http.MethodGet, "/api/v1/chat/draft", nil)
	assert.Empty(t, decode[map[string]string](t, env.Data)["draft"])
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.JWTSecret = "test-secret-key-with-32-chars!!"
	cfg.Auth.AccessTokenTTL = time.Hour
	s := newTestServer(t, cfg, nil)

	status, _ := s.do(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodGet, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	token, err := security.NewJWTManager(cfg.Auth.JWTSecret, time.Hour).GenerateAccessToken("widget")
	require.NoError(t, err)
	s.token = token

	status, _ = s.do(http.MethodGet, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t, defaultConfig(), stubClient(func(text, token string) (*assistant.Reply, error) {
		return &assistant.Reply{Text: "hi", ContinuityToken: "abc"}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	nextEvent := func() string {
		for scanner.Scan() {
			if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
				return name
			}
		}
		return ""
	}

	require.Equal(t, "ready", nextEvent())

	_, err = s.chat.Send(context.Background(), "hello")
	require.NoError(t, err)

	var names []string
	for len(names) < 5 {
		name := nextEvent()
		require.NotEmpty(t, name)
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{
		"message.appended", "chat.status", "message.appended", "token.updated", "chat.status",
	}, names)
}
