package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/swift-assistant/internal/assistant"
	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/Rrens/swift-assistant/internal/repository/memory"
	"github.com/Rrens/swift-assistant/internal/session"
)

// MockClient is a mock implementation of assistant.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Send(ctx context.Context, text, continuityToken string) (*assistant.Reply, error) {
	args := m.Called(ctx, text, continuityToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*assistant.Reply), args.Error(1)
}

func newStore(t *testing.T) *session.Store {
	t.Helper()
	store := session.NewStore(memory.NewStateStorage(), session.Options{
		Namespace:       "test",
		WelcomeMessage:  "Welcome!",
		GreetingMessage: "New chat.",
	})
	store.Initialize(context.Background())
	return store
}

func lastTwo(t *testing.T, store *session.Store, id string) (domain.Message, domain.Message) {
	t.Helper()
	sess, ok := store.Session(id)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(sess.Messages), 2)
	n := len(sess.Messages)
	return sess.Messages[n-2], sess.Messages[n-1]
}

func TestChatService_FirstTurnSetsToken(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	client := new(MockClient)
	svc := NewChatService(store, client)
	id := store.ActiveID()

	client.On("Send", mock.Anything, "hello", "").Return(&assistant.Reply{Text: "hi", ContinuityToken: "abc"}, nil).Once()

	result, err := svc.Send(ctx, "  hello  ")
	require.NoError(t, err)
	assert.False(t, result.Failed)
	assert.Equal(t, id, result.SessionID)

	out, in := lastTwo(t, store, id)
	assert.Equal(t, domain.RoleOutgoing, out.Role)
	assert.Equal(t, "hello", out.Content)
	assert.Equal(t, domain.RoleIncoming, in.Role)
	assert.Equal(t, "hi", in.Content)

	sess, _ := store.Session(id)
	assert.Len(t, sess.Messages, 3)
	assert.Equal(t, "abc", sess.ContinuityToken)
	assert.False(t, svc.Sending())

	// Second turn reuses the token; a reply without thread_id keeps it
	client.On("Send", mock.Anything, "again", "abc").Return(&assistant.Reply{Text: "ok"}, nil).Once()

	_, err = svc.Send(ctx, "again")
	require.NoError(t, err)

	sess, _ = store.Session(id)
	assert.Len(t, sess.Messages, 5)
	assert.Equal(t, "abc", sess.ContinuityToken)
	client.AssertExpectations(t)
}

func TestChatService_FailureBecomesTranscriptEntry(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	client := new(MockClient)
	svc := NewChatService(store, client)
	id := store.ActiveID()

	client.On("Send", mock.Anything, "where is P-1?", "").
		Return(nil, assistant.NewTransportError(context.DeadlineExceeded))

	result, err := svc.Send(ctx, "where is P-1?")
	require.NoError(t, err)
	assert.True(t, result.Failed)

	out, in := lastTwo(t, store, id)
	assert.Equal(t, "where is P-1?", out.Content)
	assert.Equal(t, domain.RoleIncoming, in.Role)
	assert.True(t, strings.HasPrefix(in.Content, ErrorPrefix))
	assert.Equal(t, ErrorPrefix+assistant.NetworkErrorMessage, in.Content)

	sess, _ := store.Session(id)
	assert.Empty(t, sess.ContinuityToken)
	assert.False(t, svc.Sending())
}

func TestChatService_ServerReasonIsShown(t *testing.T) {
	store := newStore(t)
	client := new(MockClient)
	svc := NewChatService(store, client)

	client.On("Send", mock.Anything, "hi", "").Return(nil, assistant.NewServerError(200, "thread expired"))

	result, err := svc.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, ErrorPrefix+"thread expired", result.Incoming.Content)
}

func TestChatService_Preconditions(t *testing.T) {
	store := newStore(t)
	client := new(MockClient)
	svc := NewChatService(store, client)

	_, err := svc.Send(context.Background(), "   \n\t")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.SendTo(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	empty := session.NewStore(memory.NewStateStorage(), session.Options{})
	_, err = NewChatService(empty, client).Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	client.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	sess, _ := store.Active()
	assert.Len(t, sess.Messages, 1)
}

func TestChatService_RejectsWhileInFlightAndKeepsCapturedTarget(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	client := new(MockClient)
	svc := NewChatService(store, client)

	first := store.ActiveID()
	status, cancel := svc.Subscribe()
	defer cancel()

	entered := make(chan struct{})
	release := make(chan struct{})
	client.On("Send", mock.Anything, "slow question", "").
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&assistant.Reply{Text: "slow answer", ContinuityToken: "t-1"}, nil).Once()

	svc.SetDraft("slow question")
	done := make(chan *TurnResult, 1)
	go func() {
		result, err := svc.SendDraft(ctx)
		assert.NoError(t, err)
		done <- result
	}()

	<-entered
	assert.True(t, svc.Sending())
	assert.Empty(t, svc.Draft(), "draft clears as soon as the outgoing message is stored")
	assert.Equal(t, Status{Sending: true, SessionID: first}, <-status)

	// User switches to a new session and tries to send there
	second := store.CreateSession(ctx, "")
	_, err := svc.Send(ctx, "another")
	assert.ErrorIs(t, err, ErrTurnInFlight)

	close(release)

	select {
	case result := <-done:
		assert.Equal(t, first, result.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not complete")
	}
	assert.Equal(t, Status{Sending: false, SessionID: first}, <-status)

	out, in := lastTwo(t, store, first)
	assert.Equal(t, "slow question", out.Content)
	assert.Equal(t, "slow answer", in.Content)

	firstSess, _ := store.Session(first)
	assert.Equal(t, "t-1", firstSess.ContinuityToken)

	secondSess, _ := store.Session(second)
	assert.Len(t, secondSess.Messages, 1, "captured target receives the reply, not the active session")
	assert.Empty(t, secondSess.ContinuityToken)
	assert.False(t, svc.Sending())
}

func TestChatService_RequestCancellationDoesNotAbortTurn(t *testing.T) {
	store := newStore(t)
	client := new(MockClient)
	svc := NewChatService(store, client)

	ctx, cancel := context.WithCancel(context.Background())
	client.On("Send", mock.Anything, "hello", "").
		Run(func(args mock.Arguments) {
			cancel()
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return(&assistant.Reply{Text: "hi"}, nil)

	result, err := svc.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Incoming.Content)
}

func TestChatService_SessionDeletedMidFlight(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	client := new(MockClient)
	svc := NewChatService(store, client)

	doomed := store.CreateSession(ctx, "")
	client.On("Send", mock.Anything, "hello", "").
		Run(func(args mock.Arguments) {
			require.NoError(t, store.DeleteSession(ctx, doomed))
		}).
		Return(&assistant.Reply{Text: "hi", ContinuityToken: "t"}, nil)

	result, err := svc.SendTo(ctx, doomed, "hello")
	require.NoError(t, err)
	assert.Equal(t, doomed, result.SessionID)
	assert.False(t, svc.Sending())

	_, ok := store.Session(doomed)
	assert.False(t, ok)
	assert.Len(t, store.Sessions(), 1)
}

func TestChatService_TurnAtomicity(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	client := new(MockClient)
	svc := NewChatService(store, client)
	id := store.ActiveID()

	client.On("Send", mock.Anything, "ok", mock.Anything).Return(&assistant.Reply{Text: "fine"}, nil)
	client.On("Send", mock.Anything, "fail", mock.Anything).Return(nil, errors.New("boom"))

	inputs := []string{"ok", "fail", "ok", "fail"}
	for _, in := range inputs {
		before, _ := store.Session(id)
		_, err := svc.Send(ctx, in)
		require.NoError(t, err)

		after, _ := store.Session(id)
		require.Len(t, after.Messages, len(before.Messages)+2)
		added := after.Messages[len(before.Messages):]
		assert.Equal(t, domain.RoleOutgoing, added[0].Role)
		assert.Equal(t, in, added[0].Content)
		assert.Equal(t, domain.RoleIncoming, added[1].Role)
	}
}
