package assistant

import (
	"container/list"
	"context"
	"sync"

	"github.com/google/uuid"
)

// Turn is one line of a conversation kept for backends without server-side memory
type Turn struct {
	Role    string
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxThreads caps how many threads NewThreads remembers
const DefaultMaxThreads = 1024

// Threads keeps bounded conversation history keyed by thread id, so that
// backends that are stateless per request can still honour continuity tokens.
// Once maxThreads threads are held, recording a new one forgets the thread
// that was used least recently.
type Threads struct {
	mu         sync.Mutex
	threads    map[string]*list.Element
	recent     *list.List // front is most recently used
	maxTurns   int
	maxThreads int
	newID      func() string
}

type thread struct {
	id    string
	turns []Turn
}

// NewThreads creates a thread registry keeping at most maxTurns exchanges per
// thread and DefaultMaxThreads threads
func NewThreads(maxTurns int) *Threads {
	return NewThreadsWithLimit(maxTurns, DefaultMaxThreads)
}

// NewThreadsWithLimit is NewThreads with an explicit thread cap
func NewThreadsWithLimit(maxTurns, maxThreads int) *Threads {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	if maxThreads <= 0 {
		maxThreads = DefaultMaxThreads
	}
	return &Threads{
		threads:    make(map[string]*list.Element),
		recent:     list.New(),
		maxTurns:   maxTurns,
		maxThreads: maxThreads,
		newID:      uuid.NewString,
	}
}

// History returns a copy of the turns recorded for id
func (t *Threads) History(id string) []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	el, ok := t.threads[id]
	if !ok {
		return []Turn{}
	}
	turns := el.Value.(*thread).turns
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Len reports how many threads are remembered
func (t *Threads) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recent.Len()
}

// Exchange runs complete with the thread's prior turns and records the new
// exchange on success. An empty token starts a new thread whose id is
// returned as the reply's continuity token. A token unknown to this process,
// such as one issued before a restart, continues with empty history.
func (t *Threads) Exchange(
	ctx context.Context,
	token, text string,
	complete func(ctx context.Context, history []Turn, text string) (string, error),
) (*Reply, error) {
	id := token
	if id == "" {
		id = t.newID()
	}

	reply, err := complete(ctx, t.History(id), text)
	if err != nil {
		return nil, err
	}

	t.record(id, Turn{Role: RoleUser, Content: text}, Turn{Role: RoleAssistant, Content: reply})

	return &Reply{Text: reply, ContinuityToken: id}, nil
}

func (t *Threads) record(id string, turns ...Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	el, ok := t.threads[id]
	if ok {
		t.recent.MoveToFront(el)
	} else {
		el = t.recent.PushFront(&thread{id: id})
		t.threads[id] = el
	}

	th := el.Value.(*thread)
	th.turns = append(th.turns, turns...)
	if limit := t.maxTurns * 2; len(th.turns) > limit {
		th.turns = append([]Turn(nil), th.turns[len(th.turns)-limit:]...)
	}

	for t.recent.Len() > t.maxThreads {
		oldest := t.recent.Back()
		t.recent.Remove(oldest)
		delete(t.threads, oldest.Value.(*thread).id)
	}
}
