package coach

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/domain"
	"github.com/set-night/fitcoach/internal/tools"
)

type fakeModel struct {
	mu       sync.Mutex
	respond  func(ctx context.Context, call int, req domain.CompletionRequest) (*domain.Completion, error)
	calls    int
	requests []domain.CompletionRequest
}

func (m *fakeModel) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	req.Messages = domain.CloneTurns(req.Messages)
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.respond(ctx, call, req)
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func answer(text string) *domain.Completion {
	return &domain.Completion{Content: text}
}

func toolCall(id, name, args string) *domain.Completion {
	return &domain.Completion{ToolCalls: []domain.ToolCall{{ID: id, Name: name, Arguments: json.RawMessage(args)}}}
}

type fakeTools struct {
	mu      sync.Mutex
	results map[string]domain.ToolExecutionResult
	calls   []domain.ToolCall
}

func (f *fakeTools) Describe() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		{Name: tools.FindSubstitutes, Description: "substitutes"},
		{Name: tools.ReplaceExercise, Description: "replace", Mutating: true},
	}
}

func (f *fakeTools) Execute(_ context.Context, call domain.ToolCall, _ tools.Handle) domain.ToolExecutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	r, ok := f.results[call.Name]
	if !ok {
		return domain.ToolExecutionResult{CallID: call.ID, Tool: call.Name, Error: "unknown tool"}
	}
	r.CallID = call.ID
	r.Tool = call.Name
	return r
}

type memHistory struct {
	mu      sync.Mutex
	turns   map[uuid.UUID][]domain.Turn
	saveErr error
	saves   int
}

func newMemHistory() *memHistory {
	return &memHistory{turns: map[uuid.UUID][]domain.Turn{}}
}

func (h *memHistory) Load(_ context.Context, userID uuid.UUID) ([]domain.Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return domain.CloneTurns(h.turns[userID]), nil
}

func (h *memHistory) Save(_ context.Context, userID uuid.UUID, turns []domain.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saves++
	if h.saveErr != nil {
		return h.saveErr
	}
	h.turns[userID] = append(h.turns[userID], domain.CloneTurns(turns)...)
	return nil
}

func (h *memHistory) Reset(_ context.Context, userID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, userID)
	return nil
}

func (h *memHistory) get(userID uuid.UUID) []domain.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return domain.CloneTurns(h.turns[userID])
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
