// Package history keeps each user's conversation log: Postgres is the system
// of record and a per-user cache mirrors what was last persisted.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/domain"
)

const (
	// MaxPendingTurns bounds the unsaved turns kept per user; older ones are dropped first.
	MaxPendingTurns = 64
	// MaxPendingUsers bounds how many users may have unsaved turns at once.
	MaxPendingUsers = 1024
)

// Persister is the history half of the Backend Data Gateway.
type Persister interface {
	LoadHistory(ctx context.Context, userID uuid.UUID) ([]domain.HistoryRow, error)
	AppendHistory(ctx context.Context, userID uuid.UUID, rows []domain.HistoryRow) error
	ReplaceHistory(ctx context.Context, userID uuid.UUID, rows []domain.HistoryRow) error
}

type Store struct {
	persister Persister
	cache     Cache
	timeout   time.Duration
	locks     keyedMutex

	pendingMu sync.Mutex
	pending   map[uuid.UUID][]domain.Turn
}

func NewStore(persister Persister, cache Cache, timeout time.Duration) *Store {
	return &Store{
		persister: persister,
		cache:     cache,
		timeout:   timeout,
		pending:   make(map[uuid.UUID][]domain.Turn),
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Load returns the user's turns in persisted order. A user without history
// gets an empty slice. Turns from a previously failed save are flushed
// first; if they still cannot be written they are returned after the
// persisted turns but never cached.
func (s *Store) Load(ctx context.Context, userID uuid.UUID) ([]domain.Turn, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	unsaved := s.flushPending(ctx, userID)

	if cached, ok := s.cache.Get(userID); ok {
		return append(cached, unsaved...), nil
	}

	loadCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.persister.LoadHistory(loadCtx, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	turns := decodeRows(userID, rows)
	s.cache.Set(userID, turns)
	return append(turns, unsaved...), nil
}

// Save appends turns to the persisted log. On success the cache entry is
// invalidated and rebuilt from the turns known to be persisted; on failure
// the turns are kept and retried by the next Load or Save.
func (s *Store) Save(ctx context.Context, userID uuid.UUID, turns []domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	s.pendingMu.Lock()
	batch := append(s.pending[userID], domain.CloneTurns(turns)...)
	delete(s.pending, userID)
	s.pendingMu.Unlock()

	if err := s.append(ctx, userID, batch); err != nil {
		s.keepPending(userID, batch, err)
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Reset clears the user's persisted history and any unsaved turns.
func (s *Store) Reset(ctx context.Context, userID uuid.UUID) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	resetCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.persister.ReplaceHistory(resetCtx, userID, nil); err != nil {
		return fmt.Errorf("reset history: %w", err)
	}

	s.pendingMu.Lock()
	delete(s.pending, userID)
	s.pendingMu.Unlock()
	s.cache.Invalidate(userID)
	s.cache.Set(userID, nil)
	return nil
}

// Pending reports how many turns are waiting for a retried save.
func (s *Store) Pending(userID uuid.UUID) int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending[userID])
}

// append writes batch and rebuilds the cache entry. Callers hold the user lock.
func (s *Store) append(ctx context.Context, userID uuid.UUID, batch []domain.Turn) error {
	rows, err := encodeTurns(userID, batch)
	if err != nil {
		return err
	}

	saveCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.persister.AppendHistory(saveCtx, userID, rows); err != nil {
		return err
	}

	base, cached := s.cache.Get(userID)
	s.cache.Invalidate(userID)
	if cached {
		s.cache.Set(userID, append(base, batch...))
	}
	return nil
}

func (s *Store) flushPending(ctx context.Context, userID uuid.UUID) []domain.Turn {
	s.pendingMu.Lock()
	batch := s.pending[userID]
	delete(s.pending, userID)
	s.pendingMu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	if err := s.append(ctx, userID, batch); err != nil {
		slog.Error("retry of unsaved history failed", "user_id", userID, "turns", len(batch), "error", err)
		s.keepPending(userID, batch, err)
		return domain.CloneTurns(batch)
	}
	slog.Info("unsaved history flushed", "user_id", userID, "turns", len(batch))
	return nil
}

// keepPending queues batch for a retried save unless err can never succeed.
func (s *Store) keepPending(userID uuid.UUID, batch []domain.Turn, err error) {
	if permanent(err) {
		slog.Warn("dropping unsaved history", "user_id", userID, "turns", len(batch), "reason", "permanent error", "error", err)
		return
	}

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	queued, exists := s.pending[userID]
	if !exists && len(s.pending) >= MaxPendingUsers {
		slog.Warn("dropping unsaved history", "user_id", userID, "turns", len(batch), "reason", "too many users pending")
		return
	}
	queued = append(batch, queued...)
	if over := len(queued) - MaxPendingTurns; over > 0 {
		// Cut at an exchange boundary so no tool result outlives its call.
		for over < len(queued) && queued[over].Role != domain.RoleUser {
			over++
		}
		slog.Warn("dropping unsaved history", "user_id", userID, "turns", over, "reason", "queue full")
		queued = queued[over:]
	}
	s.pending[userID] = queued
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden)
}

func encodeTurns(userID uuid.UUID, turns []domain.Turn) ([]domain.HistoryRow, error) {
	rows := make([]domain.HistoryRow, 0, len(turns))
	for _, t := range turns {
		row := domain.HistoryRow{
			UserID:     userID,
			Role:       string(t.Role),
			Content:    t.Content,
			ToolCallID: t.ToolCallID,
			ToolName:   t.ToolName,
			CreatedAt:  t.CreatedAt,
		}
		if len(t.ToolCalls) > 0 {
			b, err := json.Marshal(t.ToolCalls)
			if err != nil {
				return nil, fmt.Errorf("encode tool calls: %w", err)
			}
			row.ToolCalls = b
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeRows converts persisted rows to turns, skipping rows that cannot be
// trusted: unknown roles, unreadable tool calls, and tool results that do
// not answer a call made earlier in the same log.
func decodeRows(userID uuid.UUID, rows []domain.HistoryRow) []domain.Turn {
	turns := make([]domain.Turn, 0, len(rows))
	issued := make(map[string]bool)

	for _, r := range rows {
		role := domain.Role(r.Role)
		if !role.Valid() {
			slog.Warn("skipping malformed history row", "user_id", userID, "seq", r.Seq, "reason", "unknown role", "role", r.Role)
			continue
		}

		turn := domain.Turn{
			Role:       role,
			Content:    r.Content,
			ToolCallID: r.ToolCallID,
			ToolName:   r.ToolName,
			CreatedAt:  r.CreatedAt,
		}

		if len(r.ToolCalls) > 0 && string(r.ToolCalls) != "null" {
			if role != domain.RoleAssistant {
				slog.Warn("skipping malformed history row", "user_id", userID, "seq", r.Seq, "reason", "tool calls on non-assistant turn")
				continue
			}
			if err := json.Unmarshal(r.ToolCalls, &turn.ToolCalls); err != nil {
				slog.Warn("skipping malformed history row", "user_id", userID, "seq", r.Seq, "reason", "bad tool calls", "error", err)
				continue
			}
		}

		if role == domain.RoleTool && !issued[r.ToolCallID] {
			slog.Warn("skipping malformed history row", "user_id", userID, "seq", r.Seq, "reason", "orphan tool result", "tool_call_id", r.ToolCallID)
			continue
		}

		for _, c := range turn.ToolCalls {
			issued[c.ID] = true
		}
		turns = append(turns, turn)
	}
	return turns
}
