package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/set-night/fitcoach/internal/domain"
)

func (g *Gateway) LoadHistory(ctx context.Context, userID uuid.UUID) ([]domain.HistoryRow, error) {
	rows, err := g.db.Query(ctx, `
		SELECT user_id, seq, role, content, tool_calls, tool_call_id, tool_name, created_at
		FROM conversation_turns
		WHERE user_id = $1
		ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryRow
	for rows.Next() {
		var r domain.HistoryRow
		if err := rows.Scan(&r.UserID, &r.Seq, &r.Role, &r.Content, &r.ToolCalls,
			&r.ToolCallID, &r.ToolName, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// AppendHistory writes rows after the user's current last sequence number
// in a single transaction, so a save is either fully visible or not at all.
func (g *Gateway) AppendHistory(ctx context.Context, userID uuid.UUID, rows []domain.HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, g.db, func(tx pgx.Tx) error {
		// Row lock on the user serializes concurrent appenders across processes.
		var one int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}
		var last int64
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(seq), 0) FROM conversation_turns WHERE user_id = $1`, userID).Scan(&last); err != nil {
			return fmt.Errorf("read last seq: %w", err)
		}
		return insertHistory(ctx, tx, userID, last, rows)
	})
}

// ReplaceHistory swaps the user's whole log for rows; an empty slice clears it.
func (g *Gateway) ReplaceHistory(ctx context.Context, userID uuid.UUID, rows []domain.HistoryRow) error {
	return pgx.BeginFunc(ctx, g.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM conversation_turns WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		return insertHistory(ctx, tx, userID, 0, rows)
	})
}

const foreignKeyViolation = "23503"

func insertHistory(ctx context.Context, tx pgx.Tx, userID uuid.UUID, after int64, rows []domain.HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, r := range rows {
		var toolCalls any
		if len(r.ToolCalls) > 0 {
			toolCalls = r.ToolCalls
		}
		batch.Queue(`
			INSERT INTO conversation_turns (user_id, seq, role, content, tool_calls, tool_call_id, tool_name, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			userID, after+int64(i)+1, r.Role, r.Content, toolCalls, r.ToolCallID, r.ToolName, r.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}
