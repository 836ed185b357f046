package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is a tool-invocation request emitted by the model inside one
// assistant turn. Arguments hold the raw JSON object the model produced.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Turn is one entry of a conversation. Tool turns carry the JSON-encoded
// ToolExecutionResult in Content and reference the call they answer.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (t Turn) HasToolCalls() bool {
	return len(t.ToolCalls) > 0
}

// CloneTurns deep-copies turns so callers never share tool call slices.
func CloneTurns(src []Turn) []Turn {
	if src == nil {
		return nil
	}
	dst := make([]Turn, len(src))
	for i, t := range src {
		dst[i] = t
		if len(t.ToolCalls) > 0 {
			calls := make([]ToolCall, len(t.ToolCalls))
			for j, c := range t.ToolCalls {
				calls[j] = c
				calls[j].Arguments = append(json.RawMessage(nil), c.Arguments...)
			}
			dst[i].ToolCalls = calls
		}
	}
	return dst
}

// HistoryRow is the persisted shape of a Turn as the gateway stores it.
// ToolCalls stays raw so that a malformed row can be skipped on load.
type HistoryRow struct {
	UserID     uuid.UUID
	Seq        int64
	Role       string
	Content    string
	ToolCalls  []byte
	ToolCallID string
	ToolName   string
	CreatedAt  time.Time
}
