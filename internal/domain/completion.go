package domain

import "time"

const ToolChoiceAuto = "auto"

// CompletionRequest is what the engine sends to the LLM service. Messages
// exclude the system prompt, which travels separately.
type CompletionRequest struct {
	System     string
	Messages   []Turn
	Tools      []ToolDefinition
	ToolChoice string
}

// Completion is either a plain-text answer or a set of tool calls.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

func (c *Completion) WantsTools() bool {
	return len(c.ToolCalls) > 0
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// PacedMessageSegment is one unit of the final reply handed to the
// presentation layer. It is never persisted on its own.
type PacedMessageSegment struct {
	Index int           `json:"index"`
	Text  string        `json:"text"`
	Delay time.Duration `json:"-"`
}
