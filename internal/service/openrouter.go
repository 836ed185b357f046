package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/domain"
)

// OpenRouterService talks to an OpenAI-compatible chat completions
// endpoint with function calling.
type OpenRouterService struct {
	apiKey      string
	baseURL     string
	model       string
	temperature *float64
	httpClient  *http.Client
}

func NewOpenRouterService(apiKey, baseURL, model string, temperature float64, timeout time.Duration) *OpenRouterService {
	s := &OpenRouterService{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
	// Skip temperature for Gemini models
	if !strings.Contains(strings.ToLower(model), "gemini") {
		s.temperature = &temperature
	}
	return s
}

type ChatMessage struct {
	Role       string         `json:"role"`
	Content    interface{}    `json:"content"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type ChatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type ChatTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Tools       []ChatTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []ChatToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// APIError is a non-successful response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openrouter: status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case e.StatusCode >= 500:
		return domain.ErrUpstreamUnavailable
	}
	return nil
}

// IsTransient reports whether retrying the same request may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrUpstreamUnavailable) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Complete sends one round of the conversation and returns either the
// model's answer or the tool calls it wants executed.
func (s *OpenRouterService) Complete(ctx context.Context, creq domain.CompletionRequest) (*domain.Completion, error) {
	chatReq := ChatRequest{
		Model:       s.model,
		Messages:    toChatMessages(creq.System, creq.Messages),
		Temperature: s.temperature,
	}
	if len(creq.Tools) > 0 {
		chatReq.Tools = toChatTools(creq.Tools)
		chatReq.ToolChoice = creq.ToolChoice
	}

	chatResp, err := s.Chat(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion: %w", domain.ErrUpstreamUnavailable)
	}

	msg := chatResp.Choices[0].Message
	completion := &domain.Completion{
		Content: strings.TrimSpace(msg.Content),
		Usage: domain.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
		},
	}
	for _, c := range msg.ToolCalls {
		id := c.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		completion.ToolCalls = append(completion.ToolCalls, domain.ToolCall{
			ID:        id,
			Name:      c.Function.Name,
			Arguments: rawArguments(c.Function.Arguments),
		})
	}
	return completion, nil
}

func (s *OpenRouterService) Chat(ctx context.Context, chatReq ChatRequest) (*ChatResponse, error) {
	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("X-Title", "FitCoach")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	// OpenRouter reports some provider failures inside a 200 body.
	if chatResp.Error != nil {
		code := chatResp.Error.Code
		if code == 0 {
			code = http.StatusBadGateway
		}
		return nil, &APIError{StatusCode: code, Body: chatResp.Error.Message}
	}
	return &chatResp, nil
}

func toChatMessages(system string, turns []domain.Turn) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, ChatMessage{Role: string(domain.RoleSystem), Content: system})
	}
	for _, t := range turns {
		m := ChatMessage{Role: string(t.Role), Content: t.Content}
		switch t.Role {
		case domain.RoleAssistant:
			if t.HasToolCalls() {
				if t.Content == "" {
					m.Content = nil
				}
				for _, c := range t.ToolCalls {
					var call ChatToolCall
					call.ID = c.ID
					call.Type = "function"
					call.Function.Name = c.Name
					call.Function.Arguments = string(c.Arguments)
					if len(c.Arguments) == 0 {
						call.Function.Arguments = "{}"
					}
					m.ToolCalls = append(m.ToolCalls, call)
				}
			}
		case domain.RoleTool:
			m.ToolCallID = t.ToolCallID
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func toChatTools(defs []domain.ToolDefinition) []ChatTool {
	tools := make([]ChatTool, 0, len(defs))
	for _, d := range defs {
		var t ChatTool
		t.Type = "function"
		t.Function.Name = d.Name
		t.Function.Description = d.Description
		t.Function.Parameters = d.JSONSchema()
		tools = append(tools, t)
	}
	return tools
}

// rawArguments keeps the model's argument string as JSON. Text that is not
// valid JSON is kept as a JSON string so the dispatcher reports it.
func rawArguments(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
