package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/set-night/fitcoach/internal/domain"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *OpenRouterService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenRouterService("test-key", srv.URL+"/", "openai/gpt-4o-mini", 0.7, 5*time.Second)
}

func TestCompleteSendsToolsAndHistory(t *testing.T) {
	var got map[string]any
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"Olá!"}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`)
	})

	req := domain.CompletionRequest{
		System: "Você é um treinador.",
		Messages: []domain.Turn{
			{Role: domain.RoleUser, Content: "troque a rosca"},
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "call_1", Name: "get_weekly_plan", Arguments: json.RawMessage(`{}`)}}},
			{Role: domain.RoleTool, ToolCallID: "call_1", Content: `{"success":true}`},
		},
		Tools: []domain.ToolDefinition{{
			Name:        "get_weekly_plan",
			Description: "plan",
			Params:      map[string]domain.ParamSpec{},
		}},
		ToolChoice: domain.ToolChoiceAuto,
	}

	c, err := svc.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if c.Content != "Olá!" || c.WantsTools() {
		t.Errorf("Complete() = %+v", c)
	}
	if c.Usage.PromptTokens != 12 {
		t.Errorf("usage = %+v", c.Usage)
	}

	if got["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v", got["tool_choice"])
	}
	msgs := got["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4 (system + 3)", len(msgs))
	}
	if role := msgs[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("first role = %v", role)
	}
	assistant := msgs[2].(map[string]any)
	if assistant["content"] != nil {
		t.Errorf("assistant content = %v, want null", assistant["content"])
	}
	call := assistant["tool_calls"].([]any)[0].(map[string]any)
	if call["type"] != "function" || call["function"].(map[string]any)["arguments"] != "{}" {
		t.Errorf("tool call = %v", call)
	}
	if tool := msgs[3].(map[string]any); tool["tool_call_id"] != "call_1" {
		t.Errorf("tool message = %v", tool)
	}
	tools := got["tools"].([]any)
	params := tools[0].(map[string]any)["function"].(map[string]any)["parameters"].(map[string]any)
	if params["type"] != "object" {
		t.Errorf("parameters = %v", params)
	}
}

func TestCompleteParsesToolCalls(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"finish_reason":"tool_calls","message":{"content":null,"tool_calls":[
			{"id":"call_a","type":"function","function":{"name":"find_substitutes","arguments":"{\"exercise_id\":\"e1\",\"pain_location\":\"cotovelo\"}"}},
			{"type":"function","function":{"name":"get_user_profile","arguments":""}},
			{"id":"call_c","type":"function","function":{"name":"get_weekly_plan","arguments":"not json"}}
		]}}]}`)
	})

	c, err := svc.Complete(context.Background(), domain.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(c.ToolCalls) != 3 {
		t.Fatalf("tool calls = %d, want 3", len(c.ToolCalls))
	}
	if c.ToolCalls[0].ID != "call_a" || !strings.Contains(string(c.ToolCalls[0].Arguments), "cotovelo") {
		t.Errorf("call 0 = %+v", c.ToolCalls[0])
	}
	if !strings.HasPrefix(c.ToolCalls[1].ID, "call_") || string(c.ToolCalls[1].Arguments) != "{}" {
		t.Errorf("call 1 = %+v, want synthesized id and empty object", c.ToolCalls[1])
	}
	if string(c.ToolCalls[2].Arguments) != `"not json"` {
		t.Errorf("call 2 arguments = %s", c.ToolCalls[2].Arguments)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantIs    error
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, domain.ErrRateLimited, true},
		{"unavailable", http.StatusServiceUnavailable, `oops`, domain.ErrUpstreamUnavailable, true},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad"}}`, nil, false},
		{"error in 200 body", http.StatusOK, `{"error":{"message":"provider down","code":502}}`, domain.ErrUpstreamUnavailable, true},
		{"no choices", http.StatusOK, `{"choices":[]}`, domain.ErrUpstreamUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := svc.Complete(context.Background(), domain.CompletionRequest{})
			if err == nil {
				t.Fatal("Complete() expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error = %v, want %v", err, tt.wantIs)
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient(%v) = %v, want %v", err, IsTransient(err), tt.transient)
			}
		})
	}
}

func TestGeminiSkipsTemperature(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	svc := NewOpenRouterService("k", srv.URL, "google/gemini-2.0-flash", 0.7, time.Second)
	if _, err := svc.Complete(context.Background(), domain.CompletionRequest{}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if strings.Contains(body, "temperature") {
		t.Errorf("request carries temperature: %s", body)
	}
}
