package domain

import (
	"encoding/json"
	"sort"
)

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// ParamSpec describes one tool parameter. Format "uuid" marks identifier
// parameters that are validated before any backend call.
type ParamSpec struct {
	Type        ParamType
	Description string
	Required    bool
	Default     any
	Format      string
}

const FormatUUID = "uuid"

type ToolDefinition struct {
	Name        string
	Description string
	Params      map[string]ParamSpec
	// Mutating tools change persisted plan state.
	Mutating bool
}

// ParamNames returns parameter names in a stable order.
func (d ToolDefinition) ParamNames() []string {
	names := make([]string, 0, len(d.Params))
	for name := range d.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JSONSchema renders the parameter schema in the JSON Schema subset that
// OpenAI-compatible providers accept for function parameters.
func (d ToolDefinition) JSONSchema() map[string]any {
	props := make(map[string]any, len(d.Params))
	required := []string{}
	for _, name := range d.ParamNames() {
		p := d.Params[name]
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Format != "" {
			prop["format"] = p.Format
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// ToolExecutionResult is always produced for a ToolCall, even on failure.
type ToolExecutionResult struct {
	CallID   string `json:"-"`
	Tool     string `json:"-"`
	Success  bool   `json:"success"`
	Data     any    `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
	Mutating bool   `json:"-"`
}

// Content is the payload fed back to the model as the tool message body.
func (r ToolExecutionResult) Content() string {
	b, err := json.Marshal(r)
	if err != nil {
		fallback, _ := json.Marshal(ToolExecutionResult{Error: "result could not be encoded: " + err.Error()})
		return string(fallback)
	}
	return string(b)
}
