// Package tools holds the catalogue of operations the trainer model may call
// and the dispatcher that validates and executes its requests.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/set-night/fitcoach/internal/domain"
)

// Args is implemented by the typed argument struct of every tool.
type Args interface {
	Validate() error
}

type execFunc func(ctx context.Context, h Handle, args json.RawMessage) (any, error)

// Binding pairs a tool definition with its typed handler.
type Binding struct {
	def  domain.ToolDefinition
	exec execFunc
}

// Bind builds a Binding whose handler receives arguments decoded into A.
// Unknown fields are rejected during decoding.
func Bind[A Args](def domain.ToolDefinition, fn func(ctx context.Context, h Handle, args A) (any, error)) Binding {
	return Binding{
		def: def,
		exec: func(ctx context.Context, h Handle, raw json.RawMessage) (any, error) {
			var args A
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&args); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArguments, err)
			}
			if err := args.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArguments, err)
			}
			return fn(ctx, h, args)
		},
	}
}

// Registry is the immutable tool catalogue. It is built once at startup.
type Registry struct {
	bindings map[string]Binding
	order    []string
}

// NewRegistry validates the bindings and freezes them. Any error here is a
// startup misconfiguration.
func NewRegistry(bindings ...Binding) (*Registry, error) {
	r := &Registry{bindings: make(map[string]Binding, len(bindings))}
	for _, b := range bindings {
		name := b.def.Name
		if name == "" {
			return nil, fmt.Errorf("tool name is empty")
		}
		if b.exec == nil {
			return nil, fmt.Errorf("tool %s has no handler", name)
		}
		if _, exists := r.bindings[name]; exists {
			return nil, fmt.Errorf("tool %s already registered", name)
		}
		for param, spec := range b.def.Params {
			if err := checkSpec(spec); err != nil {
				return nil, fmt.Errorf("tool %s param %s: %w", name, param, err)
			}
		}
		b.def.Params = maps.Clone(b.def.Params)
		r.bindings[name] = b
		r.order = append(r.order, name)
	}
	return r, nil
}

func checkSpec(spec domain.ParamSpec) error {
	switch spec.Type {
	case domain.ParamString, domain.ParamInteger, domain.ParamNumber, domain.ParamBoolean:
	default:
		return fmt.Errorf("unsupported type %q", spec.Type)
	}
	if spec.Format == domain.FormatUUID && spec.Type != domain.ParamString {
		return fmt.Errorf("uuid format requires string type")
	}
	if spec.Default != nil {
		if spec.Required {
			return fmt.Errorf("required parameter cannot have a default")
		}
		if err := checkType(spec.Default, spec.Type); err != nil {
			return fmt.Errorf("default: %w", err)
		}
	}
	return nil
}

// Describe returns the catalogue in registration order. Callers get copies.
func (r *Registry) Describe() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		def := r.bindings[name].def
		def.Params = maps.Clone(def.Params)
		defs = append(defs, def)
	}
	return defs
}

func (r *Registry) lookup(name string) (Binding, bool) {
	b, ok := r.bindings[name]
	return b, ok
}
