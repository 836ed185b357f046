package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/domain"
)

// normalizeArgs checks raw model arguments against the tool schema and
// returns a canonical JSON object with defaults filled in.
func normalizeArgs(def domain.ToolDefinition, raw json.RawMessage) (json.RawMessage, error) {
	params := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&params); err != nil {
			return nil, fmt.Errorf("%w: arguments are not a JSON object: %v", domain.ErrInvalidArguments, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("%w: trailing data after arguments object", domain.ErrInvalidArguments)
		}
	}

	var unknown []string
	for key := range params {
		if _, ok := def.Params[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unknown parameter(s): %s", domain.ErrInvalidArguments, strings.Join(unknown, ", "))
	}

	for _, name := range def.ParamNames() {
		spec := def.Params[name]
		value, present := params[name]
		if !present || value == nil {
			if spec.Required {
				return nil, fmt.Errorf("%w: missing required parameter: %s", domain.ErrInvalidArguments, name)
			}
			delete(params, name)
			if spec.Default != nil {
				params[name] = spec.Default
			}
			continue
		}
		if err := checkType(value, spec.Type); err != nil {
			return nil, fmt.Errorf("%w: parameter %s: %v", domain.ErrInvalidArguments, name, err)
		}
		if spec.Type == domain.ParamInteger {
			// 3.0 is accepted but must decode into an int field.
			if n, ok := value.(json.Number); ok {
				if f, err := n.Float64(); err == nil {
					params[name] = int64(f)
				}
			}
		}
		if spec.Format == domain.FormatUUID {
			s, _ := value.(string)
			if _, err := uuid.Parse(s); err != nil || len(s) != 36 {
				return nil, fmt.Errorf("%w: parameter %s is not a valid identifier: %q", domain.ErrInvalidArguments, name, s)
			}
		}
	}

	out, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArguments, err)
	}
	return out, nil
}

func checkType(value any, expected domain.ParamType) error {
	switch expected {
	case domain.ParamString:
		if _, ok := value.(string); ok {
			return nil
		}
	case domain.ParamNumber:
		if isNumber(value) {
			return nil
		}
	case domain.ParamInteger:
		if isInteger(value) {
			return nil
		}
	case domain.ParamBoolean:
		if _, ok := value.(bool); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %s", expected, jsonKind(value))
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return math.Trunc(v) == v
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return true
		}
		f, err := v.Float64()
		return err == nil && math.Trunc(f) == f && math.Abs(f) < math.MaxInt32
	}
	return false
}

func jsonKind(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", value)
}
