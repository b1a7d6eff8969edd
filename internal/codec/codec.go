// Package codec converts boundary payloads into typed handler arguments and
// handler results back into wire values.
package codec

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/codex-k8s/command-bridge/internal/failure"
	"github.com/codex-k8s/command-bridge/internal/maputil"
)

// Shape is the expected wire shape of a parameter.
type Shape string

// Supported parameter shapes.
const (
	String  Shape = "string"
	Bool    Shape = "boolean"
	Number  Shape = "number"
	Strings Shape = "string[]"
	List    Shape = "array"
	Object  Shape = "object"
	Any     Shape = "any"
)

// Valid reports whether s is a known shape.
func (s Shape) Valid() bool {
	switch s {
	case String, Bool, Number, Strings, List, Object, Any:
		return true
	}
	return false
}

// Param declares one handler parameter.
type Param struct {
	// Name is the payload key.
	Name string
	// Shape is the expected value shape.
	Shape Shape
	// Optional allows the key to be absent; Default is used instead.
	Optional bool
	// Default is the decoded value for an absent optional parameter.
	Default any
	// Description documents the parameter for generated schemas.
	Description string
}

// Args is the decoded, ordered argument tuple.
type Args struct {
	names  []string
	values map[string]any
}

// Names returns parameter names in declaration order.
func (a Args) Names() []string {
	return append([]string(nil), a.names...)
}

// Len returns the number of decoded parameters.
func (a Args) Len() int {
	return len(a.names)
}

// Value returns the decoded value of name.
func (a Args) Value(name string) any {
	return a.values[name]
}

// String returns a string parameter, or "" if absent.
func (a Args) String(name string) string {
	v, _ := a.values[name].(string)
	return v
}

// Bool returns a boolean parameter.
func (a Args) Bool(name string) bool {
	v, _ := a.values[name].(bool)
	return v
}

// Number returns a numeric parameter.
func (a Args) Number(name string) float64 {
	v, _ := a.values[name].(float64)
	return v
}

// Strings returns a string sequence parameter.
func (a Args) Strings(name string) []string {
	v, _ := a.values[name].([]string)
	return v
}

// Map returns the arguments as a plain map, used for templating and logging.
func (a Args) Map() map[string]any {
	out := make(map[string]any, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Decode checks payload against params and returns the typed tuple. Every
// required parameter must be present and shape-compatible; keys not declared
// in params are ignored. The returned error is always a *failure.Error of
// kind ArgumentError.
func Decode(params []Param, payload map[string]any) (Args, error) {
	args := Args{
		names:  make([]string, 0, len(params)),
		values: make(map[string]any, len(params)),
	}
	for _, p := range params {
		raw, ok := payload[p.Name]
		if !ok {
			if !p.Optional {
				return Args{}, failure.Argument(p.Name, "missing required parameter %q", p.Name)
			}
			args.names = append(args.names, p.Name)
			args.values[p.Name] = p.Default
			continue
		}
		value, err := decodeValue(p.Shape, raw)
		if err != nil {
			return Args{}, failure.Argument(p.Name, "parameter %q: %v", p.Name, err)
		}
		args.names = append(args.names, p.Name)
		args.values[p.Name] = value
	}
	return args, nil
}

// Encode returns the wire payload for args. Decode(params, Encode(args))
// reproduces args for every supported shape.
func (a Args) Encode() (map[string]any, error) {
	out := make(map[string]any, len(a.values))
	for _, name := range a.names {
		if a.values[name] == nil {
			continue
		}
		v, err := Encode(a.values[name])
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func decodeValue(shape Shape, raw any) (any, error) {
	if raw == nil && shape != Any {
		return nil, fmt.Errorf("expected %s, got null", shape)
	}
	switch shape {
	case String:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case Bool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case Number:
		if f, ok := toFloat(raw); ok {
			return f, nil
		}
	case Strings:
		switch v := raw.(type) {
		case []string:
			return append([]string{}, v...), nil
		case []any:
			out := make([]string, 0, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("element %d: expected string, got %s", i, typeName(item))
				}
				out = append(out, s)
			}
			return out, nil
		}
	case List:
		switch v := raw.(type) {
		case []any:
			return v, nil
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				out[i] = s
			}
			return out, nil
		}
	case Object:
		if m, ok := raw.(map[string]any); ok {
			return m, nil
		}
	case Any:
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported shape %q", shape)
	}
	return nil, fmt.Errorf("expected %s, got %s", shape, typeName(raw))
}

// Encode converts a handler result into its wire representation: strings,
// booleans, numbers, and ordered sequences or mappings of those.
func Encode(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string, bool:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			enc, err := Encode(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = enc
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for _, k := range maputil.SortedKeys(v) {
			enc, err := Encode(v[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = enc
		}
		return out, nil
	}
	if f, ok := toFloat(value); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("number %v has no wire representation", f)
		}
		return f, nil
	}
	return nil, fmt.Errorf("unsupported result type %T", value)
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	}
	if _, ok := toFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
