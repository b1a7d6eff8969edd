package dsl

import "fmt"

func normalizeConfig(cfg *Config) error {
	for i := range cfg.Commands {
		schema, err := normalizeSchema(cfg.Commands[i].InputSchema)
		if err != nil {
			return fmt.Errorf("commands[%d].input_schema: %w", i, err)
		}
		cfg.Commands[i].InputSchema = schema
		for j := range cfg.Commands[i].Params {
			def, err := normalizeValue(cfg.Commands[i].Params[j].Default)
			if err != nil {
				return fmt.Errorf("commands[%d].params[%d].default: %w", i, j, err)
			}
			cfg.Commands[i].Params[j].Default = def
		}
	}
	return nil
}

func normalizeSchema(schema map[string]any) (map[string]any, error) {
	if schema == nil {
		return nil, nil
	}
	normalized, err := normalizeValue(schema)
	if err != nil {
		return nil, err
	}
	result, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema must be an object")
	}
	return result, nil
}

// normalizeValue converts YAML-decoded values to their JSON equivalents.
func normalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			normalized, err := normalizeValue(val)
			if err != nil {
				return nil, err
			}
			out[key] = normalized
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			keyStr, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key must be string, got %T", key)
			}
			normalized, err := normalizeValue(val)
			if err != nil {
				return nil, err
			}
			out[keyStr] = normalized
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			normalized, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = normalized
		}
		return out, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return value, nil
	}
}
