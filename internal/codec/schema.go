package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/codex-k8s/command-bridge/internal/failure"
)

// CompileSchema compiles a JSON Schema (draft 2020-12) used to validate the raw
// payload of command name after arity decoding.
func CompileSchema(name, schema string) (*jsonschema.Schema, error) {
	if strings.TrimSpace(schema) == "" {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://command-bridge.local/commands/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("schema load failed: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed: %w", err)
	}
	return compiled, nil
}

// Validate checks payload against schema. A nil schema accepts everything.
// Violations are ArgumentError naming the first offending top-level key.
func Validate(schema *jsonschema.Schema, payload map[string]any) error {
	if schema == nil {
		return nil
	}
	if payload == nil {
		payload = map[string]any{}
	}
	err := schema.Validate(payload)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return failure.Argument("", "schema validation failed: %v", err)
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	param := strings.TrimPrefix(ve.InstanceLocation, "/")
	if idx := strings.Index(param, "/"); idx >= 0 {
		param = param[:idx]
	}
	if param == "" {
		return failure.Argument("", "schema validation failed: %s", ve.Message)
	}
	return failure.Argument(param, "parameter %q: %s", param, ve.Message)
}
