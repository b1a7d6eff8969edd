package runtime

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/dispatch"
	"github.com/codex-k8s/command-bridge/internal/protocol"
	"github.com/codex-k8s/command-bridge/internal/registry"
)

// NewMCPServer exposes every registered command as an MCP tool. Tool results
// carry the protocol.Response as structured content; failures set IsError.
func NewMCPServer(name, version string, d *dispatch.Dispatcher) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	for _, desc := range d.Registry().Descriptors() {
		addTool(server, d, desc)
	}
	return server
}

func addTool(server *mcp.Server, d *dispatch.Dispatcher, desc registry.Descriptor) {
	tool := &mcp.Tool{
		Name:        desc.Name,
		Description: desc.Description,
		InputSchema: inputSchema(desc.Params),
	}
	name := desc.Name
	mcp.AddTool(server, tool, func(ctx context.Context, _ *mcp.CallToolRequest, input map[string]any) (*mcp.CallToolResult, protocol.Response, error) {
		out := d.Dispatch(ctx, dispatch.Request{Command: name, Args: input})
		resp := out.Response("")
		if out.OK() {
			return nil, resp, nil
		}
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: resp.Kind + ": " + resp.Message}},
		}, resp, nil
	})
}

func inputSchema(params []codec.Param) map[string]any {
	properties := make(map[string]any, len(params))
	required := make([]any, 0, len(params))
	for _, p := range params {
		prop := shapeSchema(p.Shape)
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Optional && p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func shapeSchema(shape codec.Shape) map[string]any {
	switch shape {
	case codec.String:
		return map[string]any{"type": "string"}
	case codec.Bool:
		return map[string]any{"type": "boolean"}
	case codec.Number:
		return map[string]any{"type": "number"}
	case codec.Strings:
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case codec.List:
		return map[string]any{"type": "array"}
	case codec.Object:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{}
	}
}
