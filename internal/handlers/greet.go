// Package handlers provides the builtin bridge commands.
package handlers

import (
	"context"
	"fmt"

	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/constants"
	"github.com/codex-k8s/command-bridge/internal/registry"
	"github.com/codex-k8s/command-bridge/internal/templates"
)

// Greet returns the greet descriptor.
func Greet(r templates.Renderer) registry.Descriptor {
	return registry.Descriptor{
		Name:        constants.CommandGreet,
		Description: "Return a greeting for name.",
		Params: []codec.Param{
			{Name: "name", Shape: codec.String, Description: "Who to greet."},
		},
		Mode: registry.Synchronous,
		Handler: func(_ context.Context, args codec.Args) (any, error) {
			name := args.String("name")
			return templates.Text(r, "greet.message", map[string]any{"Name": name}, fmt.Sprintf("Hello, %s!", name)), nil
		},
	}
}
