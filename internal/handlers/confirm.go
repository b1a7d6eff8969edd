package handlers

import (
	"context"
	"errors"

	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/dialog"
	"github.com/codex-k8s/command-bridge/internal/failure"
	"github.com/codex-k8s/command-bridge/internal/registry"
	"github.com/codex-k8s/command-bridge/internal/templates"
)

const confirmSchema = `{
  "type": "object",
  "properties": {
    "prompt": {"type": "string", "minLength": 1},
    "title": {"type": "string"},
    "severity": {"enum": ["info", "warning", "error"]}
  }
}`

// Confirm returns the confirm descriptor. It suspends until the prompt is
// answered and yields "confirmed" or "declined".
func Confirm(svc *dialog.Service, r templates.Renderer) (registry.Descriptor, error) {
	schema, err := codec.CompileSchema(dialog.CommandName, confirmSchema)
	if err != nil {
		return registry.Descriptor{}, err
	}
	return registry.Descriptor{
		Name:        dialog.CommandName,
		Description: "Ask the user a yes/no question.",
		Params: []codec.Param{
			{Name: "prompt", Shape: codec.String, Description: "Question to ask."},
			{Name: "title", Shape: codec.String, Optional: true, Default: "", Description: "Dialog title."},
			{Name: "severity", Shape: codec.String, Optional: true, Default: string(dialog.SeverityInfo), Description: "info, warning or error."},
		},
		Mode:    registry.Asynchronous,
		Schema:  schema,
		Handler: confirmHandler(svc, r),
	}, nil
}

func confirmHandler(svc *dialog.Service, r templates.Renderer) registry.Handler {
	return func(ctx context.Context, args codec.Args) (any, error) {
		severity, err := dialog.ParseSeverity(args.String("severity"))
		if err != nil {
			return nil, failure.Handler(err.Error(), err)
		}
		state, err := svc.Confirm(ctx, dialog.Request{
			Prompt:   args.String("prompt"),
			Title:    args.String("title"),
			Severity: severity,
		})
		if errors.Is(err, dialog.ErrBusy) {
			return nil, failure.Handler(templates.Text(r, "dialog.busy", nil, err.Error()), err)
		}
		if err != nil {
			return nil, err
		}
		return string(state), nil
	}
}
