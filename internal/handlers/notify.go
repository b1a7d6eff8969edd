package handlers

import (
	"context"
	"errors"

	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/constants"
	"github.com/codex-k8s/command-bridge/internal/dialog"
	"github.com/codex-k8s/command-bridge/internal/failure"
	"github.com/codex-k8s/command-bridge/internal/registry"
)

const notifySchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "body": {"type": "string"},
    "severity": {"enum": ["info", "warning", "error"]}
  }
}`

// Notify returns the notify descriptor. It yields "delivered" once the
// configured notifier has shown the message.
func Notify(svc *dialog.Service) (registry.Descriptor, error) {
	schema, err := codec.CompileSchema(constants.CommandNotify, notifySchema)
	if err != nil {
		return registry.Descriptor{}, err
	}
	return registry.Descriptor{
		Name:        constants.CommandNotify,
		Description: "Show the user a one-way notification.",
		Params: []codec.Param{
			{Name: "title", Shape: codec.String, Description: "Notification title."},
			{Name: "body", Shape: codec.String, Optional: true, Default: "", Description: "Notification text."},
			{Name: "severity", Shape: codec.String, Optional: true, Default: string(dialog.SeverityInfo), Description: "info, warning or error."},
		},
		Mode:    registry.Asynchronous,
		Schema:  schema,
		Handler: notifyHandler(svc),
	}, nil
}

func notifyHandler(svc *dialog.Service) registry.Handler {
	return func(ctx context.Context, args codec.Args) (any, error) {
		severity, err := dialog.ParseSeverity(args.String("severity"))
		if err != nil {
			return nil, failure.Handler(err.Error(), err)
		}
		n := dialog.NewNotification(args.String("title"), args.String("body"), severity)
		if err := svc.Notify(ctx, n); err != nil {
			if errors.Is(err, dialog.ErrNoNotifier) {
				return nil, failure.Handler(err.Error(), err)
			}
			return nil, failure.Handler("notification failed: "+err.Error(), err)
		}
		return "delivered", nil
	}
}
