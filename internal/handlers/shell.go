package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/codex-k8s/command-bridge/internal/audit"
	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/executil"
	"github.com/codex-k8s/command-bridge/internal/failure"
	"github.com/codex-k8s/command-bridge/internal/registry"
	"github.com/codex-k8s/command-bridge/internal/templates"
)

// ShellCommand declares a command backed by an external process.
type ShellCommand struct {
	// Name is the command name.
	Name string
	// Description explains the command.
	Description string
	// Params is the declared arity.
	Params []codec.Param
	// Mode selects the execution mode.
	Mode registry.Mode
	// Schema optionally validates the raw payload.
	Schema *jsonschema.Schema
	// Exec is the templated process to run.
	Exec executil.Spec
	// Timeout bounds one run. Zero means no limit.
	Timeout time.Duration
}

// Shell returns a descriptor that runs c and yields its trimmed output.
func Shell(c ShellCommand, r templates.Renderer) registry.Descriptor {
	return registry.Descriptor{
		Name:        c.Name,
		Description: c.Description,
		Params:      c.Params,
		Mode:        c.Mode,
		Schema:      c.Schema,
		Handler: func(ctx context.Context, args codec.Args) (any, error) {
			if c.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.Timeout)
				defer cancel()
			}
			res, err := executil.Run(ctx, c.Exec, executil.TemplateData{
				Args:      args.Map(),
				Command:   c.Name,
				RequestID: audit.RequestID(ctx),
			})
			output := strings.TrimSpace(res.Output)
			if err != nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, failure.Normalize(ctx.Err())
				}
				message := templates.Text(r, "shell.failed", map[string]any{
					"Command":  c.Name,
					"ExitCode": res.ExitCode,
					"Output":   output,
				}, err.Error())
				return nil, failure.Handler(message, err)
			}
			return output, nil
		},
	}
}
