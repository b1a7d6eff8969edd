// Package runtime assembles the command registry, dispatcher and dialog
// service from the YAML configuration.
package runtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/codex-k8s/command-bridge/internal/audit"
	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/constants"
	"github.com/codex-k8s/command-bridge/internal/dialog"
	"github.com/codex-k8s/command-bridge/internal/dialog/httpprompt"
	"github.com/codex-k8s/command-bridge/internal/dialog/shell"
	"github.com/codex-k8s/command-bridge/internal/dialog/terminal"
	"github.com/codex-k8s/command-bridge/internal/dialog/webhook"
	"github.com/codex-k8s/command-bridge/internal/dispatch"
	"github.com/codex-k8s/command-bridge/internal/dsl"
	"github.com/codex-k8s/command-bridge/internal/executil"
	"github.com/codex-k8s/command-bridge/internal/handlers"
	"github.com/codex-k8s/command-bridge/internal/registry"
	"github.com/codex-k8s/command-bridge/internal/runtime/limits"
	"github.com/codex-k8s/command-bridge/internal/templates"
	"github.com/codex-k8s/command-bridge/internal/timeutil"
)

// Builder constructs a Bridge from the DSL config.
type Builder struct {
	// Logger is used for structured logging.
	Logger *slog.Logger
	// Audit records dispatch and dialog events.
	Audit audit.Logger
	// Templates provides localized messages.
	Templates templates.Renderer
	// Lister overrides the filesystem lister used by list_files.
	Lister handlers.Lister
	// Presenter overrides the configured dialog presenter.
	Presenter dialog.Presenter
	// Notifier overrides the configured notifier.
	Notifier dialog.Notifier
	// TTY overrides dialog.tty for the terminal presenter and notifier.
	TTY string
}

// Bridge is the assembled command surface.
type Bridge struct {
	// Registry is the frozen command table.
	Registry *registry.Registry
	// Dispatcher executes requests.
	Dispatcher *dispatch.Dispatcher
	// Dialog runs confirmation sessions.
	Dialog *dialog.Service
	// Pending receives asynchronous dialog callbacks; nil unless configured.
	Pending *webhook.PendingStore
}

// Build registers every enabled builtin and declared command. A duplicate
// name fails with a DuplicateCommandError and no Bridge is returned.
func (b Builder) Build(cfg *dsl.Config) (*Bridge, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	bridge := &Bridge{}
	presenter, pending, err := b.buildPresenter(cfg.Dialog)
	if err != nil {
		return nil, err
	}
	bridge.Pending = pending
	notifier, err := b.buildNotifier(cfg.Dialog)
	if err != nil {
		return nil, err
	}
	bridge.Dialog = dialog.NewService(dialog.Options{
		Presenter: presenter,
		Notifier:  notifier,
		Policy:    dialog.Policy(cfg.Dialog.Overlap),
		Timeout:   timeutil.ParseDurationOrDefault(cfg.Dialog.Timeout, 0),
		Logger:    b.Logger,
		Audit:     b.Audit,
	})

	reg := registry.NewBuilder()
	for _, name := range cfg.Builtins {
		desc, err := b.builtin(name, bridge.Dialog)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(desc); err != nil {
			return nil, err
		}
	}
	for _, cmd := range cfg.Commands {
		desc, err := b.shellCommand(cmd)
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", cmd.Name, err)
		}
		if err := reg.Register(desc); err != nil {
			return nil, err
		}
	}
	bridge.Registry = reg.Build()

	policies := make(map[string]limits.Policy, len(cfg.Limits))
	for name, l := range cfg.Limits {
		if _, ok := bridge.Registry.Lookup(name); !ok && b.Logger != nil {
			b.Logger.Warn("limits configured for unknown command", "command", name)
		}
		policies[name] = limits.Policy{MaxTotal: l.MaxTotal, RatePerMinute: l.RatePerMinute}
	}
	opts := dispatch.Options{
		Logger:  b.Logger,
		Audit:   b.Audit,
		Workers: cfg.Server.Workers,
	}
	if store := limits.New(policies, b.Templates); !store.Empty() {
		opts.Guard = store
	}
	bridge.Dispatcher = dispatch.New(bridge.Registry, opts)

	if b.Logger != nil {
		b.Logger.Info("registry built", "commands", bridge.Registry.Names())
	}
	return bridge, nil
}

func (b Builder) builtin(name string, svc *dialog.Service) (registry.Descriptor, error) {
	switch name {
	case constants.CommandGreet:
		return handlers.Greet(b.Templates), nil
	case constants.CommandListFiles:
		return handlers.ListFiles(b.Lister, b.Templates), nil
	case constants.CommandConfirm:
		return handlers.Confirm(svc, b.Templates)
	case constants.CommandNotify:
		return handlers.Notify(svc)
	default:
		return registry.Descriptor{}, fmt.Errorf("unknown builtin %q", name)
	}
}

func (b Builder) shellCommand(cfg dsl.CommandConfig) (registry.Descriptor, error) {
	mode, err := registry.ParseMode(cfg.Mode)
	if err != nil {
		return registry.Descriptor{}, err
	}
	params := make([]codec.Param, 0, len(cfg.Params))
	for _, p := range cfg.Params {
		params = append(params, codec.Param{
			Name:        p.Name,
			Shape:       codec.Shape(p.Type),
			Optional:    p.Optional,
			Default:     p.Default,
			Description: p.Description,
		})
	}
	cmd := handlers.ShellCommand{
		Name:        cfg.Name,
		Description: cfg.Description,
		Params:      params,
		Mode:        mode,
		Exec: executil.Spec{
			Command: cfg.Command,
			Args:    cfg.Args,
			Env:     cfg.Env,
			Dir:     cfg.Dir,
		},
		Timeout: timeutil.ParseDurationOrDefault(cfg.Timeout, 0),
	}
	if len(cfg.InputSchema) > 0 {
		raw, err := json.Marshal(cfg.InputSchema)
		if err != nil {
			return registry.Descriptor{}, fmt.Errorf("encode input_schema: %w", err)
		}
		schema, err := codec.CompileSchema(cfg.Name, string(raw))
		if err != nil {
			return registry.Descriptor{}, err
		}
		cmd.Schema = schema
	}
	return handlers.Shell(cmd, b.Templates), nil
}

func (b Builder) buildPresenter(cfg dsl.DialogConfig) (dialog.Presenter, *webhook.PendingStore, error) {
	if b.Presenter != nil {
		return b.Presenter, nil, nil
	}
	switch cfg.Presenter {
	case constants.PresenterTerminal, "":
		tty := cfg.TTY
		if b.TTY != "" {
			tty = b.TTY
		}
		return terminal.Presenter{TTY: tty, Renderer: b.Templates}, nil, nil
	case constants.PresenterShell:
		return shell.Presenter{
			Command:          cfg.Shell.Command,
			Args:             cfg.Shell.Args,
			Env:              cfg.Shell.Env,
			DeclineExitCodes: cfg.Shell.DeclineExitCodes,
		}, nil, nil
	case constants.PresenterHTTP:
		p := httpprompt.Presenter{
			URL:         cfg.HTTP.URL,
			Method:      cfg.HTTP.Method,
			Headers:     cfg.HTTP.Headers,
			Timeout:     timeutil.ParseDurationOrDefault(cfg.HTTP.Timeout, 10*time.Second),
			Async:       cfg.HTTP.Async,
			CallbackURL: cfg.HTTP.CallbackURL,
		}
		if !p.Async {
			return p, nil, nil
		}
		p.Pending = webhook.NewPendingStore()
		return p, p.Pending, nil
	case constants.PresenterNone:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown dialog presenter %q", cfg.Presenter)
	}
}

func (b Builder) buildNotifier(cfg dsl.DialogConfig) (dialog.Notifier, error) {
	if b.Notifier != nil {
		return b.Notifier, nil
	}
	switch cfg.Notify.Via {
	case constants.PresenterTerminal, "":
		tty := cfg.TTY
		if b.TTY != "" {
			tty = b.TTY
		}
		return terminal.Notifier{TTY: tty, Renderer: b.Templates}, nil
	case constants.PresenterShell:
		return shell.Notifier{
			Command: cfg.Notify.Shell.Command,
			Args:    cfg.Notify.Shell.Args,
			Env:     cfg.Notify.Shell.Env,
		}, nil
	case constants.PresenterHTTP:
		return httpprompt.Notifier{
			URL:     cfg.Notify.HTTP.URL,
			Method:  cfg.Notify.HTTP.Method,
			Headers: cfg.Notify.HTTP.Headers,
			Timeout: timeutil.ParseDurationOrDefault(cfg.Notify.HTTP.Timeout, 10*time.Second),
		}, nil
	case constants.PresenterNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notify.Via)
	}
}
