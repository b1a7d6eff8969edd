package dsl

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/constants"
	"github.com/codex-k8s/command-bridge/internal/dialog"
	"github.com/codex-k8s/command-bridge/internal/registry"
	"github.com/codex-k8s/command-bridge/internal/timeutil"
)

// Validate applies defaults and verifies required fields. Duplicate command
// names are left to the registry, which rejects them when it is built.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}

	if len(cfg.Builtins) == 0 {
		cfg.Builtins = slices.Clone(constants.Builtins)
	}
	for i, name := range cfg.Builtins {
		name = strings.TrimSpace(name)
		if !slices.Contains(constants.Builtins, name) {
			return fmt.Errorf("builtins[%d]: unknown builtin %q", i, name)
		}
		cfg.Builtins[i] = name
	}

	for i := range cfg.Commands {
		if err := validateCommand(&cfg.Commands[i]); err != nil {
			return fmt.Errorf("commands[%d]: %w", i, err)
		}
	}

	for name, limit := range cfg.Limits {
		if limit.MaxTotal < 0 || limit.RatePerMinute < 0 {
			return fmt.Errorf("limits.%s: values must be >= 0", name)
		}
	}

	return validateDialog(&cfg.Dialog, cfg.Server.Transport)
}

func validateServer(s *ServerConfig) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("server.name is required")
	}
	if strings.TrimSpace(s.Version) == "" {
		return fmt.Errorf("server.version is required")
	}
	s.Transport = strings.ToLower(strings.TrimSpace(s.Transport))
	switch s.Transport {
	case "":
		s.Transport = constants.TransportStdio
	case constants.TransportStdio, constants.TransportHTTP, constants.TransportMCP:
	default:
		return fmt.Errorf("server.transport must be stdio, http, or mcp")
	}
	if s.Workers < 0 {
		return fmt.Errorf("server.workers must be >= 0")
	}
	if err := validateDuration("server.shutdown_timeout", s.ShutdownTimeout); err != nil {
		return err
	}
	for i, hook := range s.StartupHooks {
		if strings.TrimSpace(hook.Command) == "" {
			return fmt.Errorf("server.startup_hooks[%d].command is required", i)
		}
		if err := validateDuration(fmt.Sprintf("server.startup_hooks[%d].timeout", i), hook.Timeout); err != nil {
			return err
		}
	}

	h := &s.HTTP
	if strings.TrimSpace(h.Listen) == "" {
		h.Listen = "127.0.0.1:8080"
	}
	if h.InvokePath == "" {
		h.InvokePath = "/invoke"
	}
	if h.MCPPath == "" {
		h.MCPPath = "/mcp"
	}
	if h.CallbackPath == "" {
		h.CallbackPath = "/dialog/callback"
	}
	for name, path := range map[string]string{"invoke_path": h.InvokePath, "mcp_path": h.MCPPath, "callback_path": h.CallbackPath} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("server.http.%s must start with /", name)
		}
	}
	for name, value := range map[string]string{"read_timeout": h.ReadTimeout, "write_timeout": h.WriteTimeout, "idle_timeout": h.IdleTimeout} {
		if err := validateDuration("server.http."+name, value); err != nil {
			return err
		}
	}
	return nil
}

func validateCommand(c *CommandConfig) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("command is required")
	}
	if _, err := registry.ParseMode(c.Mode); err != nil {
		return err
	}
	if err := validateDuration("timeout", c.Timeout); err != nil {
		return err
	}
	seen := map[string]struct{}{}
	for j := range c.Params {
		p := &c.Params[j]
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("params[%d].name is required", j)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("params[%d]: duplicate parameter %q", j, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Type == "" {
			p.Type = string(codec.String)
		}
		if !codec.Shape(p.Type).Valid() {
			return fmt.Errorf("params[%d]: unknown type %q", j, p.Type)
		}
		if p.Default != nil && !p.Optional {
			return fmt.Errorf("params[%d]: default requires optional", j)
		}
	}
	return nil
}

func validateDialog(d *DialogConfig, transport string) error {
	d.Presenter = strings.ToLower(strings.TrimSpace(d.Presenter))
	if d.Presenter == "" {
		d.Presenter = constants.PresenterTerminal
	}
	policy, err := dialog.ParsePolicy(d.Overlap)
	if err != nil {
		return fmt.Errorf("dialog.overlap: %w", err)
	}
	d.Overlap = string(policy)
	if err := validateDuration("dialog.timeout", d.Timeout); err != nil {
		return err
	}

	switch d.Presenter {
	case constants.PresenterTerminal, constants.PresenterNone:
	case constants.PresenterShell:
		if strings.TrimSpace(d.Shell.Command) == "" {
			return fmt.Errorf("dialog.shell.command is required")
		}
	case constants.PresenterHTTP:
		if strings.TrimSpace(d.HTTP.URL) == "" {
			return fmt.Errorf("dialog.http.url is required")
		}
		if err := validateDuration("dialog.http.timeout", d.HTTP.Timeout); err != nil {
			return err
		}
		if d.HTTP.Async {
			if transport != constants.TransportHTTP {
				return fmt.Errorf("async dialog.http requires http transport")
			}
			if _, err := parseCallbackURL(d.HTTP.CallbackURL); err != nil {
				return fmt.Errorf("dialog.http.callback_url is invalid: %w", err)
			}
		}
	default:
		return fmt.Errorf("dialog.presenter must be terminal, http, shell, or none")
	}
	return validateNotify(d)
}

// DefaultNotifyCommand is the shell notifier used when none is configured.
const DefaultNotifyCommand = "notify-send"

func validateNotify(d *DialogConfig) error {
	n := &d.Notify
	n.Via = strings.ToLower(strings.TrimSpace(n.Via))
	if n.Via == "" {
		n.Via = d.Presenter
	}
	switch n.Via {
	case constants.PresenterTerminal, constants.PresenterNone:
	case constants.PresenterShell:
		if strings.TrimSpace(n.Shell.Command) == "" {
			n.Shell.Command = DefaultNotifyCommand
			if len(n.Shell.Args) == 0 {
				n.Shell.Args = []string{`{{ arg "title" }}`, `{{ arg "body" }}`}
			}
		}
	case constants.PresenterHTTP:
		if strings.TrimSpace(n.HTTP.URL) == "" {
			n.HTTP = NotifyHTTPConfig{
				URL:     d.HTTP.URL,
				Method:  d.HTTP.Method,
				Headers: d.HTTP.Headers,
				Timeout: d.HTTP.Timeout,
			}
		}
		if strings.TrimSpace(n.HTTP.URL) == "" {
			return fmt.Errorf("dialog.notify.http.url is required")
		}
		if err := validateDuration("dialog.notify.http.timeout", n.HTTP.Timeout); err != nil {
			return err
		}
	default:
		return fmt.Errorf("dialog.notify.via must be terminal, http, shell, or none")
	}
	return nil
}

func validateDuration(field, value string) error {
	d, err := timeutil.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", field, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative", field)
	}
	return nil
}

func parseCallbackURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("callback url must be absolute")
	}
	if !strings.HasPrefix(parsed.Path, "/") {
		return nil, fmt.Errorf("callback url must include a path")
	}
	return parsed, nil
}
