package dsl

// Config is the top-level YAML configuration.
type Config struct {
	// Server describes the bridge process settings.
	Server ServerConfig `yaml:"server"`
	// Builtins lists enabled builtin commands. Empty enables all.
	Builtins []string `yaml:"builtins"`
	// Commands declares additional shell-backed commands.
	Commands []CommandConfig `yaml:"commands"`
	// Limits caps calls per command name.
	Limits map[string]LimitConfig `yaml:"limits"`
	// Dialog configures confirmation prompts.
	Dialog DialogConfig `yaml:"dialog"`
}

// ServerConfig defines bridge process settings.
type ServerConfig struct {
	// Name is reported to MCP clients.
	Name string `yaml:"name"`
	// Version is reported to MCP clients.
	Version string `yaml:"version"`
	// Transport selects the boundary ("stdio", "http" or "mcp").
	Transport string `yaml:"transport"`
	// Workers bounds concurrently running synchronous handlers.
	Workers int `yaml:"workers"`
	// ShutdownTimeout overrides graceful shutdown duration.
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	// StartupHooks defines one-time commands executed on start.
	StartupHooks []HookConfig `yaml:"startup_hooks"`
	// HTTP configures the HTTP boundary.
	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the HTTP boundary.
type HTTPConfig struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// InvokePath receives protocol requests.
	InvokePath string `yaml:"invoke_path"`
	// MCPPath serves the MCP streamable transport. Empty disables it.
	MCPPath string `yaml:"mcp_path"`
	// CallbackPath receives dialog resolutions from external UIs.
	CallbackPath string `yaml:"callback_path"`
	// ReadTimeout limits request read time.
	ReadTimeout string `yaml:"read_timeout"`
	// WriteTimeout limits response write time.
	WriteTimeout string `yaml:"write_timeout"`
	// IdleTimeout controls idle connections.
	IdleTimeout string `yaml:"idle_timeout"`
	// Stateless disables MCP session tracking.
	Stateless bool `yaml:"stateless"`
}

// CommandConfig declares a shell-backed command.
type CommandConfig struct {
	// Name is the command name.
	Name string `yaml:"name"`
	// Description explains the command.
	Description string `yaml:"description"`
	// Mode is "sync" (default) or "async".
	Mode string `yaml:"mode"`
	// Params is the ordered parameter list.
	Params []ParamConfig `yaml:"params"`
	// InputSchema optionally validates the raw payload.
	InputSchema map[string]any `yaml:"input_schema"`
	// Command is the executable or shell script.
	Command string `yaml:"command"`
	// Args contains command arguments.
	Args []string `yaml:"args"`
	// Env adds environment variables.
	Env map[string]string `yaml:"env"`
	// Dir is the working directory.
	Dir string `yaml:"dir"`
	// Timeout bounds one execution.
	Timeout string `yaml:"timeout"`
}

// ParamConfig declares one command parameter.
type ParamConfig struct {
	// Name is the payload key.
	Name string `yaml:"name"`
	// Type is string, boolean, number, string[], array, object or any.
	Type string `yaml:"type"`
	// Optional allows the parameter to be omitted.
	Optional bool `yaml:"optional"`
	// Default is used for an omitted optional parameter.
	Default any `yaml:"default"`
	// Description explains the parameter.
	Description string `yaml:"description"`
}

// HookConfig defines a startup hook command.
type HookConfig struct {
	// Command is the startup command to run.
	Command string `yaml:"command"`
	// Args are optional arguments.
	Args []string `yaml:"args"`
	// Env adds environment variables for the hook.
	Env map[string]string `yaml:"env"`
	// Timeout controls hook execution duration.
	Timeout string `yaml:"timeout"`
}

// LimitConfig caps calls of one command.
type LimitConfig struct {
	// MaxTotal limits total calls.
	MaxTotal int `yaml:"max_total"`
	// RatePerMinute limits calls per minute.
	RatePerMinute int `yaml:"rate_per_minute"`
}

// DialogConfig configures confirmation prompts.
type DialogConfig struct {
	// Presenter is terminal, http, shell or none.
	Presenter string `yaml:"presenter"`
	// Overlap is queue or reject.
	Overlap string `yaml:"overlap"`
	// Timeout declines unanswered prompts. Empty waits forever.
	Timeout string `yaml:"timeout"`
	// TTY overrides the terminal device.
	TTY string `yaml:"tty"`
	// HTTP configures the http presenter.
	HTTP DialogHTTPConfig `yaml:"http"`
	// Shell configures the shell presenter.
	Shell DialogShellConfig `yaml:"shell"`
	// Notify configures one-way notifications.
	Notify NotifyConfig `yaml:"notify"`
}

// DialogHTTPConfig configures the http presenter.
type DialogHTTPConfig struct {
	// URL is the UI endpoint.
	URL string `yaml:"url"`
	// Method overrides the HTTP method.
	Method string `yaml:"method"`
	// Headers adds HTTP headers.
	Headers map[string]string `yaml:"headers"`
	// Timeout bounds the HTTP round trip.
	Timeout string `yaml:"timeout"`
	// Async makes the UI answer through the callback.
	Async bool `yaml:"async"`
	// CallbackURL is the absolute URL of the bridge callback endpoint.
	CallbackURL string `yaml:"callback_url"`
}

// DialogShellConfig configures the shell presenter.
type DialogShellConfig struct {
	// Command is the dialog tool or script.
	Command string `yaml:"command"`
	// Args are command arguments.
	Args []string `yaml:"args"`
	// Env adds environment variables.
	Env map[string]string `yaml:"env"`
	// DeclineExitCodes map to a declined prompt. Defaults to [1].
	DeclineExitCodes []int `yaml:"decline_exit_codes"`
}

// NotifyConfig configures how the notify command reaches the user.
type NotifyConfig struct {
	// Via is terminal, http, shell or none. Defaults to the presenter.
	Via string `yaml:"via"`
	// HTTP configures delivery by POST. An empty URL reuses dialog.http.
	HTTP NotifyHTTPConfig `yaml:"http"`
	// Shell configures delivery through a tool. Defaults to notify-send.
	Shell NotifyShellConfig `yaml:"shell"`
}

// NotifyHTTPConfig configures http notifications.
type NotifyHTTPConfig struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Timeout string            `yaml:"timeout"`
}

// NotifyShellConfig configures shell notifications.
type NotifyShellConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}
