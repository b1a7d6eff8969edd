// Package config reads process settings from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config stores environment-driven settings for the bridge.
type Config struct {
	// ConfigPath is the YAML configuration file. Empty uses the embedded default.
	ConfigPath string `env:"BRIDGE_CONFIG"`
	// LogLevel sets the logger level.
	LogLevel string `env:"BRIDGE_LOG_LEVEL" envDefault:"info"`
	// LogOutput is stderr, stdout, or a file path. Stdout carries frames on the stdio transport.
	LogOutput string `env:"BRIDGE_LOG_OUTPUT" envDefault:"stderr"`
	// Lang selects message language for templates.
	Lang string `env:"BRIDGE_LANG" envDefault:"en"`
	// ShutdownTimeout controls graceful shutdown duration.
	ShutdownTimeout time.Duration `env:"BRIDGE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// AuditDB is a SQLite file for the audit trail. Empty disables it.
	AuditDB string `env:"BRIDGE_AUDIT_DB"`
	// DialogTTY overrides the terminal used by the terminal presenter.
	DialogTTY string `env:"BRIDGE_DIALOG_TTY"`
}

// Load parses environment variables into Config.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}
