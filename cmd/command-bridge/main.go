package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codex-k8s/command-bridge/configs"
	"github.com/codex-k8s/command-bridge/internal/app"
	"github.com/codex-k8s/command-bridge/internal/audit"
	"github.com/codex-k8s/command-bridge/internal/config"
	"github.com/codex-k8s/command-bridge/internal/constants"
	"github.com/codex-k8s/command-bridge/internal/dsl"
	"github.com/codex-k8s/command-bridge/internal/log"
	"github.com/codex-k8s/command-bridge/internal/render"
	"github.com/codex-k8s/command-bridge/internal/runtime"
	"github.com/codex-k8s/command-bridge/internal/startup"
	"github.com/codex-k8s/command-bridge/internal/templates"
	"github.com/codex-k8s/command-bridge/internal/transport/stdio"
)

func main() {
	embeddedConfig := flag.String("embedded-config", "", "Use embedded config from configs/ (filename)")
	transport := flag.String("transport", "", "Override server.transport (stdio, http or mcp)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	out, closeLog, err := log.Output(cfg.LogOutput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()
	logger := log.New(cfg.LogLevel, out)

	if err := run(cfg, logger, *embeddedConfig, *transport); err != nil {
		logger.Error("bridge stopped", "error", err)
		_ = closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, embedded, transport string) error {
	dslCfg, err := loadConfig(cfg.ConfigPath, embedded)
	if err != nil {
		return err
	}
	if transport != "" {
		dslCfg.Server.Transport = transport
		if err := dsl.Validate(dslCfg); err != nil {
			return err
		}
	}

	bundle, err := templates.Load(cfg.Lang)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	sinks := audit.Multi{audit.New(logger)}
	if cfg.AuditDB != "" {
		db, err := audit.OpenSQLite(cfg.AuditDB, logger)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		sinks = append(sinks, db)
	}

	bridge, err := runtime.Builder{
		Logger:    logger,
		Audit:     sinks,
		Templates: bundle,
		TTY:       cfg.DialogTTY,
	}.Build(dslCfg)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	if err := startup.Run(ctx, dslCfg.Server.StartupHooks, logger); err != nil {
		return err
	}

	switch dslCfg.Server.Transport {
	case constants.TransportMCP:
		server := runtime.NewMCPServer(dslCfg.Server.Name, dslCfg.Server.Version, bridge.Dispatcher)
		return server.Run(ctx, &mcp.StdioTransport{})
	case constants.TransportHTTP:
		application, err := app.New(ctx, app.Options{
			Server:          dslCfg.Server,
			Dispatcher:      bridge.Dispatcher,
			MCP:             runtime.NewMCPServer(dslCfg.Server.Name, dslCfg.Server.Version, bridge.Dispatcher),
			Pending:         bridge.Pending,
			Logger:          logger,
			ShutdownTimeout: cfg.ShutdownTimeout,
		})
		if err != nil {
			return err
		}
		return application.Run(ctx)
	default:
		srv := &stdio.Server{Dispatcher: bridge.Dispatcher, Logger: logger}
		err := srv.Serve(ctx, os.Stdin, os.Stdout)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
}

func loadConfig(path, embedded string) (*dsl.Config, error) {
	var (
		rendered []byte
		err      error
	)
	if path != "" && embedded == "" {
		rendered, err = render.RenderFile(path)
	} else {
		var raw []byte
		raw, err = configs.Load(embedded)
		if err != nil {
			return nil, err
		}
		name := embedded
		if name == "" {
			name = configs.Default
		}
		rendered, err = render.RenderBytes(name, raw)
	}
	if err != nil {
		return nil, err
	}
	return dsl.Load(rendered)
}
