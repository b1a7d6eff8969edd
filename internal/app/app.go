// Package app runs the HTTP transport of the bridge.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codex-k8s/command-bridge/internal/dialog/webhook"
	"github.com/codex-k8s/command-bridge/internal/dispatch"
	"github.com/codex-k8s/command-bridge/internal/dsl"
	"github.com/codex-k8s/command-bridge/internal/failure"
	"github.com/codex-k8s/command-bridge/internal/http/health"
	"github.com/codex-k8s/command-bridge/internal/protocol"
	"github.com/codex-k8s/command-bridge/internal/timeutil"
	"github.com/codex-k8s/command-bridge/internal/transport"
)

// Options wires the HTTP routes.
type Options struct {
	// Server holds listen address, paths and timeouts.
	Server dsl.ServerConfig
	// Dispatcher executes invoke requests.
	Dispatcher *dispatch.Dispatcher
	// MCP is served on Server.HTTP.MCPPath when set.
	MCP *mcp.Server
	// Pending receives dialog callbacks when set.
	Pending *webhook.PendingStore
	// Logger is used for structured logging.
	Logger *slog.Logger
	// ShutdownTimeout overrides server.shutdown_timeout.
	ShutdownTimeout time.Duration
}

// App controls the HTTP server lifecycle.
type App struct {
	baseCtx         context.Context
	server          *http.Server
	health          *health.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New initializes the HTTP server with invoke, callback, MCP and health routes.
func New(baseCtx context.Context, opts Options) (*App, error) {
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is nil")
	}
	if baseCtx == nil {
		return nil, fmt.Errorf("base context is nil")
	}
	httpCfg := opts.Server.HTTP

	healthHandler := health.New()
	mux := http.NewServeMux()
	healthHandler.Register(mux)
	mux.Handle(httpCfg.InvokePath, &invokeHandler{dispatcher: opts.Dispatcher, logger: opts.Logger})
	if opts.Pending != nil && strings.TrimSpace(httpCfg.CallbackPath) != "" {
		mux.Handle(httpCfg.CallbackPath, &webhook.Handler{Store: opts.Pending, Logger: opts.Logger})
	}
	if opts.MCP != nil && strings.TrimSpace(httpCfg.MCPPath) != "" {
		server := opts.MCP
		mux.Handle(httpCfg.MCPPath, mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return server
		}, &mcp.StreamableHTTPOptions{Stateless: httpCfg.Stateless}))
	}

	srv := &http.Server{
		Addr:         httpCfg.Listen,
		Handler:      mux,
		ReadTimeout:  timeutil.ParseDurationOrDefault(httpCfg.ReadTimeout, 15*time.Second),
		WriteTimeout: timeutil.ParseDurationOrDefault(httpCfg.WriteTimeout, 0),
		IdleTimeout:  timeutil.ParseDurationOrDefault(httpCfg.IdleTimeout, 60*time.Second),
	}

	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = timeutil.ParseDurationOrDefault(opts.Server.ShutdownTimeout, 10*time.Second)
	}

	return &App{
		baseCtx:         baseCtx,
		server:          srv,
		health:          healthHandler,
		logger:          opts.Logger,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.health.SetReady()
		if a.logger != nil {
			a.logger.Info("http server started", "addr", a.server.Addr)
		}
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		if a.logger != nil {
			a.logger.Info("shutdown requested")
		}
		return a.shutdown()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		if a.logger != nil {
			a.logger.Error("http server error", "error", err)
		}
		return err
	}
}

func (a *App) shutdown() error {
	a.health.SetNotReady()
	ctx, cancel := context.WithTimeout(a.baseCtx, a.shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// invokeHandler accepts one protocol.Request per POST and answers with its
// protocol.Response. Dispatched failures are reported in the body with 200.
type invokeHandler struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

func (h *invokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, transport.MaxFrameBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.write(w, http.StatusRequestEntityTooLarge, dispatch.Failure(transport.TooLong(transport.MaxFrameBytes)).Response(""))
			return
		}
		h.write(w, http.StatusBadRequest, dispatch.Failure(failure.Argument("", "malformed request: %v", err)).Response(""))
		return
	}
	req, ferr := transport.DecodeRequest(data)
	if ferr != nil {
		h.write(w, http.StatusBadRequest, dispatch.Failure(ferr).Response(req.ID))
		return
	}

	deferred := h.dispatcher.Submit(r.Context(), dispatch.Request{ID: req.ID, Command: req.Command, Args: req.Args})
	out, err := deferred.Wait(r.Context())
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("client left before response", "request_id", deferred.ID, "error", err)
		}
		return
	}
	h.write(w, http.StatusOK, out.Response(deferred.ID))
}

func (h *invokeHandler) write(w http.ResponseWriter, status int, resp protocol.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil && h.logger != nil {
		h.logger.Error("write response", "id", resp.ID, "error", err)
	}
}
