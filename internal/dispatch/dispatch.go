// Package dispatch routes named requests to registered handlers and returns
// exactly one outcome per request.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/codex-k8s/command-bridge/internal/audit"
	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/failure"
	"github.com/codex-k8s/command-bridge/internal/registry"
	"github.com/codex-k8s/command-bridge/internal/security"
)

// DefaultWorkers bounds concurrently running synchronous handlers.
const DefaultWorkers = 8

// Guard is consulted after decoding and before invoking a handler. A non-nil
// error fails the request as a HandlerError without invoking the handler.
type Guard interface {
	Check(ctx context.Context, command string, args codec.Args) error
}

// Request is one invocation.
type Request struct {
	// ID correlates the outcome with the request. Assigned when empty.
	ID string
	// Command is the command name.
	Command string
	// Args is the raw argument payload.
	Args map[string]any
}

// Options configures a Dispatcher.
type Options struct {
	// Logger is used for structured logging.
	Logger *slog.Logger
	// Audit records dispatch events.
	Audit audit.Logger
	// Guard optionally gates handler invocation.
	Guard Guard
	// Workers bounds the synchronous handler pool.
	Workers int
	// Tracer overrides the global tracer.
	Tracer trace.Tracer
}

// Dispatcher executes requests against a registry.
type Dispatcher struct {
	registry *registry.Registry
	logger   *slog.Logger
	audit    audit.Logger
	guard    Guard
	tracer   trace.Tracer
	pool     *semaphore.Weighted
}

// New returns a dispatcher over reg.
func New(reg *registry.Registry, opts Options) *Dispatcher {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/codex-k8s/command-bridge/internal/dispatch")
	}
	return &Dispatcher{
		registry: reg,
		logger:   opts.Logger,
		audit:    opts.Audit,
		guard:    opts.Guard,
		tracer:   tracer,
		pool:     semaphore.NewWeighted(int64(workers)),
	}
}

// Registry returns the command table.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Dispatch runs req and waits for its outcome. If ctx ends first the caller
// receives a HandlerError; the handler itself keeps running.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Outcome {
	deferred := d.Submit(ctx, req)
	outcome, err := deferred.Wait(ctx)
	if err != nil {
		return Failure(failure.Handler(fmt.Sprintf("request %s abandoned: %v", deferred.ID, err), err))
	}
	return outcome
}

// Submit starts req and returns immediately with its deferred outcome. Lookup
// and decode failures resolve before Submit returns and never invoke a handler.
func (d *Dispatcher) Submit(ctx context.Context, req Request) *Deferred {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	// Handlers run to completion even when the caller stops waiting.
	ctx = audit.WithRequestID(context.WithoutCancel(ctx), id)

	ctx, span := d.tracer.Start(ctx, "bridge.dispatch", trace.WithAttributes(
		attribute.String("bridge.command", req.Command),
		attribute.String("bridge.request_id", id),
	))
	deferred := newDeferred(id, req.Command)
	deferred.onDone = func(o Outcome) {
		d.finish(ctx, span, deferred, o)
	}

	if d.logger != nil {
		d.logger.Debug("dispatch", "command", req.Command, "request_id", id, "args", security.RedactArguments(req.Args))
	}
	if d.audit != nil {
		d.audit.Record(ctx, audit.Event{Type: audit.EventDispatch, Command: req.Command, RequestID: id})
	}

	desc, ok := d.registry.Lookup(req.Command)
	if !ok {
		deferred.resolve(Failure(failure.NotFound(req.Command, d.registry.Suggest(req.Command))))
		return deferred
	}
	span.SetAttributes(attribute.String("bridge.mode", desc.Mode.String()))

	args, err := codec.Decode(desc.Params, req.Args)
	if err != nil {
		deferred.resolve(Failure(err))
		return deferred
	}
	if err := codec.Validate(desc.Schema, req.Args); err != nil {
		deferred.resolve(Failure(err))
		return deferred
	}
	if d.guard != nil {
		if err := d.guard.Check(ctx, desc.Name, args); err != nil {
			deferred.resolve(Failure(err))
			return deferred
		}
	}

	switch desc.Mode {
	case registry.Asynchronous:
		go func() {
			deferred.resolve(d.invoke(ctx, desc, args))
		}()
	default:
		go func() {
			// The context carries no cancellation, so Acquire only waits for a free worker.
			if err := d.pool.Acquire(ctx, 1); err != nil {
				deferred.resolve(Failure(err))
				return
			}
			defer d.pool.Release(1)
			deferred.resolve(d.invoke(ctx, desc, args))
		}()
	}
	return deferred
}

func (d *Dispatcher) invoke(ctx context.Context, desc registry.Descriptor, args codec.Args) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.Error("handler panic", "command", desc.Name, "panic", fmt.Sprint(r))
			}
			out = Failure(failure.Recovered(r))
		}
	}()

	value, err := desc.Handler(ctx, args)
	if err != nil {
		return Failure(err)
	}
	encoded, err := codec.Encode(value)
	if err != nil {
		return Failure(failure.Handler(fmt.Sprintf("encode result: %v", err), err))
	}
	return Success(encoded)
}

func (d *Dispatcher) finish(ctx context.Context, span trace.Span, deferred *Deferred, o Outcome) {
	defer span.End()
	if o.OK() {
		span.SetStatus(codes.Ok, "")
		if d.logger != nil {
			d.logger.Info("dispatch ok", "command", deferred.Command, "request_id", deferred.ID)
		}
		if d.audit != nil {
			d.audit.Record(ctx, audit.Event{Type: audit.EventDispatchOK, Command: deferred.Command, RequestID: deferred.ID})
		}
		return
	}

	span.SetAttributes(attribute.String("bridge.error_kind", string(o.Err.Kind)))
	span.SetStatus(codes.Error, o.Err.Message)
	if d.logger != nil {
		d.logger.Warn("dispatch failed", "command", deferred.Command, "request_id", deferred.ID, "kind", o.Err.Kind, "error", o.Err.Message)
	}
	if d.audit != nil {
		d.audit.Record(ctx, audit.Event{
			Type:      audit.EventDispatchError,
			Command:   deferred.Command,
			RequestID: deferred.ID,
			Kind:      string(o.Err.Kind),
			Message:   o.Err.Message,
		})
	}
}
