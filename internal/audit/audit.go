package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event types.
const (
	EventDispatch       = "dispatch"
	EventDispatchOK     = "dispatch_ok"
	EventDispatchError  = "dispatch_error"
	EventDialogOpen     = "dialog_open"
	EventDialogResolved = "dialog_resolved"
	EventNotify         = "notify"
)

// Event represents an audit entry for a dispatched command or dialog session.
type Event struct {
	// Type describes the event kind.
	Type string
	// Command is the command name.
	Command string
	// RequestID links events of one request.
	RequestID string
	// SessionID identifies a dialog session.
	SessionID string
	// Kind is the failure kind for error events.
	Kind string
	// Message provides additional context.
	Message string
	// Time is set by the sink when zero.
	Time time.Time
}

// Logger records audit events.
type Logger interface {
	// Record stores an audit event.
	Record(ctx context.Context, event Event)
}

// StdLogger writes audit events to slog.
type StdLogger struct {
	logger *slog.Logger
}

// New returns a StdLogger.
func New(logger *slog.Logger) *StdLogger {
	return &StdLogger{logger: logger}
}

// Record logs an audit event.
func (l *StdLogger) Record(_ context.Context, event Event) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Info("audit",
		"type", event.Type,
		"command", event.Command,
		"request_id", event.RequestID,
		"session_id", event.SessionID,
		"kind", event.Kind,
		"message", event.Message,
	)
}

// Multi fans events out to several sinks.
type Multi []Logger

// Record forwards event to every non-nil sink.
func (m Multi) Record(ctx context.Context, event Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Record(ctx, event)
		}
	}
}

type requestIDKey struct{}

// WithRequestID returns ctx carrying the request ID for events recorded deeper in the call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
