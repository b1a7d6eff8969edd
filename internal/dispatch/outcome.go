package dispatch

import (
	"context"
	"sync"

	"github.com/codex-k8s/command-bridge/internal/failure"
	"github.com/codex-k8s/command-bridge/internal/protocol"
)

// Outcome is the result of one request: either a success value or a failure.
type Outcome struct {
	// Value is the encoded success value.
	Value any
	// Err is set for failures only.
	Err *failure.Error
}

// Success wraps an encoded value.
func Success(value any) Outcome {
	return Outcome{Value: value}
}

// Failure wraps err after normalization.
func Failure(err error) Outcome {
	normalized := failure.Normalize(err)
	if normalized == nil {
		normalized = failure.Handler("handler failed", nil)
	}
	return Outcome{Err: normalized}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Response renders the outcome as the boundary response for request id.
func (o Outcome) Response(id string) protocol.Response {
	if o.OK() {
		return protocol.Response{ID: id, Status: protocol.StatusOK, Value: o.Value}
	}
	return protocol.Response{
		ID:      id,
		Status:  protocol.StatusError,
		Kind:    string(o.Err.Kind),
		Message: o.Err.Message,
		Param:   o.Err.Param,
	}
}

// Deferred is an outcome that resolves exactly once.
type Deferred struct {
	// ID is the request correlation ID.
	ID string
	// Command is the requested command name.
	Command string

	once    sync.Once
	done    chan struct{}
	outcome Outcome
	onDone  func(Outcome)
}

func newDeferred(id, command string) *Deferred {
	return &Deferred{ID: id, Command: command, done: make(chan struct{})}
}

// resolve stores o if the deferred is still pending. It reports whether o was stored.
func (d *Deferred) resolve(o Outcome) bool {
	stored := false
	d.once.Do(func() {
		d.outcome = o
		stored = true
		if d.onDone != nil {
			d.onDone(o)
		}
		close(d.done)
	})
	return stored
}

// Done is closed once the outcome is available.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Outcome returns the outcome and whether it is resolved.
func (d *Deferred) Outcome() (Outcome, bool) {
	select {
	case <-d.done:
		return d.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the outcome resolves or ctx is done. Giving up does not
// cancel the handler.
func (d *Deferred) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-d.done:
		return d.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
