package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/codex-k8s/command-bridge/internal/audit"
	"github.com/codex-k8s/command-bridge/internal/constants"
)

// Policy decides what happens to a request while another prompt is open.
type Policy string

// Overlap policies.
const (
	// PolicyQueue presents overlapping requests one after another in arrival order.
	PolicyQueue Policy = "queue"
	// PolicyReject fails overlapping requests with ErrBusy.
	PolicyReject Policy = "reject"
)

// ParsePolicy parses a policy name; empty means queue.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyQueue:
		return PolicyQueue, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q", value)
	}
}

// CommandName is the name the confirmation command is registered under.
const CommandName = constants.CommandConfirm

// ErrBusy is returned under PolicyReject while a prompt is open.
var ErrBusy = errors.New("another confirmation dialog is open")

// Presenter shows an open session to the user and reports the answer.
// Presenters return Confirmed or Declined; a dismissed prompt is Declined.
type Presenter interface {
	Present(ctx context.Context, session *Session) (State, error)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, session *Session) (State, error)

// Present calls f.
func (f PresenterFunc) Present(ctx context.Context, session *Session) (State, error) {
	return f(ctx, session)
}

// Request describes a confirmation.
type Request struct {
	// Prompt is the question text.
	Prompt string
	// Title is an optional heading.
	Title string
	// Severity classifies the prompt.
	Severity Severity
}

// Options configures a Service.
type Options struct {
	// Presenter shows prompts.
	Presenter Presenter
	// Notifier delivers notifications.
	Notifier Notifier
	// Policy handles overlapping requests.
	Policy Policy
	// Timeout declines a prompt nobody answered in time. Zero waits forever.
	Timeout time.Duration
	// Logger is used for structured logging.
	Logger *slog.Logger
	// Audit records dialog events.
	Audit audit.Logger
}

// Service runs confirmation sessions, at most one open at a time, and
// delivers notifications.
type Service struct {
	presenter Presenter
	notifier  Notifier
	policy    Policy
	timeout   time.Duration
	logger    *slog.Logger
	audit     audit.Logger

	mu      sync.Mutex
	current *Session
	waiters []chan struct{}
	busy    bool
}

// NewService returns a Service.
func NewService(opts Options) *Service {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyQueue
	}
	return &Service{
		presenter: opts.Presenter,
		notifier:  opts.Notifier,
		policy:    policy,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		audit:     opts.Audit,
	}
}

// Current returns the open session, if any.
func (s *Service) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Confirm presents a new session and blocks until it resolves. A presenter
// failure declines the session and is returned alongside the resolution.
func (s *Service) Confirm(ctx context.Context, req Request) (State, error) {
	if s.presenter == nil {
		return "", errors.New("no dialog presenter configured")
	}
	session := NewSession(req.Prompt, req.Title, req.Severity)
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()

	if err := session.Open(); err != nil {
		return "", err
	}
	s.setCurrent(session)
	defer s.setCurrent(nil)
	s.record(ctx, session, audit.EventDialogOpen, string(session.Severity))
	if s.logger != nil {
		s.logger.Info("dialog open", "session_id", session.ID, "severity", session.Severity)
	}

	presentCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		presentCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	state, err := s.presenter.Present(presentCtx, session)
	switch {
	case err != nil && s.timeout > 0 && errors.Is(presentCtx.Err(), context.DeadlineExceeded):
		state, err = Declined, nil
	case err != nil:
		state = Declined
	case !state.Terminal():
		state, err = Declined, fmt.Errorf("%w: presenter returned %s", ErrInvalidResolution, state)
	}

	if resolveErr := session.Resolve(state); resolveErr != nil {
		return "", resolveErr
	}
	s.record(ctx, session, audit.EventDialogResolved, string(state))
	if s.logger != nil {
		s.logger.Info("dialog resolved", "session_id", session.ID, "resolution", state)
	}
	return state, err
}

func (s *Service) acquire(ctx context.Context) error {
	s.mu.Lock()
	if !s.busy {
		s.busy = true
		s.mu.Unlock()
		return nil
	}
	if s.policy == PolicyReject {
		s.mu.Unlock()
		return ErrBusy
	}
	turn := make(chan struct{})
	s.waiters = append(s.waiters, turn)
	s.mu.Unlock()

	select {
	case <-turn:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		idx := slices.Index(s.waiters, turn)
		if idx >= 0 {
			s.waiters = slices.Delete(s.waiters, idx, idx+1)
		}
		s.mu.Unlock()
		if idx < 0 {
			// The turn was handed over concurrently; pass it on.
			s.release()
		}
		return ctx.Err()
	}
}

func (s *Service) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiters) == 0 {
		s.busy = false
		return
	}
	next := s.waiters[0]
	s.waiters = s.waiters[1:]
	close(next)
}

func (s *Service) setCurrent(session *Session) {
	s.mu.Lock()
	s.current = session
	s.mu.Unlock()
}

func (s *Service) record(ctx context.Context, session *Session, eventType, message string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, audit.Event{
		Type:      eventType,
		Command:   CommandName,
		RequestID: audit.RequestID(ctx),
		SessionID: session.ID,
		Message:   message,
	})
}
