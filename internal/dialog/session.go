// Package dialog implements confirmation prompts that resolve exactly once.
package dialog

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Severity classifies a prompt for presentation.
type Severity string

// Severities.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity parses a severity name; empty means info.
func ParseSeverity(value string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(value))) {
	case "", SeverityInfo:
		return SeverityInfo, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityError:
		return SeverityError, nil
	default:
		return "", fmt.Errorf("unknown severity %q", value)
	}
}

// State is a session state.
type State string

// Session states. Confirmed and Declined are terminal.
const (
	Unopened  State = "unopened"
	Open      State = "open"
	Confirmed State = "confirmed"
	Declined  State = "declined"
)

// Terminal reports whether s is a resolution.
func (s State) Terminal() bool {
	return s == Confirmed || s == Declined
}

var (
	// ErrAlreadyOpen is returned when opening a session twice.
	ErrAlreadyOpen = errors.New("dialog session already opened")
	// ErrNotOpen is returned when resolving a session that was never opened.
	ErrNotOpen = errors.New("dialog session is not open")
	// ErrAlreadyResolved is returned by every resolution after the first.
	ErrAlreadyResolved = errors.New("dialog session already resolved")
	// ErrInvalidResolution is returned when resolving to a non-terminal state.
	ErrInvalidResolution = errors.New("invalid dialog resolution")
)

// Session is one confirmation prompt. It moves Unopened -> Open -> Confirmed
// or Declined and is never reused.
type Session struct {
	// ID identifies the session.
	ID string
	// Prompt is the question shown to the user.
	Prompt string
	// Title is an optional heading.
	Title string
	// Severity classifies the prompt.
	Severity Severity

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// NewSession creates an unopened session.
func NewSession(prompt, title string, severity Severity) *Session {
	if severity == "" {
		severity = SeverityInfo
	}
	return &Session{
		ID:       uuid.NewString(),
		Prompt:   prompt,
		Title:    title,
		Severity: severity,
		state:    Unopened,
		done:     make(chan struct{}),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open moves the session from Unopened to Open.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == Unopened:
		s.state = Open
		return nil
	case s.state.Terminal():
		return ErrAlreadyResolved
	default:
		return ErrAlreadyOpen
	}
}

// Resolve moves an open session to to, which must be Confirmed or Declined.
// Only the first resolution succeeds.
func (s *Session) Resolve(to State) error {
	if !to.Terminal() {
		return fmt.Errorf("%w: %s", ErrInvalidResolution, to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == Open:
		s.state = to
		close(s.done)
		return nil
	case s.state.Terminal():
		return ErrAlreadyResolved
	default:
		return ErrNotOpen
	}
}

// Done is closed once the session is resolved.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
