// Package limits caps how often individual commands may be invoked.
package limits

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/templates"
)

// Policy limits one command.
type Policy struct {
	// MaxTotal limits total calls for the process lifetime.
	MaxTotal int
	// RatePerMinute limits calls per minute.
	RatePerMinute int
}

type limiterState struct {
	count   int
	limiter *rate.Limiter
}

// Store keeps per-command counters and limiters.
type Store struct {
	mu       sync.Mutex
	policies map[string]Policy
	state    map[string]*limiterState
	renderer templates.Renderer
}

// New returns a Store enforcing policies keyed by command name. Commands
// without a policy are unlimited.
func New(policies map[string]Policy, renderer templates.Renderer) *Store {
	out := make(map[string]Policy, len(policies))
	for name, p := range policies {
		if p.MaxTotal > 0 || p.RatePerMinute > 0 {
			out[name] = p
		}
	}
	return &Store{
		policies: out,
		state:    make(map[string]*limiterState),
		renderer: renderer,
	}
}

// Empty reports whether no command is limited.
func (s *Store) Empty() bool {
	return s == nil || len(s.policies) == 0
}

// Check counts one call of command and rejects it once a limit is reached.
func (s *Store) Check(_ context.Context, command string, _ codec.Args) error {
	if s.Empty() {
		return nil
	}
	policy, ok := s.policies[command]
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state[command]
	if st == nil {
		st = &limiterState{}
		if policy.RatePerMinute > 0 {
			st.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(policy.RatePerMinute)), policy.RatePerMinute)
		}
		s.state[command] = st
	}

	data := map[string]any{"Command": command}
	if policy.MaxTotal > 0 && st.count >= policy.MaxTotal {
		return errors.New(templates.Text(s.renderer, "limits.max_total", data, "Maximum number of calls exceeded"))
	}
	if st.limiter != nil && !st.limiter.Allow() {
		return errors.New(templates.Text(s.renderer, "limits.rate_limit", data, "Rate limit exceeded"))
	}
	st.count++
	return nil
}
