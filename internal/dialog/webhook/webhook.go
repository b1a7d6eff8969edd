// Package webhook receives dialog resolutions posted back by external UIs.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/codex-k8s/command-bridge/internal/dialog"
	"github.com/codex-k8s/command-bridge/internal/maputil"
	"github.com/codex-k8s/command-bridge/internal/protocol"
)

// ErrAlreadyPending is returned when a session is registered twice.
var ErrAlreadyPending = errors.New("dialog session already pending")

// ErrClosed is returned when a pending session was cancelled without an answer.
var ErrClosed = errors.New("dialog callback channel closed")

// PendingStore keeps sessions waiting for a callback.
type PendingStore struct {
	mu      sync.Mutex
	pending map[string]chan dialog.State
}

// NewPendingStore creates an empty store.
func NewPendingStore() *PendingStore {
	return &PendingStore{pending: make(map[string]chan dialog.State)}
}

// Register allocates a slot for sessionID.
func (s *PendingStore) Register(sessionID string) (<-chan dialog.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pending[sessionID]; exists {
		return nil, ErrAlreadyPending
	}
	ch := make(chan dialog.State, 1)
	s.pending[sessionID] = ch
	return ch, nil
}

// Resolve delivers a resolution for sessionID. It reports false when nothing
// is waiting, including every call after the first.
func (s *PendingStore) Resolve(sessionID string, state dialog.State) bool {
	ch, ok := s.pop(sessionID)
	if !ok {
		return false
	}
	ch <- state
	close(ch)
	return true
}

// Cancel removes sessionID without a resolution.
func (s *PendingStore) Cancel(sessionID string) {
	if ch, ok := s.pop(sessionID); ok {
		close(ch)
	}
}

// Len returns the number of waiting sessions.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *PendingStore) pop(sessionID string) (chan dialog.State, bool) {
	return maputil.Pop(&s.mu, s.pending, sessionID)
}

// Await blocks until ch delivers a resolution or ctx ends.
func Await(ctx context.Context, ch <-chan dialog.State) (dialog.State, error) {
	select {
	case state, ok := <-ch:
		if !ok {
			return "", ErrClosed
		}
		return state, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ParseResolution maps a wire resolution to a terminal state.
func ParseResolution(value string) (dialog.State, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case protocol.ResolutionConfirmed:
		return dialog.Confirmed, true
	case protocol.ResolutionDeclined:
		return dialog.Declined, true
	default:
		return "", false
	}
}

// Handler accepts DialogResolution callbacks.
type Handler struct {
	Store  *PendingStore
	Logger *slog.Logger
}

// ServeHTTP resolves the pending session named in the request body.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.Store == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var payload protocol.DialogResolution
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sessionID := strings.TrimSpace(payload.SessionID)
	state, ok := ParseResolution(payload.Resolution)
	if sessionID == "" || !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !h.Store.Resolve(sessionID, state) {
		if h.Logger != nil {
			h.Logger.Warn("dialog callback without pending session", "session_id", sessionID)
		}
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}
