package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/command-bridge/internal/dialog"
)

func TestPendingStoreResolvesOnce(t *testing.T) {
	store := NewPendingStore()
	ch, err := store.Register("s1")
	require.NoError(t, err)
	_, err = store.Register("s1")
	require.ErrorIs(t, err, ErrAlreadyPending)

	require.True(t, store.Resolve("s1", dialog.Confirmed))
	require.False(t, store.Resolve("s1", dialog.Declined))
	assert.Zero(t, store.Len())

	state, err := Await(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, dialog.Confirmed, state)
}

func TestPendingStoreCancel(t *testing.T) {
	store := NewPendingStore()
	ch, err := store.Register("s1")
	require.NoError(t, err)
	store.Cancel("s1")
	_, err = Await(context.Background(), ch)
	require.ErrorIs(t, err, ErrClosed)

	ch, err = store.Register("s2")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = Await(ctx, ch)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandler(t *testing.T) {
	store := NewPendingStore()
	h := &Handler{Store: store}
	_, err := store.Register("s1")
	require.NoError(t, err)

	post := func(body string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dialog/callback", strings.NewReader(body)))
		return rec.Code
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed", body: "{", want: http.StatusBadRequest},
		{name: "missing session", body: `{"resolution":"confirmed"}`, want: http.StatusBadRequest},
		{name: "bad resolution", body: `{"session_id":"s1","resolution":"maybe"}`, want: http.StatusBadRequest},
		{name: "unknown session", body: `{"session_id":"nope","resolution":"confirmed"}`, want: http.StatusNotFound},
		{name: "resolves", body: `{"session_id":"s1","resolution":"Declined"}`, want: http.StatusOK},
		{name: "second resolution", body: `{"session_id":"s1","resolution":"confirmed"}`, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(tt.body))
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dialog/callback", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
