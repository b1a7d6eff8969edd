package failure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIsIdentityForNormalizedErrors(t *testing.T) {
	original := Argument("path", "missing required parameter %q", "path")

	got := Normalize(original)
	require.Same(t, original, got)
	require.Same(t, got, Normalize(got))

	wrapped := fmt.Errorf("decode: %w", original)
	require.Same(t, original, Normalize(wrapped))
}

func TestNormalizeMapsRawErrorsToHandlerError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, statErr := os.Stat(missing)
	require.Error(t, statErr)

	tests := []struct {
		name    string
		err     error
		message string
	}{
		{name: "not exist", err: statErr, message: "Path does not exist: " + missing},
		{name: "permission", err: &fs.PathError{Op: "open", Path: "/root/secret", Err: fs.ErrPermission}, message: "Permission denied: /root/secret"},
		{name: "deadline", err: context.DeadlineExceeded, message: "handler timed out"},
		{name: "canceled", err: fmt.Errorf("wait: %w", context.Canceled), message: "handler cancelled"},
		{name: "plain", err: errors.New("boom"), message: "boom"},
		{name: "empty", err: errors.New(""), message: "handler failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, HandlerError, got.Kind)
			assert.Equal(t, tt.message, got.Message)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestNormalizeNil(t *testing.T) {
	assert.Nil(t, Normalize(nil))
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", NotFound("gret", "greet"))
	assert.ErrorIs(t, err, ErrCommandNotFound)
	assert.NotErrorIs(t, err, ErrArgument)
	assert.Equal(t, `command "gret" not found (did you mean "greet"?)`, Normalize(err).Message)
}

func TestKindPolicies(t *testing.T) {
	assert.True(t, HandlerError.Retryable())
	assert.False(t, CommandNotFound.Retryable())
	assert.False(t, ArgumentError.Retryable())
	assert.True(t, DuplicateCommandError.Fatal())
	assert.False(t, HandlerError.Fatal())
}

func TestRecovered(t *testing.T) {
	assert.Equal(t, "handler panic: oops", Recovered("oops").Message)
	cause := errors.New("nil map")
	got := Recovered(cause)
	assert.Equal(t, HandlerError, got.Kind)
	assert.ErrorIs(t, got, cause)
}
