package limits

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/templates"
)

func TestMaxTotal(t *testing.T) {
	bundle, err := templates.Load("en")
	require.NoError(t, err)
	store := New(map[string]Policy{"greet": {MaxTotal: 2}}, bundle)
	ctx := context.Background()

	require.NoError(t, store.Check(ctx, "greet", codec.Args{}))
	require.NoError(t, store.Check(ctx, "greet", codec.Args{}))
	err = store.Check(ctx, "greet", codec.Args{})
	require.Error(t, err)
	assert.Equal(t, "Maximum number of calls to greet exceeded", err.Error())

	require.NoError(t, store.Check(ctx, "list_files", codec.Args{}))
}

func TestRatePerMinute(t *testing.T) {
	store := New(map[string]Policy{"list_files": {RatePerMinute: 3}}, nil)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, store.Check(ctx, "list_files", codec.Args{}))
	}
	err := store.Check(ctx, "list_files", codec.Args{})
	require.EqualError(t, err, "Rate limit exceeded")
}

func TestEmpty(t *testing.T) {
	assert.True(t, New(map[string]Policy{"greet": {}}, nil).Empty())
	var store *Store
	assert.True(t, store.Empty())
	assert.NoError(t, store.Check(context.Background(), "greet", codec.Args{}))
}
