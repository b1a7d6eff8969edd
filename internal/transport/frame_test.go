package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/command-bridge/internal/failure"
)

func TestDecodeRequest(t *testing.T) {
	req, ferr := DecodeRequest([]byte(`{"id":"1","command":"greet","args":{"name":"Alice"}}`))
	require.Nil(t, ferr)
	assert.Equal(t, "1", req.ID)
	assert.Equal(t, "greet", req.Command)
	assert.Equal(t, map[string]any{"name": "Alice"}, req.Args)

	req, ferr = DecodeRequest([]byte(`{"command":"greet","args":null}`))
	require.Nil(t, ferr)
	assert.Empty(t, req.ID)
	assert.Nil(t, req.Args)
}

func TestDecodeRequestKeepsIDOnFieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		id    string
		param string
	}{
		{name: "args string", frame: `{"id":"7","command":"greet","args":"Alice"}`, id: "7", param: "args"},
		{name: "args array", frame: `{"id":"8","command":"greet","args":["Alice"]}`, id: "8", param: "args"},
		{name: "command number", frame: `{"id":"9","command":5}`, id: "9", param: "command"},
		{name: "command missing", frame: `{"id":"10"}`, id: "10", param: "command"},
		{name: "id number", frame: `{"id":11,"command":"greet"}`, id: "", param: "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ferr := DecodeRequest([]byte(tt.frame))
			require.NotNil(t, ferr)
			assert.Equal(t, failure.ArgumentError, ferr.Kind)
			assert.Equal(t, tt.param, ferr.Param)
			assert.Equal(t, tt.id, req.ID)
		})
	}
}

func TestDecodeRequestMalformed(t *testing.T) {
	for _, frame := range []string{`{not json`, `null`, `[1,2]`, `"greet"`} {
		_, ferr := DecodeRequest([]byte(frame))
		require.NotNil(t, ferr, frame)
		assert.Equal(t, failure.ArgumentError, ferr.Kind)
		assert.Contains(t, ferr.Message, "malformed request")
	}
}

func TestTooLong(t *testing.T) {
	ferr := TooLong(16)
	assert.Equal(t, failure.ArgumentError, ferr.Kind)
	assert.Equal(t, "frame exceeds 16 bytes", ferr.Message)
}
