// Package transport holds what the stdio and HTTP boundaries share: frame
// limits and request decoding.
package transport

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/codex-k8s/command-bridge/internal/failure"
	"github.com/codex-k8s/command-bridge/internal/protocol"
)

// MaxFrameBytes bounds one request frame.
const MaxFrameBytes = 4 << 20

// TooLong is the failure answered for a frame over limit bytes.
func TooLong(limit int) *failure.Error {
	return failure.Argument("", "frame exceeds %d bytes", limit)
}

// DecodeRequest parses one request frame. The envelope is read first so a
// bad command or args field still reports the request ID; the returned
// Request carries whatever ID was recovered even when err is non-nil.
func DecodeRequest(data []byte) (protocol.Request, *failure.Error) {
	var req protocol.Request
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return req, failure.Argument("", "malformed request: %v", err)
	}
	if fields == nil {
		return req, failure.Argument("", "malformed request: frame is not an object")
	}

	if raw, ok := fields["id"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &req.ID); err != nil {
			return req, failure.Argument("id", "id must be a string")
		}
	}
	if raw, ok := fields["command"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &req.Command); err != nil {
			return req, failure.Argument("command", "command must be a string")
		}
	}
	if strings.TrimSpace(req.Command) == "" {
		return req, failure.Argument("command", "missing command")
	}
	if raw, ok := fields["args"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &req.Args); err != nil {
			return req, failure.Argument("args", "args must be an object")
		}
	}
	return req, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
