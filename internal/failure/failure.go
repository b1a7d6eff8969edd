// Package failure defines the single error representation that crosses the
// bridge boundary and the normalizer that produces it.
package failure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// Kind is the stable, machine-readable failure category.
type Kind string

const (
	// CommandNotFound means the requested name is absent from the registry.
	CommandNotFound Kind = "CommandNotFound"
	// ArgumentError means the payload is missing or mismatches a declared parameter.
	ArgumentError Kind = "ArgumentError"
	// HandlerError means the handler ran and reported a domain failure.
	HandlerError Kind = "HandlerError"
	// DuplicateCommandError means two descriptors share a name. Startup only.
	DuplicateCommandError Kind = "DuplicateCommandError"
)

// Retryable reports whether a caller may retry the same command after a failure
// of this kind. CommandNotFound and ArgumentError need a different request;
// HandlerError may succeed once the input or environment changes.
func (k Kind) Retryable() bool {
	return k == HandlerError
}

// Fatal reports whether the kind terminates the process.
func (k Kind) Fatal() bool {
	return k == DuplicateCommandError
}

// Error is the immutable failure value returned across the boundary.
type Error struct {
	// Kind is the failure category.
	Kind Kind
	// Message is the human-readable description.
	Message string
	// Param names the offending parameter for ArgumentError.
	Param string
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

// NotFound builds a CommandNotFound failure.
func NotFound(name, suggestion string) *Error {
	msg := fmt.Sprintf("command %q not found", name)
	if suggestion != "" {
		msg = fmt.Sprintf("%s (did you mean %q?)", msg, suggestion)
	}
	return &Error{Kind: CommandNotFound, Message: msg}
}

// Argument builds an ArgumentError naming the offending parameter.
func Argument(param, format string, args ...any) *Error {
	return &Error{Kind: ArgumentError, Param: param, Message: fmt.Sprintf(format, args...)}
}

// Handler builds a HandlerError with the given message.
func Handler(message string, cause error) *Error {
	return &Error{Kind: HandlerError, Message: message, cause: cause}
}

// Duplicate builds a DuplicateCommandError.
func Duplicate(name string) *Error {
	return &Error{Kind: DuplicateCommandError, Message: fmt.Sprintf("duplicate command: %s", name)}
}

// Sentinels usable with errors.Is.
var (
	ErrCommandNotFound = &Error{Kind: CommandNotFound}
	ErrArgument        = &Error{Kind: ArgumentError}
	ErrHandler         = &Error{Kind: HandlerError}
	ErrDuplicate       = &Error{Kind: DuplicateCommandError}
)

// Normalize maps any failure to exactly one *Error. An *Error anywhere in the
// chain is returned unchanged, so normalizing twice is the identity. Every
// other error is a handler failure.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var normalized *Error
	if errors.As(err, &normalized) {
		return normalized
	}

	message := err.Error()
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &pathErr) && errors.Is(err, fs.ErrNotExist):
		message = fmt.Sprintf("Path does not exist: %s", pathErr.Path)
	case errors.As(err, &pathErr) && errors.Is(err, fs.ErrPermission):
		message = fmt.Sprintf("Permission denied: %s", pathErr.Path)
	case errors.Is(err, context.DeadlineExceeded):
		message = "handler timed out"
	case errors.Is(err, context.Canceled):
		message = "handler cancelled"
	}
	if message == "" {
		message = "handler failed"
	}
	return &Error{Kind: HandlerError, Message: message, cause: err}
}

// Recovered converts a recovered panic value into a HandlerError.
func Recovered(value any) *Error {
	if err, ok := value.(error); ok {
		return &Error{Kind: HandlerError, Message: fmt.Sprintf("handler panic: %v", err), cause: err}
	}
	return &Error{Kind: HandlerError, Message: fmt.Sprintf("handler panic: %v", value)}
}
