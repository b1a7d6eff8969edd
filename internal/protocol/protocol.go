package protocol

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Dialog resolutions reported to callers and accepted from external UIs.
const (
	ResolutionConfirmed = "confirmed"
	ResolutionDeclined  = "declined"
)

// Request is one invocation frame sent by the UI.
type Request struct {
	// ID correlates the response with this request. Optional; assigned when empty.
	ID string `json:"id,omitempty"`
	// Command is the registered command name.
	Command string `json:"command"`
	// Args maps parameter names to untyped values.
	Args map[string]any `json:"args,omitempty"`
}

// Response is the single reply to a Request.
type Response struct {
	// ID echoes the request ID.
	ID string `json:"id,omitempty"`
	// Status is "ok" or "error".
	Status string `json:"status"`
	// Value is the encoded result of a successful call.
	Value any `json:"value,omitempty"`
	// Kind is the failure category of an error response.
	Kind string `json:"kind,omitempty"`
	// Message is the human-readable failure description.
	Message string `json:"message,omitempty"`
	// Param names the offending parameter of an ArgumentError.
	Param string `json:"param,omitempty"`
}

// DialogPrompt is the payload posted to external dialog UIs.
type DialogPrompt struct {
	// SessionID identifies the dialog session.
	SessionID string `json:"session_id"`
	// Title is the dialog title.
	Title string `json:"title,omitempty"`
	// Prompt is the question shown to the user.
	Prompt string `json:"prompt"`
	// Severity is info, warning, or error.
	Severity string `json:"severity"`
	// Callback is set when the UI answers asynchronously.
	Callback *DialogCallback `json:"callback,omitempty"`
}

// DialogCallback tells an external UI where to post the resolution.
type DialogCallback struct {
	// URL receives a DialogResolution.
	URL string `json:"url"`
}

// Notification is the payload posted to external notification UIs.
type Notification struct {
	// ID identifies the notification.
	ID string `json:"id"`
	// Title is the notification heading.
	Title string `json:"title"`
	// Body is the notification text.
	Body string `json:"body,omitempty"`
	// Severity is info, warning, or error.
	Severity string `json:"severity"`
}

// DialogResolution is the answer of an external dialog UI.
type DialogResolution struct {
	// SessionID identifies the dialog session. Required on callbacks.
	SessionID string `json:"session_id,omitempty"`
	// Resolution is "confirmed" or "declined". "pending" is accepted from
	// synchronous UIs that will answer through the callback instead.
	Resolution string `json:"resolution"`
}
