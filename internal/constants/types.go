package constants

// Transport names.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportMCP   = "mcp"
)

// Dialog presenter names.
const (
	PresenterTerminal = "terminal"
	PresenterHTTP     = "http"
	PresenterShell    = "shell"
	PresenterNone     = "none"
)

// Builtin command names.
const (
	CommandGreet     = "greet"
	CommandListFiles = "list_files"
	CommandConfirm   = "confirm"
	CommandNotify    = "notify"
)

// Builtins lists builtin commands in registration order.
var Builtins = []string{CommandGreet, CommandListFiles, CommandConfirm, CommandNotify}
