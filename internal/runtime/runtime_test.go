package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/command-bridge/internal/dialog"
	"github.com/codex-k8s/command-bridge/internal/dispatch"
	"github.com/codex-k8s/command-bridge/internal/dsl"
	"github.com/codex-k8s/command-bridge/internal/failure"
	"github.com/codex-k8s/command-bridge/internal/protocol"
	"github.com/codex-k8s/command-bridge/internal/templates"
)

type staticLister []string

func (l staticLister) List(_ context.Context, path string) ([]string, error) {
	if path == "/missing" {
		return nil, errors.New("Path does not exist: /missing")
	}
	return l, nil
}

func load(t *testing.T, yaml string) *dsl.Config {
	t.Helper()
	cfg, err := dsl.Load([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func testBuilder(t *testing.T) Builder {
	t.Helper()
	bundle, err := templates.Load("en")
	require.NoError(t, err)
	return Builder{
		Templates: bundle,
		Lister:    staticLister{"a.txt", "b.txt"},
		Presenter: dialog.PresenterFunc(func(context.Context, *dialog.Session) (dialog.State, error) {
			return dialog.Confirmed, nil
		}),
		Notifier: dialog.NotifierFunc(func(context.Context, dialog.Notification) error {
			return nil
		}),
	}
}

const baseConfig = `
server:
  name: bridge
  version: 1.0.0
`

func TestBuildRegistersBuiltinsAndCommands(t *testing.T) {
	cfg := load(t, baseConfig+`
commands:
  - name: echo
    params:
      - name: text
    command: echo
    args: ["{{ arg \"text\" }}"]
limits:
  greet:
    max_total: 1
`)
	bridge, err := testBuilder(t).Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"confirm", "echo", "greet", "list_files", "notify"}, bridge.Registry.Names())
	assert.Nil(t, bridge.Pending)

	ctx := context.Background()
	out := bridge.Dispatcher.Dispatch(ctx, dispatch.Request{Command: "greet", Args: map[string]any{"name": "Alice"}})
	require.True(t, out.OK())
	assert.Equal(t, "Hello, Alice!", out.Value)

	out = bridge.Dispatcher.Dispatch(ctx, dispatch.Request{Command: "greet", Args: map[string]any{"name": "Alice"}})
	require.False(t, out.OK())
	assert.Equal(t, failure.HandlerError, out.Err.Kind)
	assert.Equal(t, "Maximum number of calls to greet exceeded", out.Err.Message)

	out = bridge.Dispatcher.Dispatch(ctx, dispatch.Request{Command: "confirm", Args: map[string]any{"prompt": "Are you sure?"}})
	require.True(t, out.OK())
	assert.Equal(t, "confirmed", out.Value)
}

func TestBuildNotifier(t *testing.T) {
	var got []dialog.Notification
	builder := testBuilder(t)
	builder.Notifier = dialog.NotifierFunc(func(_ context.Context, n dialog.Notification) error {
		got = append(got, n)
		return nil
	})
	bridge, err := builder.Build(load(t, baseConfig))
	require.NoError(t, err)
	out := bridge.Dispatcher.Dispatch(context.Background(), dispatch.Request{Command: "notify", Args: map[string]any{"title": "Build", "severity": "warning"}})
	require.True(t, out.OK())
	assert.Equal(t, "delivered", out.Value)
	require.Len(t, got, 1)
	assert.Equal(t, dialog.SeverityWarning, got[0].Severity)

	builder = testBuilder(t)
	builder.Notifier = nil
	bridge, err = builder.Build(load(t, baseConfig+"dialog: {notify: {via: none}}\n"))
	require.NoError(t, err)
	out = bridge.Dispatcher.Dispatch(context.Background(), dispatch.Request{Command: "notify", Args: map[string]any{"title": "Build"}})
	require.False(t, out.OK())
	assert.Equal(t, failure.HandlerError, out.Err.Kind)
	assert.Equal(t, "no notifier configured", out.Err.Message)

	bridge, err = builder.Build(load(t, baseConfig+"dialog: {notify: {via: shell, shell: {command: 'true'}}}\n"))
	require.NoError(t, err)
	out = bridge.Dispatcher.Dispatch(context.Background(), dispatch.Request{Command: "notify", Args: map[string]any{"title": "Build"}})
	require.True(t, out.OK())
}

func TestBuildDuplicateCommandIsFatal(t *testing.T) {
	cfg := load(t, baseConfig+`
commands:
  - name: greet
    command: echo hi
`)
	bridge, err := testBuilder(t).Build(cfg)
	require.Error(t, err)
	assert.Nil(t, bridge)
	var ferr *failure.Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, failure.DuplicateCommandError, ferr.Kind)
	assert.True(t, ferr.Kind.Fatal())
}

func TestBuildOrderIndependent(t *testing.T) {
	a := load(t, baseConfig+"builtins: [greet, list_files, confirm]\n")
	b := load(t, baseConfig+"builtins: [confirm, list_files, greet]\n")
	ra, err := testBuilder(t).Build(a)
	require.NoError(t, err)
	rb, err := testBuilder(t).Build(b)
	require.NoError(t, err)
	assert.Equal(t, ra.Registry.Names(), rb.Registry.Names())
	for _, name := range ra.Registry.Names() {
		da, _ := ra.Registry.Lookup(name)
		db, _ := rb.Registry.Lookup(name)
		assert.Equal(t, da.Params, db.Params)
		assert.Equal(t, da.Mode, db.Mode)
	}
}

func TestBuildCommandSchema(t *testing.T) {
	cfg := load(t, baseConfig+`
builtins: [greet]
commands:
  - name: short
    params:
      - name: text
    input_schema:
      properties:
        text:
          maxLength: 3
    command: echo
    args: ["{{ arg \"text\" }}"]
`)
	bridge, err := testBuilder(t).Build(cfg)
	require.NoError(t, err)
	out := bridge.Dispatcher.Dispatch(context.Background(), dispatch.Request{Command: "short", Args: map[string]any{"text": "too long"}})
	require.False(t, out.OK())
	assert.Equal(t, failure.ArgumentError, out.Err.Kind)
	assert.Equal(t, "text", out.Err.Param)
}

func TestBuildAsyncHTTPPresenterCreatesPendingStore(t *testing.T) {
	cfg := load(t, `
server:
  name: bridge
  version: 1.0.0
  transport: http
builtins: [confirm]
dialog:
  presenter: http
  http:
    url: http://ui.local/prompt
    async: true
    callback_url: http://127.0.0.1:8080/dialog/callback
`)
	bridge, err := Builder{}.Build(cfg)
	require.NoError(t, err)
	assert.NotNil(t, bridge.Pending)
}

func TestMCPServerExposesCommands(t *testing.T) {
	bridge, err := testBuilder(t).Build(load(t, baseConfig))
	require.NoError(t, err)
	server := NewMCPServer("bridge", "1.0.0", bridge.Dispatcher)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"confirm", "greet", "list_files", "notify"}, names)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "greet", Arguments: map[string]any{"name": "Alice"}})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	resp := decodeResponse(t, result.StructuredContent)
	assert.Equal(t, protocol.StatusOK, resp.Status)
	assert.Equal(t, "Hello, Alice!", resp.Value)

	result, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "list_files", Arguments: map[string]any{"path": "/data"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a.txt", "b.txt"}, decodeResponse(t, result.StructuredContent).Value)

	result, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "list_files", Arguments: map[string]any{"path": "/missing"}})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	resp = decodeResponse(t, result.StructuredContent)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "HandlerError", resp.Kind)
	assert.Equal(t, "Path does not exist: /missing", resp.Message)
}

func decodeResponse(t *testing.T, value any) protocol.Response {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestInputSchema(t *testing.T) {
	bridge, err := testBuilder(t).Build(load(t, baseConfig+"builtins: [confirm]\n"))
	require.NoError(t, err)
	desc, ok := bridge.Registry.Lookup("confirm")
	require.True(t, ok)

	schema := inputSchema(desc.Params)
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []any{"prompt"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, "info", props["severity"].(map[string]any)["default"])
}
