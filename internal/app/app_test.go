package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/dialog"
	"github.com/codex-k8s/command-bridge/internal/dialog/webhook"
	"github.com/codex-k8s/command-bridge/internal/dispatch"
	"github.com/codex-k8s/command-bridge/internal/dsl"
	"github.com/codex-k8s/command-bridge/internal/protocol"
	"github.com/codex-k8s/command-bridge/internal/registry"
	"github.com/codex-k8s/command-bridge/internal/runtime"
	"github.com/codex-k8s/command-bridge/internal/transport"
)

func testServerConfig() dsl.ServerConfig {
	return dsl.ServerConfig{
		Name:    "bridge",
		Version: "1.0.0",
		HTTP: dsl.HTTPConfig{
			Listen:       "127.0.0.1:0",
			InvokePath:   "/invoke",
			MCPPath:      "/mcp",
			CallbackPath: "/dialog/callback",
		},
	}
}

func testDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	b := registry.NewBuilder()
	require.NoError(t, b.Register(registry.Descriptor{
		Name:   "greet",
		Params: []codec.Param{{Name: "name", Shape: codec.String}},
		Handler: func(_ context.Context, args codec.Args) (any, error) {
			return "Hello, " + args.String("name") + "!", nil
		},
	}))
	return dispatch.New(b.Build(), dispatch.Options{})
}

func newTestApp(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	a, err := New(context.Background(), opts)
	require.NoError(t, err)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func invoke(t *testing.T, url, body string) (int, protocol.Response) {
	t.Helper()
	resp, err := http.Post(url+"/invoke", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out protocol.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestNewValidates(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestInvoke(t *testing.T) {
	srv := newTestApp(t, Options{Server: testServerConfig(), Dispatcher: testDispatcher(t)})

	status, resp := invoke(t, srv.URL, `{"id":"r1","command":"greet","args":{"name":"Alice"}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, protocol.Response{ID: "r1", Status: protocol.StatusOK, Value: "Hello, Alice!"}, resp)

	status, resp = invoke(t, srv.URL, `{"id":"r2","command":"greeet","args":{}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "r2", resp.ID)
	assert.Equal(t, "CommandNotFound", resp.Kind)

	status, resp = invoke(t, srv.URL, `{"command":"greet"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "ArgumentError", resp.Kind)
	assert.Equal(t, "name", resp.Param)

	status, resp = invoke(t, srv.URL, `{"id":"r3"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "command", resp.Param)

	status, resp = invoke(t, srv.URL, `{oops`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, resp.Message, "malformed request")

	status, resp = invoke(t, srv.URL, `{"id":"r4","command":"greet","args":"Alice"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "r4", resp.ID)
	assert.Equal(t, "ArgumentError", resp.Kind)
	assert.Equal(t, "args", resp.Param)

	getResp, err := http.Get(srv.URL + "/invoke")
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestApp(t, Options{Server: testServerConfig(), Dispatcher: testDispatcher(t)})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCallbackRoute(t *testing.T) {
	pending := webhook.NewPendingStore()
	ch, err := pending.Register("s-1")
	require.NoError(t, err)
	srv := newTestApp(t, Options{Server: testServerConfig(), Dispatcher: testDispatcher(t), Pending: pending})

	resp, err := http.Post(srv.URL+"/dialog/callback", "application/json",
		bytes.NewBufferString(`{"session_id":"s-1","resolution":"confirmed"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, dialog.Confirmed, <-ch)
}

func TestCallbackRouteAbsentWithoutStore(t *testing.T) {
	srv := newTestApp(t, Options{Server: testServerConfig(), Dispatcher: testDispatcher(t)})
	resp, err := http.Post(srv.URL+"/dialog/callback", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMCPRoute(t *testing.T) {
	d := testDispatcher(t)
	srv := newTestApp(t, Options{
		Server:     testServerConfig(),
		Dispatcher: d,
		MCP:        runtime.NewMCPServer("bridge", "1.0.0", d),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: srv.URL + "/mcp"}, nil)
	require.NoError(t, err)
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "greet", Arguments: map[string]any{"name": "Bob"}})
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestInvokeRejectsOversizedBody(t *testing.T) {
	a, err := New(context.Background(), Options{Server: testServerConfig(), Dispatcher: testDispatcher(t)})
	require.NoError(t, err)

	body := `{"id":"big","command":"greet","args":{"name":"` + strings.Repeat("x", transport.MaxFrameBytes) + `"}}`
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ArgumentError", resp.Kind)
	assert.Contains(t, resp.Message, "frame exceeds")
}
