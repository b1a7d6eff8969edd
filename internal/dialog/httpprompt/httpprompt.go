// Package httpprompt presents confirmation prompts and notifications through
// an external HTTP UI.
package httpprompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codex-k8s/command-bridge/internal/dialog"
	"github.com/codex-k8s/command-bridge/internal/dialog/webhook"
	"github.com/codex-k8s/command-bridge/internal/protocol"
)

const (
	statusPending  = "pending"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Presenter posts a DialogPrompt to URL. The UI either answers in the
// response body or, when Async is set, replies 202/"pending" and posts the
// resolution to CallbackURL later.
type Presenter struct {
	// URL is the UI endpoint.
	URL string
	// Method overrides the HTTP method.
	Method string
	// Headers adds HTTP headers.
	Headers map[string]string
	// Timeout bounds the HTTP round trip, not the wait for a callback.
	Timeout time.Duration
	// Async enables the callback flow.
	Async bool
	// CallbackURL is where the UI posts the resolution.
	CallbackURL string
	// Pending holds sessions waiting for a callback.
	Pending *webhook.PendingStore
	// Client overrides the HTTP client.
	Client *http.Client
}

// Present sends the prompt and returns the user's answer.
func (p Presenter) Present(ctx context.Context, session *dialog.Session) (dialog.State, error) {
	if strings.TrimSpace(p.URL) == "" {
		return "", errors.New("dialog url is empty")
	}
	if p.Async {
		if strings.TrimSpace(p.CallbackURL) == "" {
			return "", errors.New("dialog callback url is empty")
		}
		if p.Pending == nil {
			return "", errors.New("dialog callback store is not configured")
		}
	}

	payload := protocol.DialogPrompt{
		SessionID: session.ID,
		Title:     session.Title,
		Prompt:    session.Prompt,
		Severity:  string(session.Severity),
	}
	var pendingCh <-chan dialog.State
	if p.Async {
		payload.Callback = &protocol.DialogCallback{URL: p.CallbackURL}
		// Registered before the request so a fast callback cannot be lost.
		ch, err := p.Pending.Register(session.ID)
		if err != nil {
			return "", err
		}
		pendingCh = ch
		defer p.Pending.Cancel(session.ID)
	}

	status, data, err := send(ctx, httpClient(p.Client, p.Timeout), p.Method, p.URL, p.Headers, payload)
	if err != nil {
		return "", fmt.Errorf("dialog %w", err)
	}
	trimmed := bytes.TrimSpace(data)

	if status < 200 || status >= 300 {
		return "", fmt.Errorf("dialog status %d: %s", status, string(trimmed))
	}
	if p.Async && status == http.StatusAccepted && len(trimmed) == 0 {
		return webhook.Await(ctx, pendingCh)
	}

	var parsed protocol.DialogResolution
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return "", fmt.Errorf("invalid dialog response: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(parsed.Resolution), statusPending) {
		if !p.Async {
			return "", errors.New("dialog returned pending without a callback")
		}
		return webhook.Await(ctx, pendingCh)
	}
	state, ok := webhook.ParseResolution(parsed.Resolution)
	if !ok {
		return "", fmt.Errorf("unknown dialog resolution: %q", parsed.Resolution)
	}
	return state, nil
}

// Notifier posts a protocol.Notification to URL. Any 2xx status counts as delivered.
type Notifier struct {
	// URL is the UI endpoint.
	URL string
	// Method overrides the HTTP method.
	Method string
	// Headers adds HTTP headers.
	Headers map[string]string
	// Timeout bounds the HTTP round trip.
	Timeout time.Duration
	// Client overrides the HTTP client.
	Client *http.Client
}

// Notify sends n and waits for the UI to accept it.
func (n Notifier) Notify(ctx context.Context, note dialog.Notification) error {
	if strings.TrimSpace(n.URL) == "" {
		return errors.New("notification url is empty")
	}
	payload := protocol.Notification{
		ID:       note.ID,
		Title:    note.Title,
		Body:     note.Body,
		Severity: string(note.Severity),
	}
	status, data, err := send(ctx, httpClient(n.Client, n.Timeout), n.Method, n.URL, n.Headers, payload)
	if err != nil {
		return fmt.Errorf("notification %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("notification status %d: %s", status, string(bytes.TrimSpace(data)))
	}
	return nil
}

// send encodes payload as JSON, performs the request and reads the body.
// Errors read as "request failed: ..." so callers can prefix their subject.
func send(ctx context.Context, client *http.Client, method, url string, headers map[string]string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode failed: %w", err)
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	resp, err := client.Do(request)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func httpClient(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
