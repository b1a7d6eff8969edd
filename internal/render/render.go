// Package render expands ${{ ... }} expressions in the YAML configuration
// before it is parsed. Plain {{ ... }} blocks are left for per-call command
// templates.
package render

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/codex-k8s/command-bridge/internal/maputil"
)

const (
	leftDelim  = "${{"
	rightDelim = "}}"
)

// EnvTracker records environment variables referenced during rendering.
type EnvTracker struct {
	missing map[string]struct{}
	used    map[string]struct{}
}

func (t *EnvTracker) markUsed(key string) {
	if t.used == nil {
		t.used = map[string]struct{}{}
	}
	t.used[key] = struct{}{}
}

func (t *EnvTracker) markMissing(key string) {
	if t.missing == nil {
		t.missing = map[string]struct{}{}
	}
	t.missing[key] = struct{}{}
}

// Missing returns the sorted names of referenced but unset variables.
func (t *EnvTracker) Missing() []string {
	return maputil.SortedKeys(t.missing)
}

// Used returns the sorted names of every referenced variable.
func (t *EnvTracker) Used() []string {
	return maputil.SortedKeys(t.used)
}

// RenderFile loads and renders a YAML config file.
func RenderFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return RenderBytes(path, raw)
}

// RenderBytes renders raw config bytes. A config without ${{ is returned unchanged.
func RenderBytes(name string, raw []byte) ([]byte, error) {
	if !bytes.Contains(raw, []byte(leftDelim)) {
		return raw, nil
	}
	if strings.TrimSpace(name) == "" {
		name = "config"
	}

	tracker := &EnvTracker{}
	tmpl, err := template.New(name).
		Delims(leftDelim, rightDelim).
		Funcs(FuncMap(tracker)).
		Option("missingkey=error").
		Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse config template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return nil, fmt.Errorf("render config template: %w", err)
	}
	if missing := tracker.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("missing env vars: %s", strings.Join(missing, ", "))
	}
	return buf.Bytes(), nil
}
