// Package registry holds the startup-built table of commands the bridge serves.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/failure"
)

// Mode is the execution mode of a command.
type Mode int

const (
	// Synchronous handlers complete before dispatch returns and may block a pool worker.
	Synchronous Mode = iota
	// Asynchronous handlers are long-running; dispatch returns a deferred outcome.
	Asynchronous
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	if m == Asynchronous {
		return "asynchronous"
	}
	return "synchronous"
}

// ParseMode parses a configuration value; empty means synchronous.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "sync", "synchronous":
		return Synchronous, nil
	case "async", "asynchronous":
		return Asynchronous, nil
	default:
		return Synchronous, fmt.Errorf("unknown execution mode: %s", value)
	}
}

// Handler executes a command with decoded arguments and returns its native result.
type Handler func(ctx context.Context, args codec.Args) (any, error)

// Descriptor describes one command.
type Descriptor struct {
	// Name is the unique command name.
	Name string
	// Description documents the command for MCP clients.
	Description string
	// Params is the declared arity.
	Params []codec.Param
	// Mode selects synchronous or asynchronous execution.
	Mode Mode
	// Schema optionally validates the raw payload after arity decoding.
	Schema *jsonschema.Schema
	// Handler runs the command.
	Handler Handler
}

// ErrFrozen is returned when registering after Build.
var ErrFrozen = errors.New("registry is frozen")

// Builder collects descriptors during startup. It is not safe for concurrent use.
type Builder struct {
	byName map[string]Descriptor
	frozen bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{byName: make(map[string]Descriptor)}
}

// Register adds d. A name that is already registered fails with a
// DuplicateCommandError, which is fatal at startup.
func (b *Builder) Register(d Descriptor) error {
	if b.frozen {
		return ErrFrozen
	}
	if err := validate(d); err != nil {
		return err
	}
	if _, exists := b.byName[d.Name]; exists {
		return failure.Duplicate(d.Name)
	}
	d.Params = append([]codec.Param(nil), d.Params...)
	b.byName[d.Name] = d
	return nil
}

// Build freezes the builder and returns the read-only registry.
func (b *Builder) Build() *Registry {
	b.frozen = true
	names := make([]string, 0, len(b.byName))
	for name := range b.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Registry{byName: b.byName, names: names}
}

func validate(d Descriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("command name is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("command %s: handler is nil", d.Name)
	}
	seen := make(map[string]struct{}, len(d.Params))
	for i, p := range d.Params {
		if p.Name == "" {
			return fmt.Errorf("command %s: params[%d].name is required", d.Name, i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("command %s: duplicate parameter %s", d.Name, p.Name)
		}
		seen[p.Name] = struct{}{}
		if !p.Shape.Valid() {
			return fmt.Errorf("command %s: parameter %s: unknown shape %q", d.Name, p.Name, p.Shape)
		}
	}
	return nil
}

// Registry is the immutable command table. It is shared without locking.
type Registry struct {
	byName map[string]Descriptor
	names  []string
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	d, ok := r.byName[name]
	return d, ok
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Descriptors returns all descriptors sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

const maxSuggestDistance = 2

// Suggest returns the registered name closest to name, or "" when nothing is
// within a small edit distance.
func (r *Registry) Suggest(name string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, candidate := range r.Names() {
		dist := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(candidate))
		if dist < bestDist {
			best, bestDist = candidate, dist
		}
	}
	return best
}
