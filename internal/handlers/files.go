package handlers

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/codex-k8s/command-bridge/internal/codec"
	"github.com/codex-k8s/command-bridge/internal/constants"
	"github.com/codex-k8s/command-bridge/internal/failure"
	"github.com/codex-k8s/command-bridge/internal/registry"
	"github.com/codex-k8s/command-bridge/internal/templates"
)

// ListReason classifies a listing failure.
type ListReason string

// Listing failure reasons. Each maps to a localized message.
const (
	ReasonNotFound     ListReason = "not_found"
	ReasonNotDirectory ListReason = "not_directory"
	ReasonReadDir      ListReason = "read_dir"
	ReasonReadEntry    ListReason = "read_entry"
	ReasonNonUTF8      ListReason = "non_utf8"
)

// ListError is returned by a Lister.
type ListError struct {
	Reason ListReason
	Path   string
	// Name is the offending entry for ReasonNonUTF8.
	Name string
	Err  error
}

func (e *ListError) Error() string {
	switch e.Reason {
	case ReasonNonUTF8:
		return "non-UTF-8 filename: " + e.Name
	case ReasonNotFound:
		return "path does not exist: " + e.Path
	case ReasonNotDirectory:
		return "path is not a directory: " + e.Path
	}
	if e.Err != nil {
		return string(e.Reason) + " " + e.Path + ": " + e.Err.Error()
	}
	return string(e.Reason) + " " + e.Path
}

func (e *ListError) Unwrap() error {
	return e.Err
}

// Lister returns the entry names of a directory in the order the underlying
// filesystem reports them.
type Lister interface {
	List(ctx context.Context, path string) ([]string, error)
}

// OSLister lists directories on the local filesystem.
type OSLister struct{}

// List reads path without sorting.
func (OSLister) List(_ context.Context, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ListError{Reason: ReasonNotFound, Path: path, Err: err}
		}
		return nil, &ListError{Reason: ReasonReadDir, Path: path, Err: err}
	}
	if !info.IsDir() {
		return nil, &ListError{Reason: ReasonNotDirectory, Path: path}
	}

	dir, err := os.Open(path)
	if err != nil {
		return nil, &ListError{Reason: ReasonReadDir, Path: path, Err: err}
	}
	defer dir.Close()

	// Readdirnames keeps directory order; os.ReadDir would sort.
	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil, &ListError{Reason: ReasonReadEntry, Path: path, Err: err}
	}
	for _, name := range names {
		if !utf8.ValidString(name) {
			return nil, &ListError{Reason: ReasonNonUTF8, Path: path, Name: name}
		}
	}
	return names, nil
}

// ListFiles returns the list_files descriptor. It runs on the blocking pool.
func ListFiles(lister Lister, r templates.Renderer) registry.Descriptor {
	if lister == nil {
		lister = OSLister{}
	}
	return registry.Descriptor{
		Name:        constants.CommandListFiles,
		Description: "List the entry names of a directory.",
		Params: []codec.Param{
			{Name: "path", Shape: codec.String, Description: "Directory to list."},
		},
		Mode: registry.Synchronous,
		Handler: func(ctx context.Context, args codec.Args) (any, error) {
			path := args.String("path")
			names, err := lister.List(ctx, path)
			if err != nil {
				return nil, listFailure(r, path, err)
			}
			if names == nil {
				names = []string{}
			}
			return names, nil
		},
	}
}

func listFailure(r templates.Renderer, path string, err error) error {
	var le *ListError
	if !errors.As(err, &le) {
		return failure.Normalize(err)
	}
	data := map[string]any{"Path": le.Path, "Name": le.Name, "Error": ""}
	if le.Path == "" {
		data["Path"] = path
	}
	if le.Err != nil {
		data["Error"] = le.Err.Error()
	}
	message := templates.Text(r, "list_files."+string(le.Reason), data, le.Error())
	return failure.Handler(message, err)
}
