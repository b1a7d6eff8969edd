// Package shell presents confirmation prompts through a native dialog tool
// such as zenity or kdialog, and notifications through a tool such as
// notify-send.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/codex-k8s/command-bridge/internal/audit"
	"github.com/codex-k8s/command-bridge/internal/constants"
	"github.com/codex-k8s/command-bridge/internal/dialog"
	"github.com/codex-k8s/command-bridge/internal/executil"
)

// Presenter runs a command per prompt. Exit code 0 confirms; any code in
// DeclineExitCodes declines. Other failures are errors.
type Presenter struct {
	// Command is the executable or shell script.
	Command string
	// Args are command arguments; templates see prompt, title, severity and session_id.
	Args []string
	// Env adds environment variables.
	Env map[string]string
	// DeclineExitCodes are exit codes meaning the user declined or dismissed.
	DeclineExitCodes []int
}

// Present runs the command and maps its exit code to a resolution.
func (p Presenter) Present(ctx context.Context, session *dialog.Session) (dialog.State, error) {
	declines := p.DeclineExitCodes
	if len(declines) == 0 {
		declines = []int{1}
	}

	res, err := executil.Run(ctx, executil.Spec{Command: p.Command, Args: p.Args, Env: p.Env}, executil.TemplateData{
		Command: dialog.CommandName,
		Args: map[string]any{
			"prompt":     session.Prompt,
			"title":      session.Title,
			"severity":   string(session.Severity),
			"session_id": session.ID,
		},
	})
	if err == nil {
		return dialog.Confirmed, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil && slices.Contains(declines, res.ExitCode) {
		return dialog.Declined, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	output := strings.TrimSpace(res.Output)
	if output == "" {
		return "", fmt.Errorf("dialog command failed: %w", err)
	}
	return "", fmt.Errorf("dialog command failed: %w: %s", err, output)
}

// Notifier runs a command per notification. Any non-zero exit is a delivery failure.
type Notifier struct {
	// Command is the executable or shell script.
	Command string
	// Args are command arguments; templates see title, body, severity and notification_id.
	Args []string
	// Env adds environment variables.
	Env map[string]string
}

// Notify runs the command for note.
func (n Notifier) Notify(ctx context.Context, note dialog.Notification) error {
	res, err := executil.Run(ctx, executil.Spec{Command: n.Command, Args: n.Args, Env: n.Env}, executil.TemplateData{
		Command:   constants.CommandNotify,
		RequestID: audit.RequestID(ctx),
		Args: map[string]any{
			"title":           note.Title,
			"body":            note.Body,
			"severity":        string(note.Severity),
			"notification_id": note.ID,
		},
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	output := strings.TrimSpace(res.Output)
	if output == "" {
		return fmt.Errorf("notify command failed: %w", err)
	}
	return fmt.Errorf("notify command failed: %w: %s", err, output)
}
