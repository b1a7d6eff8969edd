// Package terminal presents confirmation prompts as a modal on a TTY and
// prints notifications there.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/codex-k8s/command-bridge/internal/dialog"
	"github.com/codex-k8s/command-bridge/internal/templates"
)

// DefaultTTY is the device prompts are drawn on. Stdin and stdout may carry
// protocol frames, so the controlling terminal is used instead.
const DefaultTTY = "/dev/tty"

// Presenter draws prompts with bubbletea.
type Presenter struct {
	// TTY is the terminal device path.
	TTY string
	// Renderer localizes labels.
	Renderer templates.Renderer
	// Input and Output override the TTY when both are set.
	Input  io.Reader
	Output io.Writer
}

// Present runs the modal until the user answers. Dismissing declines.
func (p Presenter) Present(ctx context.Context, session *dialog.Session) (dialog.State, error) {
	in, out := p.Input, p.Output
	if in == nil || out == nil {
		path := p.TTY
		if path == "" {
			path = DefaultTTY
		}
		tty, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return "", fmt.Errorf("open terminal: %w", err)
		}
		defer tty.Close()
		in, out = tty, tty
	}

	program := tea.NewProgram(
		newModel(session, p.Renderer),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithContext(ctx),
	)
	final, err := program.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("run terminal dialog: %w", err)
	}
	m, ok := final.(model)
	if !ok || !m.result.Terminal() {
		return "", errors.New("terminal dialog ended without an answer")
	}
	return m.result, nil
}

// Notifier prints each notification as a framed block on the TTY.
type Notifier struct {
	// TTY is the terminal device path.
	TTY string
	// Renderer localizes the default title.
	Renderer templates.Renderer
	// Output overrides the TTY.
	Output io.Writer
}

// Notify writes note and returns once it is written.
func (n Notifier) Notify(ctx context.Context, note dialog.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := n.Output
	if out == nil {
		path := n.TTY
		if path == "" {
			path = DefaultTTY
		}
		tty, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("open terminal: %w", err)
		}
		defer tty.Close()
		out = tty
	}
	if _, err := io.WriteString(out, renderNotification(note, n.Renderer)); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

func renderNotification(note dialog.Notification, r templates.Renderer) string {
	th := newTheme(note.Severity)
	title := note.Title
	if strings.TrimSpace(title) == "" {
		title = templates.Text(r, "notify.default_title", nil, "Notification")
	}
	parts := []string{th.title.Render(title)}
	if strings.TrimSpace(note.Body) != "" {
		parts = append(parts, th.body.Render(note.Body))
	}
	return th.frame.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)) + "\n"
}

type labels struct {
	title     string
	hint      string
	confirmed string
	declined  string
}

func loadLabels(r templates.Renderer) labels {
	return labels{
		title:     templates.Text(r, "dialog.default_title", nil, "Confirmation"),
		hint:      templates.Text(r, "dialog.hint", nil, "y/enter: confirm, n/esc: decline"),
		confirmed: templates.Text(r, "dialog.confirmed", nil, "Confirmed"),
		declined:  templates.Text(r, "dialog.declined", nil, "Declined"),
	}
}

type theme struct {
	frame    lipgloss.Style
	title    lipgloss.Style
	prompt   lipgloss.Style
	body     lipgloss.Style
	button   lipgloss.Style
	selected lipgloss.Style
	hint     lipgloss.Style
}

func newTheme(severity dialog.Severity) theme {
	accent := lipgloss.Color("#01cdfe")
	switch severity {
	case dialog.SeverityWarning:
		accent = lipgloss.Color("#ffb86c")
	case dialog.SeverityError:
		accent = lipgloss.Color("#ff5555")
	}
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		frame: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2),
		title:  lipgloss.NewStyle().Foreground(accent).Bold(true),
		prompt: lipgloss.NewStyle().MarginTop(1).MarginBottom(1),
		body:   lipgloss.NewStyle().MarginTop(1),
		button: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 2),
		selected: lipgloss.NewStyle().
			Background(accent).
			Foreground(lipgloss.Color("#120924")).
			Bold(true).
			Padding(0, 2),
		hint: lipgloss.NewStyle().Foreground(muted).MarginTop(1),
	}
}

type model struct {
	session *dialog.Session
	labels  labels
	theme   theme
	// confirm is the highlighted button.
	confirm bool
	result  dialog.State
}

func newModel(session *dialog.Session, r templates.Renderer) model {
	return model{
		session: session,
		labels:  loadLabels(r),
		theme:   newTheme(session.Severity),
		confirm: true,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || m.result.Terminal() {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "y":
		m.result = dialog.Confirmed
	case "n", "esc", "q", "ctrl+c":
		m.result = dialog.Declined
	case "enter":
		if m.confirm {
			m.result = dialog.Confirmed
		} else {
			m.result = dialog.Declined
		}
	case "left", "right", "tab", "shift+tab", "h", "l":
		m.confirm = !m.confirm
		return m, nil
	default:
		return m, nil
	}
	return m, tea.Quit
}

func (m model) View() string {
	if m.result.Terminal() {
		return ""
	}
	title := m.session.Title
	if strings.TrimSpace(title) == "" {
		title = m.labels.title
	}

	yes, no := m.theme.button, m.theme.button
	if m.confirm {
		yes = m.theme.selected
	} else {
		no = m.theme.selected
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top,
		yes.Render(m.labels.confirmed),
		no.Render(m.labels.declined),
	)

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.title.Render(title),
		m.theme.prompt.Render(m.session.Prompt),
		buttons,
		m.theme.hint.Render(m.labels.hint),
	)
	return m.theme.frame.Render(body) + "\n"
}
