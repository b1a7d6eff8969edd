package dialog

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/codex-k8s/command-bridge/internal/audit"
	"github.com/codex-k8s/command-bridge/internal/constants"
)

// Notification is a one-way message. Unlike a Session it has no answer and
// does not occupy the dialog slot.
type Notification struct {
	// ID identifies the notification.
	ID string
	// Title is the heading.
	Title string
	// Body is the message text.
	Body string
	// Severity classifies the notification.
	Severity Severity
}

// NewNotification returns a notification with a fresh ID.
func NewNotification(title, body string, severity Severity) Notification {
	if severity == "" {
		severity = SeverityInfo
	}
	return Notification{ID: uuid.NewString(), Title: title, Body: body, Severity: severity}
}

// Notifier delivers notifications. Notify returns once delivery is done.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// ErrNoNotifier is returned by Notify when no notifier is configured.
var ErrNoNotifier = errors.New("no notifier configured")

// Notify delivers n through the configured notifier.
func (s *Service) Notify(ctx context.Context, n Notification) error {
	if s.notifier == nil {
		return ErrNoNotifier
	}
	err := s.notifier.Notify(ctx, n)
	if s.audit != nil {
		event := audit.Event{
			Type:      audit.EventNotify,
			Command:   constants.CommandNotify,
			RequestID: audit.RequestID(ctx),
			SessionID: n.ID,
			Message:   string(n.Severity),
		}
		if err != nil {
			event.Message = err.Error()
		}
		s.audit.Record(ctx, event)
	}
	if s.logger != nil {
		if err != nil {
			s.logger.Warn("notification failed", "id", n.ID, "error", err)
		} else {
			s.logger.Info("notification delivered", "id", n.ID, "severity", n.Severity)
		}
	}
	return err
}
