package notifier

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development and as a safe default when Postmark is not configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

// Send implements Notifier.
func (l *LogNotifier) Send(ctx context.Context, n Notification) error {
	if n.Recipient == "" {
		return ErrMissingRecipient
	}
	if n.Template == "" {
		return ErrMissingTemplate
	}

	l.log.InfoContext(ctx, "notification (log only)",
		slog.String("template", string(n.Template)),
		slog.String("recipient", n.Recipient))
	return nil
}
