package notify

import (
	"context"
	"log/slog"

	"docvault/pkg/domain"
)

// Notifier delivers access-request events to the external notification
// system. Delivery is best-effort: callers log failures and never roll back
// the state transition that produced the event.
type Notifier interface {
	Publish(ctx context.Context, event domain.Event) error
}

// LogNotifier writes events to the structured log. It is the fallback when
// no bus is configured.
type LogNotifier struct{}

// Publish logs the event.
func (LogNotifier) Publish(_ context.Context, event domain.Event) error {
	slog.Info("notification_event",
		"event_id", event.ID,
		"kind", event.Kind,
		"request_id", event.RequestID,
		"owner_id", event.OwnerID,
	)
	return nil
}
