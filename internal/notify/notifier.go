// Package notify delivers lifecycle events to interested parties.
//
// Delivery is fire-and-forget: a failed notification is logged and dropped,
// never rolled back into the business operation that produced it.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Event is a lifecycle notification payload.
type Event struct {
	Kind       string            `json:"kind"`
	Subject    string            `json:"subject"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Event kinds emitted by the appointment and request services.
const (
	KindAppointmentBooked      = "appointment.booked"
	KindAppointmentCancelled   = "appointment.cancelled"
	KindAppointmentRescheduled = "appointment.rescheduled"
	KindAppointmentCompleted   = "appointment.completed"
	KindAppointmentMissed      = "appointment.missed"
	KindRequestStatusChanged   = "request.status_changed"
)

// Notifier publishes lifecycle events.
type Notifier interface {
	// Notify must not block the caller on delivery and must never return the
	// delivery outcome into the business path.
	Notify(ctx context.Context, event Event)
}

// Nop discards all events. Used in tests and when no channel is configured.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Logging writes events to the process log. Default channel for deployments
// without a broker.
type Logging struct {
	logger *slog.Logger
}

// NewLogging creates a log-backed notifier.
func NewLogging(logger *slog.Logger) *Logging {
	return &Logging{logger: logger}
}

func (l *Logging) Notify(ctx context.Context, event Event) {
	l.logger.InfoContext(ctx, "lifecycle event",
		"kind", event.Kind,
		"subject", event.Subject,
		"occurred_at", event.OccurredAt,
	)
}
