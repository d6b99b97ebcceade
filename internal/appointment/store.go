package appointment

import (
	"context"
	"time"

	id "consular/pkg/domain"
)

// Store persists appointments. Appointments are never deleted; terminal
// states are statuses.
//
// Create and Reschedule are the two writes that can consume a slot, and both
// must uphold the uniqueness of active (organization, start time) bookings:
// implementations return sentinel.ErrConflict (wrapped) when another active
// appointment already holds the interval's start. The application-level
// conflict guard runs first for good error messages; the store constraint is
// the backstop under concurrency.
type Store interface {
	Create(ctx context.Context, a *Appointment) error
	FindByID(ctx context.Context, apptID id.AppointmentID) (*Appointment, error)
	// ListOverlapping returns appointments of the organization intersecting
	// [from, to), regardless of status; callers filter by Status.Blocks().
	ListOverlapping(ctx context.Context, org id.OrganizationID, from, to time.Time) ([]*Appointment, error)
	ListByAttendee(ctx context.Context, attendee id.ActorID) ([]*Appointment, error)
	ListByRequest(ctx context.Context, request id.ServiceRequestID) ([]*Appointment, error)
	// Update persists a status mutation of an existing appointment.
	Update(ctx context.Context, a *Appointment) error
	// Reschedule atomically marks old as superseded and creates replacement.
	// A crash between the two effects must not be observable: both are
	// committed or neither is.
	Reschedule(ctx context.Context, old *Appointment, replacement *Appointment) error
}
