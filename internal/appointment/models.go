// Package appointment holds the appointment aggregate: its lifecycle state
// machine, the booking conflict guard, and slot values produced by the
// availability generator.
package appointment

import (
	"time"

	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
)

// Type is an enumerated appointment category. Duration and daily quota are
// configuration constants per type, never per-instance values.
type Type string

const (
	TypeDocumentSubmission Type = "document_submission"
	TypeDocumentCollection Type = "document_collection"
	TypeInterview          Type = "interview"
	TypeCeremony           Type = "ceremony"
	TypeEmergency          Type = "emergency"
)

// typeSpec binds a type to its duration class and daily quota.
type typeSpec struct {
	duration time.Duration
	quota    int
}

// typeSpecs is the single source of truth for appointment type configuration.
var typeSpecs = map[Type]typeSpec{
	TypeDocumentSubmission: {duration: 30 * time.Minute, quota: 24},
	TypeDocumentCollection: {duration: 15 * time.Minute, quota: 40},
	TypeInterview:          {duration: 45 * time.Minute, quota: 12},
	TypeCeremony:           {duration: 60 * time.Minute, quota: 4},
	TypeEmergency:          {duration: 20 * time.Minute, quota: 6},
}

// ParseType constructs a Type from external input.
func ParseType(s string) (Type, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "appointment type cannot be empty")
	}
	t := Type(s)
	if _, ok := typeSpecs[t]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown appointment type %q", s)
	}
	return t, nil
}

// Duration returns the fixed slot duration for the type.
func (t Type) Duration() time.Duration {
	return typeSpecs[t].duration
}

// DailyQuota returns the maximum slots of this duration class bookable per
// organization per day.
func (t Type) DailyQuota() int {
	return typeSpecs[t].quota
}

// IsValid checks if the type is one of the supported enum values.
func (t Type) IsValid() bool {
	_, ok := typeSpecs[t]
	return ok
}

func (t Type) String() string {
	return string(t)
}

// Slot is a candidate bookable interval in UTC. Transient: never persisted
// until converted into an Appointment. Always End = Start + type duration.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports half-open interval overlap with other; back-to-back slots
// do not overlap.
func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End) && s.End.After(other.Start)
}

// Status is the lifecycle state of an appointment.
type Status string

const (
	// StatusConfirmed is the initial state on successful booking.
	StatusConfirmed Status = "confirmed"
	// Terminal states. Cancellation is a status, not a removal: appointments
	// are never deleted.
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
	StatusMissed      Status = "missed"
	StatusRescheduled Status = "rescheduled"
)

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusMissed, StatusRescheduled:
		return st, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown appointment status %q", s)
}

// transitions is the explicit edge set of the appointment state machine.
// Everything not listed is rejected.
var transitions = map[Status]map[Status]bool{
	StatusConfirmed: {
		StatusCancelled:   true,
		StatusCompleted:   true,
		StatusMissed:      true,
		StatusRescheduled: true,
	},
}

// CanTransition reports whether the edge from → to is permitted.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Blocks reports whether an appointment in this status still occupies its
// slot. Cancelled and superseded appointments free the interval.
func (s Status) Blocks() bool {
	return s != StatusCancelled && s != StatusRescheduled
}

func (s Status) String() string {
	return string(s)
}

// Appointment is the persisted booking entity.
type Appointment struct {
	ID              id.AppointmentID
	Organization    id.OrganizationID
	Country         id.CountryCode
	Request         id.ServiceRequestID // nil UUID when standalone
	Attendee        id.ActorID
	AssignedAgent   id.ActorID // nil UUID until an agent picks it up
	Type            Type
	Status          Status
	Start           time.Time // UTC
	End             time.Time // UTC
	Instructions    string
	CancelReason    string
	RescheduledFrom *time.Time // prior start time, audit lineage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Slot returns the interval the appointment occupies.
func (a *Appointment) Slot() Slot {
	return Slot{Start: a.Start, End: a.End}
}

// Transition validates and applies a status change in place. It returns
// CodeInvalidTransition with a human-readable reason when the edge is not
// permitted; cancellation additionally requires a reason.
func (a *Appointment) Transition(to Status, now time.Time) error {
	if !CanTransition(a.Status, to) {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"appointment cannot move from %s to %s", a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = now
	return nil
}
