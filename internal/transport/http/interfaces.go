// Package httptransport exposes the scheduling engine over HTTP: one chi
// subrouter per domain behind the shared middleware chain.
package httptransport

import (
	"context"
	"time"

	"consular/internal/appointment"
	apptservice "consular/internal/appointment/service"
	"consular/internal/profile"
	"consular/internal/request"
	reqservice "consular/internal/request/service"
	"consular/internal/schedule"
	id "consular/pkg/domain"
)

//go:generate mockgen -destination=mocks/services.go -package=mocks consular/internal/transport/http AppointmentService,AvailabilityService

// AppointmentService is the booking surface the appointment handler drives.
type AppointmentService interface {
	Book(ctx context.Context, in apptservice.BookInput) (*appointment.Appointment, error)
	Get(ctx context.Context, apptID id.AppointmentID) (*appointment.Appointment, error)
	Cancel(ctx context.Context, apptID id.AppointmentID, reason string) (*appointment.Appointment, error)
	Complete(ctx context.Context, apptID id.AppointmentID) (*appointment.Appointment, error)
	MarkMissed(ctx context.Context, apptID id.AppointmentID) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, apptID id.AppointmentID, newStart time.Time) (*appointment.Appointment, error)
	ListByAttendee(ctx context.Context, attendee id.ActorID) ([]*appointment.Appointment, error)
	ListByRequest(ctx context.Context, reqID id.ServiceRequestID) ([]*appointment.Appointment, error)
}

// AvailabilityService computes free slots.
type AvailabilityService interface {
	GetAvailableSlots(ctx context.Context, org id.OrganizationID, country id.CountryCode, date schedule.Date, typ appointment.Type) ([]appointment.Slot, error)
}

// ScheduleStore is the calendar configuration surface of the admin handler.
type ScheduleStore interface {
	Save(ctx context.Context, cfg *schedule.CountryScheduleConfig) error
	Find(ctx context.Context, org id.OrganizationID, country id.CountryCode) (*schedule.CountryScheduleConfig, error)
	ListCountries(ctx context.Context, org id.OrganizationID) ([]id.CountryCode, error)
}

// RequestService is the workflow surface the request handler drives.
type RequestService interface {
	Create(ctx context.Context, in reqservice.CreateInput) (*request.ServiceRequest, error)
	Get(ctx context.Context, reqID id.ServiceRequestID) (*request.ServiceRequest, error)
	ListByApplicant(ctx context.Context, applicant id.ActorID) ([]*request.ServiceRequest, error)
	ListByStatus(ctx context.Context, org id.OrganizationID, status request.Status) ([]*request.ServiceRequest, error)
	Transition(ctx context.Context, reqID id.ServiceRequestID, to request.Status, reason string) (*request.ServiceRequest, error)
	CanTransition(ctx context.Context, reqID id.ServiceRequestID, to request.Status) (request.Decision, error)
	AvailableTransitions(ctx context.Context, reqID id.ServiceRequestID) ([]request.Status, error)
}

// ProfileService manages applicant profiles.
type ProfileService interface {
	Create(ctx context.Context, actor id.ActorID, in profile.PersonalInput) (*profile.Profile, error)
	Update(ctx context.Context, profileID id.ProfileID, in profile.PersonalInput) (*profile.Profile, error)
	Get(ctx context.Context, profileID id.ProfileID) (*profile.Profile, error)
	GetByActor(ctx context.Context, actor id.ActorID) (*profile.Profile, error)
	AttachDocument(ctx context.Context, profileID id.ProfileID, kind profile.DocumentKind, reference string) (*profile.Profile, error)
	SetDocumentStatus(ctx context.Context, profileID id.ProfileID, kind profile.DocumentKind, status profile.DocumentStatus) (*profile.Profile, error)
}
