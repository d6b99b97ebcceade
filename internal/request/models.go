// Package request holds the service request aggregate: a citizen's
// application for a consular service and the workflow state machine that
// moves it from draft to completion.
package request

import (
	"time"

	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
)

// Kind is the consular service being requested.
type Kind string

const (
	KindPassportIssuance Kind = "passport_issuance"
	KindPassportRenewal  Kind = "passport_renewal"
	KindNationalID       Kind = "national_id"
	KindCivilRegistry    Kind = "civil_registry"
)

var validKinds = map[Kind]bool{
	KindPassportIssuance: true,
	KindPassportRenewal:  true,
	KindNationalID:       true,
	KindCivilRegistry:    true,
}

// ParseKind constructs a Kind from external input.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !validKinds[k] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown service kind %q", s)
	}
	return k, nil
}

func (k Kind) String() string {
	return string(k)
}

// Status is the workflow state of a service request.
type Status string

const (
	StatusDraft                Status = "draft"
	StatusSubmitted            Status = "submitted"
	StatusPendingCompletion    Status = "pending_completion"
	StatusValidated            Status = "validated"
	StatusCardInProduction     Status = "card_in_production"
	StatusReadyForPickup       Status = "ready_for_pickup"
	StatusAppointmentScheduled Status = "appointment_scheduled"
	StatusCompleted            Status = "completed"
	StatusRejected             Status = "rejected"
)

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusDraft, StatusSubmitted, StatusPendingCompletion, StatusValidated,
		StatusCardInProduction, StatusReadyForPickup, StatusAppointmentScheduled,
		StatusCompleted, StatusRejected:
		return st, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown request status %q", s)
}

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the request can never change state again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// StatusChange is one audit entry of the request's workflow history.
type StatusChange struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Actor  string    `json:"actor,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// ServiceRequest is the persisted application entity. Requests are never
// deleted; rejection and completion are statuses.
type ServiceRequest struct {
	ID           id.ServiceRequestID
	Organization id.OrganizationID
	Country      id.CountryCode
	Applicant    id.ActorID
	Profile      id.ProfileID
	Kind         Kind
	Status       Status
	RejectReason string
	History      []StatusChange
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Apply records a permitted status change with its audit entry. Callers must
// have evaluated the transition through the machine first.
func (r *ServiceRequest) Apply(to Status, actor, reason string, now time.Time) {
	r.History = append(r.History, StatusChange{
		From:   r.Status,
		To:     to,
		Actor:  actor,
		Reason: reason,
		At:     now,
	})
	r.Status = to
	r.UpdatedAt = now
}
