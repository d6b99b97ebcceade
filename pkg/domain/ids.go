// Package domain holds shared value objects: typed identifiers and country
// codes. Typed IDs prevent cross-entity assignment at compile time; construct
// them via the Parse functions at trust boundaries so invalid or nil UUIDs
// never enter the system.
package domain

import (
	"github.com/google/uuid"

	dErrors "consular/pkg/domain-errors"
)

// Typed identifiers for the portal's aggregates.
type (
	OrganizationID   uuid.UUID
	AppointmentID    uuid.UUID
	ServiceRequestID uuid.UUID
	ProfileID        uuid.UUID
	ActorID          uuid.UUID
)

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

// ParseOrganizationID constructs an OrganizationID from external input.
func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID(s)
	return OrganizationID(u), err
}

// ParseAppointmentID constructs an AppointmentID from external input.
func ParseAppointmentID(s string) (AppointmentID, error) {
	u, err := parseUUID(s)
	return AppointmentID(u), err
}

// ParseServiceRequestID constructs a ServiceRequestID from external input.
func ParseServiceRequestID(s string) (ServiceRequestID, error) {
	u, err := parseUUID(s)
	return ServiceRequestID(u), err
}

// ParseProfileID constructs a ProfileID from external input.
func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID(s)
	return ProfileID(u), err
}

// ParseActorID constructs an ActorID from external input.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s)
	return ActorID(u), err
}

func (id OrganizationID) String() string   { return uuid.UUID(id).String() }
func (id AppointmentID) String() string    { return uuid.UUID(id).String() }
func (id ServiceRequestID) String() string { return uuid.UUID(id).String() }
func (id ProfileID) String() string        { return uuid.UUID(id).String() }
func (id ActorID) String() string          { return uuid.UUID(id).String() }

func (id OrganizationID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AppointmentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ServiceRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }

// NewOrganizationID generates a fresh organization identifier.
func NewOrganizationID() OrganizationID { return OrganizationID(uuid.New()) }

// NewAppointmentID generates a fresh appointment identifier.
func NewAppointmentID() AppointmentID { return AppointmentID(uuid.New()) }

// NewServiceRequestID generates a fresh service request identifier.
func NewServiceRequestID() ServiceRequestID { return ServiceRequestID(uuid.New()) }

// NewProfileID generates a fresh profile identifier.
func NewProfileID() ProfileID { return ProfileID(uuid.New()) }

// NewActorID generates a fresh actor identifier.
func NewActorID() ActorID { return ActorID(uuid.New()) }
