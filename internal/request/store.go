package request

import (
	"context"

	id "consular/pkg/domain"
)

// Store persists service requests. Requests are never deleted.
type Store interface {
	Create(ctx context.Context, r *ServiceRequest) error
	// FindByID returns the request, or sentinel.ErrNotFound (wrapped).
	FindByID(ctx context.Context, reqID id.ServiceRequestID) (*ServiceRequest, error)
	ListByApplicant(ctx context.Context, applicant id.ActorID) ([]*ServiceRequest, error)
	ListByStatus(ctx context.Context, org id.OrganizationID, status Status) ([]*ServiceRequest, error)
	// Update persists a status mutation and its appended history entry.
	Update(ctx context.Context, r *ServiceRequest) error
}
