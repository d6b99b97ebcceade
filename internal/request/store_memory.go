package request

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "consular/pkg/domain"
	"consular/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded request store for tests and single-node
// deployments without Postgres.
type InMemory struct {
	mu   sync.RWMutex
	byID map[id.ServiceRequestID]*ServiceRequest
}

// NewInMemory creates an empty in-memory request store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.ServiceRequestID]*ServiceRequest)}
}

func (s *InMemory) Create(ctx context.Context, r *ServiceRequest) error {
	if r == nil {
		return fmt.Errorf("service request is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[r.ID]; exists {
		return fmt.Errorf("service request %s: %w", r.ID, sentinel.ErrConflict)
	}
	s.byID[r.ID] = cloneRequest(r)
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, reqID id.ServiceRequestID) (*ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[reqID]
	if !ok {
		return nil, fmt.Errorf("service request %s: %w", reqID, sentinel.ErrNotFound)
	}
	return cloneRequest(r), nil
}

func (s *InMemory) ListByApplicant(ctx context.Context, applicant id.ActorID) ([]*ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ServiceRequest
	for _, r := range s.byID {
		if r.Applicant == applicant {
			out = append(out, cloneRequest(r))
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemory) ListByStatus(ctx context.Context, org id.OrganizationID, status Status) ([]*ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ServiceRequest
	for _, r := range s.byID {
		if r.Organization == org && r.Status == status {
			out = append(out, cloneRequest(r))
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, r *ServiceRequest) error {
	if r == nil {
		return fmt.Errorf("service request is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; !ok {
		return fmt.Errorf("service request %s: %w", r.ID, sentinel.ErrNotFound)
	}
	s.byID[r.ID] = cloneRequest(r)
	return nil
}

func cloneRequest(r *ServiceRequest) *ServiceRequest {
	cp := *r
	cp.History = append([]StatusChange(nil), r.History...)
	return &cp
}

func sortByCreation(items []*ServiceRequest) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
