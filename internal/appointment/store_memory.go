package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	id "consular/pkg/domain"
	"consular/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded appointment store for tests and single-node
// deployments without Postgres.
type InMemory struct {
	mu   sync.RWMutex
	byID map[id.AppointmentID]*Appointment
}

// NewInMemory creates an empty in-memory appointment store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.AppointmentID]*Appointment)}
}

func (s *InMemory) Create(ctx context.Context, a *Appointment) error {
	if a == nil {
		return fmt.Errorf("appointment is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[a.ID]; exists {
		return fmt.Errorf("appointment %s: %w", a.ID, sentinel.ErrConflict)
	}
	if err := s.checkActiveStartLocked(a, id.AppointmentID{}); err != nil {
		return err
	}

	cp := *a
	s.byID[a.ID] = &cp
	return nil
}

// checkActiveStartLocked mirrors the Postgres partial unique index on active
// (organization_id, start_time) rows. Must be called holding s.mu. exclude
// skips one row, used by Reschedule where the superseded row is updated in
// the same critical section.
func (s *InMemory) checkActiveStartLocked(a *Appointment, exclude id.AppointmentID) error {
	if !a.Status.Blocks() {
		return nil
	}
	for _, existing := range s.byID {
		if existing.ID == a.ID || existing.ID == exclude || !existing.Status.Blocks() {
			continue
		}
		if existing.Organization == a.Organization && existing.Start.Equal(a.Start) {
			return fmt.Errorf("active appointment already starts at %s: %w",
				a.Start.Format(time.RFC3339), sentinel.ErrConflict)
		}
	}
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, apptID id.AppointmentID) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[apptID]
	if !ok {
		return nil, fmt.Errorf("appointment %s: %w", apptID, sentinel.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *InMemory) ListOverlapping(ctx context.Context, org id.OrganizationID, from, to time.Time) ([]*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Appointment
	for _, a := range s.byID {
		if a.Organization != org {
			continue
		}
		if a.Start.Before(to) && a.End.After(from) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *InMemory) ListByAttendee(ctx context.Context, attendee id.ActorID) ([]*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Appointment
	for _, a := range s.byID {
		if a.Attendee == attendee {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *InMemory) ListByRequest(ctx context.Context, request id.ServiceRequestID) ([]*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Appointment
	for _, a := range s.byID {
		if a.Request == request {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *InMemory) Update(ctx context.Context, a *Appointment) error {
	if a == nil {
		return fmt.Errorf("appointment is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; !ok {
		return fmt.Errorf("appointment %s: %w", a.ID, sentinel.ErrNotFound)
	}
	cp := *a
	s.byID[a.ID] = &cp
	return nil
}

func (s *InMemory) Reschedule(ctx context.Context, old *Appointment, replacement *Appointment) error {
	if old == nil || replacement == nil {
		return fmt.Errorf("both appointments are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[old.ID]; !ok {
		return fmt.Errorf("appointment %s: %w", old.ID, sentinel.ErrNotFound)
	}
	if _, exists := s.byID[replacement.ID]; exists {
		return fmt.Errorf("appointment %s: %w", replacement.ID, sentinel.ErrConflict)
	}
	if err := s.checkActiveStartLocked(replacement, old.ID); err != nil {
		return err
	}

	// Single critical section: both effects land together.
	oldCp := *old
	newCp := *replacement
	s.byID[old.ID] = &oldCp
	s.byID[replacement.ID] = &newCp
	return nil
}

func sortByStart(items []*Appointment) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Start.Before(items[j].Start)
	})
}
