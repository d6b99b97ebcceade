package profile

import (
	"context"
	"fmt"
	"sync"

	id "consular/pkg/domain"
	"consular/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded profile store for tests and single-node
// deployments without Postgres.
type InMemory struct {
	mu   sync.RWMutex
	byID map[id.ProfileID]*Profile
}

// NewInMemory creates an empty in-memory profile store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.ProfileID]*Profile)}
}

func (s *InMemory) Save(ctx context.Context, p *Profile) error {
	if p == nil {
		return fmt.Errorf("profile is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := clone(p)
	s.byID[p.ID] = cp
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, profileID id.ProfileID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[profileID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	return clone(p), nil
}

func (s *InMemory) FindByActor(ctx context.Context, actor id.ActorID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.byID {
		if p.Actor == actor {
			return clone(p), nil
		}
	}
	return nil, fmt.Errorf("profile for actor %s: %w", actor, sentinel.ErrNotFound)
}

// clone deep-copies a profile so callers cannot mutate stored state through
// the shared documents slice.
func clone(p *Profile) *Profile {
	cp := *p
	cp.Documents = append([]Document(nil), p.Documents...)
	return &cp
}
