package schedule

import (
	"context"
	"fmt"
	"sync"

	id "consular/pkg/domain"
	"consular/pkg/platform/sentinel"
)

type configKey struct {
	org     id.OrganizationID
	country id.CountryCode
}

// InMemory is a mutex-guarded map store used in tests and single-node
// deployments without Postgres.
type InMemory struct {
	mu      sync.RWMutex
	configs map[configKey]*CountryScheduleConfig
}

// NewInMemory creates an empty in-memory schedule store.
func NewInMemory() *InMemory {
	return &InMemory{configs: make(map[configKey]*CountryScheduleConfig)}
}

func (s *InMemory) Save(ctx context.Context, cfg *CountryScheduleConfig) error {
	if cfg == nil {
		return fmt.Errorf("schedule config is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	s.configs[configKey{org: cfg.Organization, country: cfg.Country}] = &cp
	return nil
}

func (s *InMemory) Find(ctx context.Context, org id.OrganizationID, country id.CountryCode) (*CountryScheduleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[configKey{org: org, country: country}]
	if !ok {
		return nil, fmt.Errorf("schedule config %s/%s: %w", org, country, sentinel.ErrNotFound)
	}
	cp := *cfg
	return &cp, nil
}

func (s *InMemory) ListCountries(ctx context.Context, org id.OrganizationID) ([]id.CountryCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var countries []id.CountryCode
	for key := range s.configs {
		if key.org == org {
			countries = append(countries, key.country)
		}
	}
	return countries, nil
}
