package schedule

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	id "consular/pkg/domain"
)

// CachingStore decorates a Store with an LRU cache of configurations.
// Schedule configs change rarely and are read on every availability request,
// so cached reads keep the hot path off the database. Writes go through to
// the backing store and refresh the cached entry.
type CachingStore struct {
	backing Store
	cache   *lru.Cache[configKey, *CountryScheduleConfig]
}

// NewCaching wraps backing with an LRU cache of the given size.
func NewCaching(backing Store, size int) (*CachingStore, error) {
	cache, err := lru.New[configKey, *CountryScheduleConfig](size)
	if err != nil {
		return nil, err
	}
	return &CachingStore{backing: backing, cache: cache}, nil
}

func (s *CachingStore) Save(ctx context.Context, cfg *CountryScheduleConfig) error {
	if err := s.backing.Save(ctx, cfg); err != nil {
		return err
	}
	cp := *cfg
	s.cache.Add(configKey{org: cfg.Organization, country: cfg.Country}, &cp)
	return nil
}

func (s *CachingStore) Find(ctx context.Context, org id.OrganizationID, country id.CountryCode) (*CountryScheduleConfig, error) {
	key := configKey{org: org, country: country}
	if cfg, ok := s.cache.Get(key); ok {
		cp := *cfg
		return &cp, nil
	}

	// Absence is not cached: a config created moments later must be visible
	// on the next read.
	cfg, err := s.backing.Find(ctx, org, country)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, cfg)
	cp := *cfg
	return &cp, nil
}

func (s *CachingStore) ListCountries(ctx context.Context, org id.OrganizationID) ([]id.CountryCode, error) {
	return s.backing.ListCountries(ctx, org)
}
