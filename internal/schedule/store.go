package schedule

import (
	"context"

	id "consular/pkg/domain"
)

// Store persists country schedule configurations. Interface-driven so the
// resolver stays testable and persistence can be swapped without rewiring
// business code.
type Store interface {
	// Save validates and upserts the configuration for its
	// (organization, country) pair.
	Save(ctx context.Context, cfg *CountryScheduleConfig) error
	// Find returns the configuration, or sentinel.ErrNotFound (wrapped) when
	// the organization has no configuration for the country.
	Find(ctx context.Context, org id.OrganizationID, country id.CountryCode) (*CountryScheduleConfig, error)
	// ListCountries returns the countries an organization is configured for.
	ListCountries(ctx context.Context, org id.OrganizationID) ([]id.CountryCode, error)
}
