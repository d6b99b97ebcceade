package profile

import (
	"context"

	id "consular/pkg/domain"
)

// Store persists applicant profiles.
type Store interface {
	// Save upserts the profile.
	Save(ctx context.Context, p *Profile) error
	// FindByID returns the profile, or sentinel.ErrNotFound (wrapped).
	FindByID(ctx context.Context, profileID id.ProfileID) (*Profile, error)
	// FindByActor returns the profile owned by the actor, or
	// sentinel.ErrNotFound (wrapped).
	FindByActor(ctx context.Context, actor id.ActorID) (*Profile, error)
}
