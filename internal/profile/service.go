package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
	"consular/pkg/platform/sentinel"
	"consular/pkg/requestcontext"
)

// Service manages applicant profiles and their document validation state.
type Service struct {
	store  Store
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a profile service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// PersonalInput carries the personal fields of a profile.
type PersonalInput struct {
	FullName    string
	DateOfBirth string
	Nationality id.CountryCode
	Email       string
	Phone       string
	Address     string
}

// Create opens a profile for the actor. One profile per actor.
func (s *Service) Create(ctx context.Context, actor id.ActorID, in PersonalInput) (*Profile, error) {
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "actor is required")
	}
	if _, err := s.store.FindByActor(ctx, actor); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "actor already has a profile")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("check existing profile: %w", err)
	}

	now := requestcontext.Now(ctx)
	p := &Profile{
		ID:          id.NewProfileID(),
		Actor:       actor,
		FullName:    in.FullName,
		DateOfBirth: in.DateOfBirth,
		Nationality: in.Nationality,
		Email:       in.Email,
		Phone:       in.Phone,
		Address:     in.Address,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

// Update replaces the personal fields of the profile.
func (s *Service) Update(ctx context.Context, profileID id.ProfileID, in PersonalInput) (*Profile, error) {
	p, err := s.find(ctx, profileID)
	if err != nil {
		return nil, err
	}

	p.FullName = in.FullName
	p.DateOfBirth = in.DateOfBirth
	p.Nationality = in.Nationality
	p.Email = in.Email
	p.Phone = in.Phone
	p.Address = in.Address
	p.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

// Get returns one profile by ID.
func (s *Service) Get(ctx context.Context, profileID id.ProfileID) (*Profile, error) {
	return s.find(ctx, profileID)
}

// GetByActor returns the actor's profile.
func (s *Service) GetByActor(ctx context.Context, actor id.ActorID) (*Profile, error) {
	p, err := s.store.FindByActor(ctx, actor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "profile not found")
		}
		return nil, fmt.Errorf("find profile by actor: %w", err)
	}
	return p, nil
}

// AttachDocument adds or replaces a supporting document, resetting its
// validation state to pending.
func (s *Service) AttachDocument(ctx context.Context, profileID id.ProfileID, kind DocumentKind, reference string) (*Profile, error) {
	if reference == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document reference is required")
	}
	p, err := s.find(ctx, profileID)
	if err != nil {
		return nil, err
	}

	p.AttachDocument(kind, reference, requestcontext.Now(ctx))
	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

// SetDocumentStatus records an agent's validation verdict on one document.
func (s *Service) SetDocumentStatus(ctx context.Context, profileID id.ProfileID, kind DocumentKind, status DocumentStatus) (*Profile, error) {
	if status != DocumentValidated && status != DocumentRejected {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "cannot set document status to %q", status)
	}
	p, err := s.find(ctx, profileID)
	if err != nil {
		return nil, err
	}

	validatedBy := ""
	if a := requestcontext.ActorID(ctx); !a.IsNil() {
		validatedBy = a.String()
	}
	if err := p.SetDocumentStatus(kind, status, validatedBy, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

func (s *Service) find(ctx context.Context, profileID id.ProfileID) (*Profile, error) {
	if profileID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "profile id is required")
	}
	p, err := s.store.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "profile not found")
		}
		return nil, fmt.Errorf("find profile %s: %w", profileID, err)
	}
	return p, nil
}
