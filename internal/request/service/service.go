// Package service implements the service request workflow: creating
// applications and moving them through the gated state machine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"consular/internal/appointment"
	"consular/internal/notify"
	"consular/internal/platform/metrics"
	"consular/internal/profile"
	"consular/internal/request"
	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
	"consular/pkg/platform/sentinel"
	"consular/pkg/requestcontext"
)

// AppointmentLister is the slice of the appointment store this service reads
// to establish pickup facts.
type AppointmentLister interface {
	ListByRequest(ctx context.Context, reqID id.ServiceRequestID) ([]*appointment.Appointment, error)
}

// Service orchestrates the service request workflow. Transition gates are
// evaluated against live profile and appointment state at decision time.
type Service struct {
	store        request.Store
	profiles     profile.Store
	appointments AppointmentLister
	notifier     notify.Notifier
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithNotifier sets the lifecycle event channel.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics enables metrics collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a request workflow service.
func New(store request.Store, profiles profile.Store, appointments AppointmentLister, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("request store is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if appointments == nil {
		return nil, fmt.Errorf("appointment lister is required")
	}
	svc := &Service{
		store:        store,
		profiles:     profiles,
		appointments: appointments,
		notifier:     notify.Nop{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateInput carries a new application.
type CreateInput struct {
	Organization id.OrganizationID
	Country      id.CountryCode
	Applicant    id.ActorID
	Profile      id.ProfileID
	Kind         request.Kind
}

// Create opens a new service request in Draft. The referenced profile must
// exist and belong to the applicant.
func (s *Service) Create(ctx context.Context, in CreateInput) (*request.ServiceRequest, error) {
	if in.Organization.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organization is required")
	}
	if in.Applicant.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "applicant is required")
	}
	if _, err := request.ParseKind(in.Kind.String()); err != nil {
		return nil, err
	}

	prof, err := s.profiles.FindByID(ctx, in.Profile)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "profile not found")
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	if prof.Actor != in.Applicant {
		return nil, dErrors.New(dErrors.CodeForbidden, "profile does not belong to the applicant")
	}

	now := requestcontext.Now(ctx)
	req := &request.ServiceRequest{
		ID:           id.NewServiceRequestID(),
		Organization: in.Organization,
		Country:      in.Country,
		Applicant:    in.Applicant,
		Profile:      in.Profile,
		Kind:         in.Kind,
		Status:       request.StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create service request: %w", err)
	}
	return req, nil
}

// Get returns one service request by ID.
func (s *Service) Get(ctx context.Context, reqID id.ServiceRequestID) (*request.ServiceRequest, error) {
	return s.find(ctx, reqID)
}

// ListByApplicant returns the applicant's requests, oldest first.
func (s *Service) ListByApplicant(ctx context.Context, applicant id.ActorID) ([]*request.ServiceRequest, error) {
	if applicant.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "applicant is required")
	}
	reqs, err := s.store.ListByApplicant(ctx, applicant)
	if err != nil {
		return nil, fmt.Errorf("list requests by applicant: %w", err)
	}
	if reqs == nil {
		reqs = []*request.ServiceRequest{}
	}
	return reqs, nil
}

// ListByStatus returns an organization's requests in the given status,
// oldest first. Used by agent work queues.
func (s *Service) ListByStatus(ctx context.Context, org id.OrganizationID, status request.Status) ([]*request.ServiceRequest, error) {
	if org.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "organization is required")
	}
	if _, err := request.ParseStatus(status.String()); err != nil {
		return nil, err
	}
	reqs, err := s.store.ListByStatus(ctx, org, status)
	if err != nil {
		return nil, fmt.Errorf("list requests by status: %w", err)
	}
	if reqs == nil {
		reqs = []*request.ServiceRequest{}
	}
	return reqs, nil
}

// CanTransition evaluates one workflow edge without applying it, returning
// the decision and its reason. Unknown edges come back denied, not as errors.
func (s *Service) CanTransition(ctx context.Context, reqID id.ServiceRequestID, to request.Status) (request.Decision, error) {
	req, err := s.find(ctx, reqID)
	if err != nil {
		return request.Decision{}, err
	}
	facts, err := s.gatherFacts(ctx, req, to)
	if err != nil {
		return request.Decision{}, err
	}
	return request.Evaluate(req.Status, to, facts), nil
}

// Transition applies one workflow edge. The gate is re-evaluated against
// live state; a denied edge returns CodeInvalidTransition carrying the
// gate's reason. Rejection requires a reason, recorded on the request.
func (s *Service) Transition(ctx context.Context, reqID id.ServiceRequestID, to request.Status, reason string) (*request.ServiceRequest, error) {
	if _, err := request.ParseStatus(to.String()); err != nil {
		return nil, err
	}
	if to == request.StatusRejected && reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}

	req, err := s.find(ctx, reqID)
	if err != nil {
		return nil, err
	}

	facts, err := s.gatherFacts(ctx, req, to)
	if err != nil {
		return nil, err
	}
	decision := request.Evaluate(req.Status, to, facts)
	if !decision.Allowed {
		if s.metrics != nil {
			s.metrics.TransitionsRejected.Inc()
		}
		return nil, dErrors.New(dErrors.CodeInvalidTransition, decision.Reason)
	}

	now := requestcontext.Now(ctx)
	actor := ""
	if a := requestcontext.ActorID(ctx); !a.IsNil() {
		actor = a.String()
	}
	from := req.Status
	req.Apply(to, actor, reason, now)
	if to == request.StatusRejected {
		req.RejectReason = reason
	}

	if err := s.store.Update(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "service request not found")
		}
		return nil, fmt.Errorf("update service request: %w", err)
	}

	s.notifier.Notify(ctx, notify.Event{
		Kind:       notify.KindRequestStatusChanged,
		Subject:    req.ID.String(),
		OccurredAt: now,
		Attributes: map[string]string{
			"organization_id": req.Organization.String(),
			"from":            from.String(),
			"to":              to.String(),
			"kind":            req.Kind.String(),
		},
	})
	return req, nil
}

// AvailableTransitions lists the statuses reachable from the request's
// current state, regardless of whether their gates currently hold.
func (s *Service) AvailableTransitions(ctx context.Context, reqID id.ServiceRequestID) ([]request.Status, error) {
	req, err := s.find(ctx, reqID)
	if err != nil {
		return nil, err
	}
	next := request.NextStatuses(req.Status)
	if next == nil {
		next = []request.Status{}
	}
	return next, nil
}

// gatherFacts assembles the external state the target edge's gate reads.
// Only the facts the edge can depend on are fetched.
func (s *Service) gatherFacts(ctx context.Context, req *request.ServiceRequest, to request.Status) (request.Facts, error) {
	var facts request.Facts

	switch to {
	case request.StatusSubmitted, request.StatusValidated:
		prof, err := s.profiles.FindByID(ctx, req.Profile)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// A vanished profile fails every profile gate, it does not
				// fail the evaluation itself.
				return facts, nil
			}
			return facts, fmt.Errorf("find profile: %w", err)
		}
		facts.ProfileCompletion = prof.Completion()
		facts.DocumentsValidated = prof.DocumentsValidated()

	case request.StatusCompleted:
		appts, err := s.appointments.ListByRequest(ctx, req.ID)
		if err != nil {
			return facts, fmt.Errorf("list request appointments: %w", err)
		}
		for _, a := range appts {
			if a.Type == appointment.TypeDocumentCollection && a.Status == appointment.StatusCompleted {
				facts.PickupCompleted = true
			}
		}
	}

	return facts, nil
}

func (s *Service) find(ctx context.Context, reqID id.ServiceRequestID) (*request.ServiceRequest, error) {
	if reqID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "request id is required")
	}
	req, err := s.store.FindByID(ctx, reqID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "service request not found")
		}
		return nil, fmt.Errorf("find service request %s: %w", reqID, err)
	}
	return req, nil
}
