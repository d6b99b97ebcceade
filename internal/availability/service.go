package availability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"consular/internal/appointment"
	"consular/internal/platform/metrics"
	"consular/internal/schedule"
	id "consular/pkg/domain"
)

// BookedLister is the slice of the appointment store this service reads.
type BookedLister interface {
	ListOverlapping(ctx context.Context, org id.OrganizationID, from, to time.Time) ([]*appointment.Appointment, error)
}

// Service computes available slots for an organization, country and date.
// Computation is read-only and safe to run unsynchronized; concurrent
// identical queries are collapsed through singleflight.
type Service struct {
	resolver *schedule.Resolver
	booked   BookedLister
	cache    Cache
	metrics  *metrics.Metrics
	logger   *slog.Logger
	group    singleflight.Group
}

// Option configures the Service.
type Option func(*Service)

// WithCache enables the availability cache.
func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics enables metrics collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates an availability service.
func New(resolver *schedule.Resolver, booked BookedLister, opts ...Option) (*Service, error) {
	if resolver == nil {
		return nil, fmt.Errorf("schedule resolver is required")
	}
	if booked == nil {
		return nil, fmt.Errorf("appointment lister is required")
	}
	svc := &Service{resolver: resolver, booked: booked}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// GetAvailableSlots returns the free slots for the given local calendar date.
//
// The date is interpreted in the organization's configured time zone; the
// returned slot instants are UTC. Closed days and missing configuration yield
// an empty result, never an error.
func (s *Service) GetAvailableSlots(ctx context.Context, org id.OrganizationID, country id.CountryCode, date schedule.Date, typ appointment.Type) ([]appointment.Slot, error) {
	if !typ.IsValid() {
		return nil, fmt.Errorf("unknown appointment type %q", typ)
	}

	key := CacheKey(org, country, date, typ)
	if s.cache != nil {
		if slots, ok := s.cache.Get(ctx, key); ok {
			if s.metrics != nil {
				s.metrics.AvailabilityCacheHit.Inc()
			}
			return slots, nil
		}
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		return s.compute(ctx, org, country, date, typ)
	})
	if err != nil {
		return nil, err
	}
	slots := result.([]appointment.Slot)

	if s.cache != nil {
		s.cache.Set(ctx, key, slots)
	}
	return slots, nil
}

func (s *Service) compute(ctx context.Context, org id.OrganizationID, country id.CountryCode, date schedule.Date, typ appointment.Type) ([]appointment.Slot, error) {
	day, err := s.resolver.ResolveDay(ctx, org, country, date)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SlotsComputed.Inc()
	}
	if !day.Open {
		return []appointment.Slot{}, nil
	}

	candidates := Generate(day, typ)
	if len(candidates) == 0 {
		return []appointment.Slot{}, nil
	}

	dayStart := date.At(schedule.TimeOfDay{}, day.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)
	booked, err := s.booked.ListOverlapping(ctx, org, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return nil, fmt.Errorf("list booked appointments: %w", err)
	}

	free := FilterBooked(candidates, booked)
	if free == nil {
		free = []appointment.Slot{}
	}
	return free, nil
}

// Invalidate drops cached availability for every appointment type on the
// given organization, country and date. Called after a booking commit
// consumes a slot.
func (s *Service) Invalidate(ctx context.Context, org id.OrganizationID, country id.CountryCode, date schedule.Date) {
	if s.cache == nil {
		return
	}
	types := []appointment.Type{
		appointment.TypeDocumentSubmission,
		appointment.TypeDocumentCollection,
		appointment.TypeInterview,
		appointment.TypeCeremony,
		appointment.TypeEmergency,
	}
	keys := make([]string, 0, len(types))
	for _, typ := range types {
		keys = append(keys, CacheKey(org, country, date, typ))
	}
	s.cache.Delete(ctx, keys...)
}
