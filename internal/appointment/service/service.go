// Package service implements the appointment booking workflow: commit-time
// conflict checking under a per-day lock, lifecycle transitions, and atomic
// rescheduling.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"consular/internal/appointment"
	"consular/internal/appointment/daylock"
	"consular/internal/availability"
	"consular/internal/notify"
	"consular/internal/platform/metrics"
	"consular/internal/schedule"
	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
	"consular/pkg/platform/sentinel"
	"consular/pkg/requestcontext"
)

// AvailabilityCache invalidates cached availability after a write consumed or
// freed a slot. Invalidation is best-effort: cached entries self-expire and
// the conflict guard corrects stale offers at commit time.
type AvailabilityCache interface {
	Invalidate(ctx context.Context, org id.OrganizationID, country id.CountryCode, date schedule.Date)
}

// Service orchestrates appointment booking and lifecycle changes.
//
// Availability reads stay unsynchronized; only the commit path takes the
// per-(organization, day) lock, re-checks conflicts against current store
// state, and inserts. The store's active-start uniqueness constraint is the
// backstop when multiple instances share a database.
type Service struct {
	store    appointment.Store
	resolver *schedule.Resolver
	locks    *daylock.Keyed
	notifier notify.Notifier
	cache    AvailabilityCache
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithNotifier sets the lifecycle event channel.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAvailabilityCache wires cache invalidation into booking writes.
func WithAvailabilityCache(cache AvailabilityCache) Option {
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

// New creates an appointment service.
func New(store appointment.Store, resolver *schedule.Resolver, locks *daylock.Keyed, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("appointment store is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("schedule resolver is required")
	}
	if locks == nil {
		return nil, fmt.Errorf("day lock registry is required")
	}
	svc := &Service{
		store:    store,
		resolver: resolver,
		locks:    locks,
		notifier: notify.Nop{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// BookInput carries a booking attempt. Request is optional: a nil UUID books
// a standalone appointment not tied to a service request.
type BookInput struct {
	Organization id.OrganizationID
	Country      id.CountryCode
	Request      id.ServiceRequestID
	Attendee     id.ActorID
	Type         appointment.Type
	Start        time.Time
	Instructions string
}

func (in BookInput) validate(now time.Time) error {
	if in.Organization.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "organization is required")
	}
	if in.Attendee.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "attendee is required")
	}
	if !in.Type.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown appointment type %q", in.Type)
	}
	if in.Start.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "start time is required")
	}
	if !in.Start.After(now) {
		return dErrors.New(dErrors.CodeValidation, "appointment start must be in the future")
	}
	return nil
}

// Book commits a booking for one offered slot.
//
// The candidate must match a slot the schedule actually offers for that day
// and type. The conflict check runs inside the day lock so that availability
// computed moments earlier cannot race a concurrent commit into a double
// booking. On success the appointment is Confirmed and a booked event is
// emitted.
func (s *Service) Book(ctx context.Context, in BookInput) (*appointment.Appointment, error) {
	now := requestcontext.Now(ctx)
	if err := in.validate(now); err != nil {
		return nil, err
	}

	start := in.Start.UTC()
	candidate := appointment.Slot{Start: start, End: start.Add(in.Type.Duration()).UTC()}

	day, err := s.resolver.ResolveAt(ctx, in.Organization, in.Country, start)
	if err != nil {
		return nil, err
	}
	if err := s.checkOffered(day, in.Type, candidate); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(in.Organization, start)
	defer unlock()

	if err := s.checkConflicts(ctx, in.Organization, in.Attendee, in.Type, in.Request, candidate, id.AppointmentID{}); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, day, in.Organization, in.Type, id.AppointmentID{}); err != nil {
		return nil, err
	}

	appt := &appointment.Appointment{
		ID:           id.NewAppointmentID(),
		Organization: in.Organization,
		Country:      in.Country,
		Request:      in.Request,
		Attendee:     in.Attendee,
		Type:         in.Type,
		Status:       appointment.StatusConfirmed,
		Start:        candidate.Start,
		End:          candidate.End,
		Instructions: in.Instructions,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, appt); err != nil {
		return nil, s.translateWriteError(err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentsBooked.Inc()
	}
	s.invalidateDay(ctx, in.Organization, in.Country, day.Date)
	s.notifier.Notify(ctx, s.event(notify.KindAppointmentBooked, appt, now, nil))
	return appt, nil
}

// Cancel moves a confirmed appointment to Cancelled. A reason is mandatory;
// the appointment record is retained and its slot becomes bookable again.
func (s *Service) Cancel(ctx context.Context, apptID id.AppointmentID, reason string) (*appointment.Appointment, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "cancellation reason is required")
	}

	now := requestcontext.Now(ctx)
	appt, err := s.find(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if err := appt.Transition(appointment.StatusCancelled, now); err != nil {
		return nil, err
	}
	appt.CancelReason = reason

	if err := s.store.Update(ctx, appt); err != nil {
		return nil, s.translateWriteError(err)
	}

	s.invalidateAround(ctx, appt)
	s.notifier.Notify(ctx, s.event(notify.KindAppointmentCancelled, appt, now, map[string]string{
		"reason": reason,
	}))
	return appt, nil
}

// Complete marks an appointment as attended and concluded.
func (s *Service) Complete(ctx context.Context, apptID id.AppointmentID) (*appointment.Appointment, error) {
	return s.conclude(ctx, apptID, appointment.StatusCompleted, notify.KindAppointmentCompleted)
}

// MarkMissed marks an appointment whose attendee did not show up.
func (s *Service) MarkMissed(ctx context.Context, apptID id.AppointmentID) (*appointment.Appointment, error) {
	return s.conclude(ctx, apptID, appointment.StatusMissed, notify.KindAppointmentMissed)
}

func (s *Service) conclude(ctx context.Context, apptID id.AppointmentID, to appointment.Status, kind string) (*appointment.Appointment, error) {
	now := requestcontext.Now(ctx)
	appt, err := s.find(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if err := appt.Transition(to, now); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, appt); err != nil {
		return nil, s.translateWriteError(err)
	}
	s.notifier.Notify(ctx, s.event(kind, appt, now, nil))
	return appt, nil
}

// Reschedule supersedes a confirmed appointment with a new one at the given
// start time. The old record stays as audit lineage in status Rescheduled;
// the replacement records the prior start. Both effects commit atomically.
//
// Only the new slot's day is locked: freeing the old slot cannot conflict,
// and taking one lock at a time keeps concurrent reschedules deadlock-free.
func (s *Service) Reschedule(ctx context.Context, apptID id.AppointmentID, newStart time.Time) (*appointment.Appointment, error) {
	now := requestcontext.Now(ctx)
	if newStart.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "new start time is required")
	}
	if !newStart.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "appointment start must be in the future")
	}

	old, err := s.find(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if !appointment.CanTransition(old.Status, appointment.StatusRescheduled) {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition,
			"appointment cannot move from %s to %s", old.Status, appointment.StatusRescheduled)
	}

	start := newStart.UTC()
	candidate := appointment.Slot{Start: start, End: start.Add(old.Type.Duration()).UTC()}

	day, err := s.resolver.ResolveAt(ctx, old.Organization, old.Country, start)
	if err != nil {
		return nil, err
	}
	if err := s.checkOffered(day, old.Type, candidate); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(old.Organization, start)
	defer unlock()

	if err := s.checkConflicts(ctx, old.Organization, old.Attendee, old.Type, old.Request, candidate, old.ID); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, day, old.Organization, old.Type, old.ID); err != nil {
		return nil, err
	}

	replacement := &appointment.Appointment{
		ID:              id.NewAppointmentID(),
		Organization:    old.Organization,
		Country:         old.Country,
		Request:         old.Request,
		Attendee:        old.Attendee,
		AssignedAgent:   old.AssignedAgent,
		Type:            old.Type,
		Status:          appointment.StatusConfirmed,
		Start:           candidate.Start,
		End:             candidate.End,
		Instructions:    old.Instructions,
		RescheduledFrom: ptrTime(old.Start),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	superseded := *old
	if err := superseded.Transition(appointment.StatusRescheduled, now); err != nil {
		return nil, err
	}

	if err := s.store.Reschedule(ctx, &superseded, replacement); err != nil {
		return nil, s.translateWriteError(err)
	}

	s.invalidateAround(ctx, old)
	s.invalidateDay(ctx, replacement.Organization, replacement.Country, day.Date)
	s.notifier.Notify(ctx, s.event(notify.KindAppointmentRescheduled, replacement, now, map[string]string{
		"previous_start": old.Start.Format(time.RFC3339),
	}))
	return replacement, nil
}

// Get returns one appointment by ID.
func (s *Service) Get(ctx context.Context, apptID id.AppointmentID) (*appointment.Appointment, error) {
	return s.find(ctx, apptID)
}

// ListByAttendee returns all appointments of one attendee, ordered by start.
func (s *Service) ListByAttendee(ctx context.Context, attendee id.ActorID) ([]*appointment.Appointment, error) {
	if attendee.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "attendee is required")
	}
	appts, err := s.store.ListByAttendee(ctx, attendee)
	if err != nil {
		return nil, fmt.Errorf("list appointments by attendee: %w", err)
	}
	if appts == nil {
		appts = []*appointment.Appointment{}
	}
	return appts, nil
}

// ListByRequest returns all appointments linked to one service request.
func (s *Service) ListByRequest(ctx context.Context, request id.ServiceRequestID) ([]*appointment.Appointment, error) {
	if request.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "service request is required")
	}
	appts, err := s.store.ListByRequest(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("list appointments by request: %w", err)
	}
	if appts == nil {
		appts = []*appointment.Appointment{}
	}
	return appts, nil
}

// checkOffered verifies the candidate is one of the slots the schedule
// actually generates for the day, rejecting closed days, out-of-window times
// and misaligned starts alike.
func (s *Service) checkOffered(day schedule.DaySchedule, typ appointment.Type, candidate appointment.Slot) error {
	if !day.Open {
		return dErrors.Newf(dErrors.CodeValidation, "organization is closed on %s", day.Date)
	}
	for _, offered := range availability.Generate(day, typ) {
		if offered.Start.Equal(candidate.Start) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeValidation, "start time does not match an offered slot")
}

// checkConflicts re-runs the conflict guard against current store state.
// Must be called holding the day lock. exclude skips one appointment, used by
// reschedule so the superseded booking does not conflict with its successor.
func (s *Service) checkConflicts(ctx context.Context, org id.OrganizationID, attendee id.ActorID, typ appointment.Type, request id.ServiceRequestID, candidate appointment.Slot, exclude id.AppointmentID) error {
	overlapping, err := s.store.ListOverlapping(ctx, org, candidate.Start, candidate.End)
	if err != nil {
		return fmt.Errorf("list overlapping appointments: %w", err)
	}
	overlapping = dropAppointment(overlapping, exclude)

	own, err := s.store.ListByAttendee(ctx, attendee)
	if err != nil {
		return fmt.Errorf("list attendee appointments: %w", err)
	}
	own = dropAppointment(own, exclude)

	if err := appointment.CheckConflict(candidate, overlapping, own, typ, request); err != nil {
		s.countConflict(err)
		return err
	}
	return nil
}

func dropAppointment(appts []*appointment.Appointment, exclude id.AppointmentID) []*appointment.Appointment {
	if exclude.IsNil() {
		return appts
	}
	kept := appts[:0]
	for _, a := range appts {
		if a.ID != exclude {
			kept = append(kept, a)
		}
	}
	return kept
}

// checkQuota enforces the per-type daily booking cap over committed
// appointments. Must be called holding the day lock. exclude skips one
// appointment, used by reschedule so a booking moved within its own day does
// not count itself against the cap.
func (s *Service) checkQuota(ctx context.Context, day schedule.DaySchedule, org id.OrganizationID, typ appointment.Type, exclude id.AppointmentID) error {
	dayStart := day.Date.At(schedule.TimeOfDay{}, day.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)
	existing, err := s.store.ListOverlapping(ctx, org, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return fmt.Errorf("list day appointments: %w", err)
	}

	active := 0
	for _, a := range existing {
		if a.ID == exclude {
			continue
		}
		if a.Type == typ && a.Status.Blocks() {
			active++
		}
	}
	if active >= typ.DailyQuota() {
		if s.metrics != nil {
			s.metrics.IncBookingConflict("quota")
		}
		return dErrors.Newf(dErrors.CodeOverlap,
			"daily quota for %s appointments reached on %s", typ, day.Date)
	}
	return nil
}

func (s *Service) find(ctx context.Context, apptID id.AppointmentID) (*appointment.Appointment, error) {
	if apptID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "appointment id is required")
	}
	appt, err := s.store.FindByID(ctx, apptID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "appointment not found")
		}
		return nil, fmt.Errorf("find appointment %s: %w", apptID, err)
	}
	return appt, nil
}

// translateWriteError maps store sentinels to domain errors. A uniqueness
// violation on insert means a concurrent booking won the slot.
func (s *Service) translateWriteError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		if s.metrics != nil {
			s.metrics.IncBookingConflict("store_constraint")
		}
		return dErrors.Wrap(err, dErrors.CodeOverlap, "slot was booked concurrently")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "appointment not found")
	default:
		return fmt.Errorf("persist appointment: %w", err)
	}
}

func (s *Service) countConflict(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case dErrors.HasCode(err, dErrors.CodeOverlap):
		s.metrics.IncBookingConflict("overlap")
	case dErrors.HasCode(err, dErrors.CodeDuplicateForRequest):
		s.metrics.IncBookingConflict("duplicate_request")
	}
}

func (s *Service) invalidateDay(ctx context.Context, org id.OrganizationID, country id.CountryCode, date schedule.Date) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, org, country, date)
}

// invalidateAround drops cached availability for the appointment's day.
// Resolution failures are logged, never surfaced: the cache self-expires.
func (s *Service) invalidateAround(ctx context.Context, appt *appointment.Appointment) {
	if s.cache == nil {
		return
	}
	day, err := s.resolver.ResolveAt(ctx, appt.Organization, appt.Country, appt.Start)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "availability invalidation skipped",
				"appointment_id", appt.ID,
				"error", err,
			)
		}
		return
	}
	s.cache.Invalidate(ctx, appt.Organization, appt.Country, day.Date)
}

func (s *Service) event(kind string, appt *appointment.Appointment, now time.Time, extra map[string]string) notify.Event {
	attrs := map[string]string{
		"organization_id": appt.Organization.String(),
		"country":         appt.Country.String(),
		"type":            appt.Type.String(),
		"status":          appt.Status.String(),
		"start":           appt.Start.Format(time.RFC3339),
	}
	if !appt.Request.IsNil() {
		attrs["request_id"] = appt.Request.String()
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return notify.Event{
		Kind:       kind,
		Subject:    appt.ID.String(),
		OccurredAt: now,
		Attributes: attrs,
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
