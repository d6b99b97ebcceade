package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consular/internal/appointment"
	"consular/internal/appointment/daylock"
	"consular/internal/notify"
	"consular/internal/schedule"
	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
	"consular/pkg/requestcontext"
)

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type ServiceSuite struct {
	suite.Suite

	ctx      context.Context
	now      time.Time
	org      id.OrganizationID
	country  id.CountryCode
	store    *appointment.InMemory
	notifier *recordingNotifier
	svc      *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC) // Sunday before the booking week
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.org = id.NewOrganizationID()
	s.country = id.CountryCode("GR")

	schedStore := schedule.NewInMemory()
	cfg := &schedule.CountryScheduleConfig{
		Organization: s.org,
		Country:      s.country,
		Timezone:     "UTC",
		Week: map[time.Weekday]schedule.DayHours{
			time.Monday: {Open: true, Windows: []schedule.Window{{
				Start: schedule.TimeOfDay{Hour: 9},
				End:   schedule.TimeOfDay{Hour: 18},
			}}},
			time.Tuesday: {Open: true, Windows: []schedule.Window{{
				Start: schedule.TimeOfDay{Hour: 9},
				End:   schedule.TimeOfDay{Hour: 18},
			}}},
		},
	}
	s.Require().NoError(cfg.Validate())
	s.Require().NoError(schedStore.Save(s.ctx, cfg))

	resolver, err := schedule.NewResolver(schedStore)
	s.Require().NoError(err)

	s.store = appointment.NewInMemory()
	s.notifier = &recordingNotifier{}
	s.svc, err = New(s.store, resolver, daylock.New(), WithNotifier(s.notifier))
	s.Require().NoError(err)
}

// monday returns an instant on the configured open Monday.
func (s *ServiceSuite) monday(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func (s *ServiceSuite) tuesday(hour, minute int) time.Time {
	return time.Date(2025, 3, 11, hour, minute, 0, 0, time.UTC)
}

func (s *ServiceSuite) book(start time.Time) (*appointment.Appointment, error) {
	return s.svc.Book(s.ctx, BookInput{
		Organization: s.org,
		Country:      s.country,
		Attendee:     id.NewActorID(),
		Type:         appointment.TypeDocumentSubmission,
		Start:        start,
	})
}

func (s *ServiceSuite) TestBook() {
	appt, err := s.book(s.monday(9, 0))

	s.Require().NoError(err)
	s.Equal(appointment.StatusConfirmed, appt.Status)
	s.Equal(s.monday(9, 0), appt.Start)
	s.Equal(s.monday(9, 30), appt.End, "end is start plus the type duration")
	s.False(appt.ID.IsNil())
	s.Equal([]string{notify.KindAppointmentBooked}, s.notifier.kinds())

	stored, err := s.store.FindByID(s.ctx, appt.ID)
	s.Require().NoError(err)
	s.Equal(appt.ID, stored.ID)
}

func (s *ServiceSuite) TestBookRejectsTakenSlot() {
	_, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)

	_, err = s.book(s.monday(9, 0))

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeOverlap))
}

func (s *ServiceSuite) TestBookBackToBackSlots() {
	_, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)

	_, err = s.book(s.monday(9, 30))

	s.NoError(err, "adjacent slots do not overlap")
}

func (s *ServiceSuite) TestBookRejectsMisalignedStart() {
	_, err := s.book(s.monday(9, 10))

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestBookRejectsClosedDay() {
	sunday := time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC)

	_, err := s.book(sunday)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestBookRejectsPastStart() {
	_, err := s.book(s.now.Add(-time.Hour))

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestBookRejectsUnknownType() {
	_, err := s.svc.Book(s.ctx, BookInput{
		Organization: s.org,
		Country:      s.country,
		Attendee:     id.NewActorID(),
		Type:         appointment.Type("walk_in"),
		Start:        s.monday(9, 0),
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestBookRejectsSecondAppointmentForRequest() {
	attendee := id.NewActorID()
	request := id.NewServiceRequestID()
	input := BookInput{
		Organization: s.org,
		Country:      s.country,
		Request:      request,
		Attendee:     attendee,
		Type:         appointment.TypeDocumentSubmission,
		Start:        s.monday(9, 0),
	}
	_, err := s.svc.Book(s.ctx, input)
	s.Require().NoError(err)

	input.Start = s.monday(14, 0)
	_, err = s.svc.Book(s.ctx, input)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateForRequest))
}

func (s *ServiceSuite) TestBookRejectsSecondAppointmentOfSameType() {
	attendee := id.NewActorID()
	input := BookInput{
		Organization: s.org,
		Country:      s.country,
		Attendee:     attendee,
		Type:         appointment.TypeInterview,
		Start:        s.monday(9, 0),
	}
	_, err := s.svc.Book(s.ctx, input)
	s.Require().NoError(err)

	input.Start = s.monday(14, 15)
	_, err = s.svc.Book(s.ctx, input)

	s.Require().Error(err, "one active appointment per type per attendee")
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateForRequest))
}

func (s *ServiceSuite) TestBookAfterCancellationFreesSlot() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)
	_, err = s.svc.Cancel(s.ctx, appt.ID, "attendee travelling")
	s.Require().NoError(err)

	_, err = s.book(s.monday(9, 0))

	s.NoError(err, "a cancelled appointment no longer blocks its slot")
}

func (s *ServiceSuite) TestConcurrentBookingOfSameSlot() {
	const attempts = 8

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.book(s.monday(9, 0))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeOverlap))
		}
	}
	s.Equal(1, succeeded, "exactly one concurrent attempt wins the slot")
}

func (s *ServiceSuite) TestCancel() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)

	cancelled, err := s.svc.Cancel(s.ctx, appt.ID, "illness")

	s.Require().NoError(err)
	s.Equal(appointment.StatusCancelled, cancelled.Status)
	s.Equal("illness", cancelled.CancelReason)
	s.Contains(s.notifier.kinds(), notify.KindAppointmentCancelled)
}

func (s *ServiceSuite) TestCancelRequiresReason() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, appt.ID, "")

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestCancelTwiceRejected() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)
	_, err = s.svc.Cancel(s.ctx, appt.ID, "first")
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, appt.ID, "second")

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *ServiceSuite) TestCancelUnknownAppointment() {
	_, err := s.svc.Cancel(s.ctx, id.NewAppointmentID(), "whatever")

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestComplete() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)

	done, err := s.svc.Complete(s.ctx, appt.ID)

	s.Require().NoError(err)
	s.Equal(appointment.StatusCompleted, done.Status)
	s.Contains(s.notifier.kinds(), notify.KindAppointmentCompleted)
}

func (s *ServiceSuite) TestMarkMissed() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)

	missed, err := s.svc.MarkMissed(s.ctx, appt.ID)

	s.Require().NoError(err)
	s.Equal(appointment.StatusMissed, missed.Status)
}

func (s *ServiceSuite) TestCompleteAfterMissedRejected() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)
	_, err = s.svc.MarkMissed(s.ctx, appt.ID)
	s.Require().NoError(err)

	_, err = s.svc.Complete(s.ctx, appt.ID)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *ServiceSuite) TestReschedule() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)

	replacement, err := s.svc.Reschedule(s.ctx, appt.ID, s.monday(14, 0))

	s.Require().NoError(err)
	s.NotEqual(appt.ID, replacement.ID, "the replacement is a new appointment")
	s.Equal(appointment.StatusConfirmed, replacement.Status)
	s.Equal(s.monday(14, 0), replacement.Start)
	s.Require().NotNil(replacement.RescheduledFrom)
	s.Equal(s.monday(9, 0), *replacement.RescheduledFrom)

	old, err := s.store.FindByID(s.ctx, appt.ID)
	s.Require().NoError(err)
	s.Equal(appointment.StatusRescheduled, old.Status)
	s.Contains(s.notifier.kinds(), notify.KindAppointmentRescheduled)
}

func (s *ServiceSuite) TestRescheduleFreesOldSlot() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)
	_, err = s.svc.Reschedule(s.ctx, appt.ID, s.monday(14, 0))
	s.Require().NoError(err)

	_, err = s.book(s.monday(9, 0))

	s.NoError(err, "the superseded booking no longer blocks its slot")
}

func (s *ServiceSuite) TestRescheduleIntoTakenSlotRejected() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)
	_, err = s.book(s.monday(14, 0))
	s.Require().NoError(err)

	_, err = s.svc.Reschedule(s.ctx, appt.ID, s.monday(14, 0))

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeOverlap))

	unchanged, err := s.store.FindByID(s.ctx, appt.ID)
	s.Require().NoError(err)
	s.Equal(appointment.StatusConfirmed, unchanged.Status, "a failed reschedule leaves the original untouched")
}

func (s *ServiceSuite) TestRescheduleCancelledRejected() {
	appt, err := s.book(s.monday(9, 0))
	s.Require().NoError(err)
	_, err = s.svc.Cancel(s.ctx, appt.ID, "moved abroad")
	s.Require().NoError(err)

	_, err = s.svc.Reschedule(s.ctx, appt.ID, s.monday(14, 0))

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *ServiceSuite) TestRescheduleKeepsRequestLink() {
	request := id.NewServiceRequestID()
	appt, err := s.svc.Book(s.ctx, BookInput{
		Organization: s.org,
		Country:      s.country,
		Request:      request,
		Attendee:     id.NewActorID(),
		Type:         appointment.TypeDocumentSubmission,
		Start:        s.monday(9, 0),
	})
	s.Require().NoError(err)

	replacement, err := s.svc.Reschedule(s.ctx, appt.ID, s.monday(14, 0))

	s.Require().NoError(err)
	s.Equal(request, replacement.Request)
}

func (s *ServiceSuite) bookCeremony(start time.Time) *appointment.Appointment {
	appt, err := s.svc.Book(s.ctx, BookInput{
		Organization: s.org,
		Country:      s.country,
		Attendee:     id.NewActorID(),
		Type:         appointment.TypeCeremony,
		Start:        start,
	})
	s.Require().NoError(err)
	return appt
}

func (s *ServiceSuite) TestRescheduleIntoFullDayRejected() {
	appt := s.bookCeremony(s.tuesday(9, 0))
	for hour := 9; hour < 13; hour++ { // ceremony quota is 4
		s.bookCeremony(s.monday(hour, 0))
	}

	_, err := s.svc.Reschedule(s.ctx, appt.ID, s.monday(14, 0))

	s.Require().Error(err, "the quota cap applies to reschedules too")
	s.True(dErrors.HasCode(err, dErrors.CodeOverlap))
	s.Contains(err.Error(), "daily quota")

	unchanged, err := s.store.FindByID(s.ctx, appt.ID)
	s.Require().NoError(err)
	s.Equal(appointment.StatusConfirmed, unchanged.Status)
}

func (s *ServiceSuite) TestRescheduleWithinFullDayAllowed() {
	var last *appointment.Appointment
	for hour := 9; hour < 13; hour++ {
		last = s.bookCeremony(s.monday(hour, 0))
	}

	_, err := s.svc.Reschedule(s.ctx, last.ID, s.monday(14, 0))

	s.NoError(err, "a booking moved within its own day does not count against itself")
}

func (s *ServiceSuite) TestListByAttendee() {
	attendee := id.NewActorID()
	bookings := []struct {
		typ   appointment.Type
		start time.Time
	}{
		{appointment.TypeDocumentSubmission, s.monday(14, 0)},
		{appointment.TypeInterview, s.monday(9, 0)},
	}
	for _, b := range bookings {
		_, err := s.svc.Book(s.ctx, BookInput{
			Organization: s.org,
			Country:      s.country,
			Attendee:     attendee,
			Type:         b.typ,
			Start:        b.start,
		})
		s.Require().NoError(err)
	}

	appts, err := s.svc.ListByAttendee(s.ctx, attendee)

	s.Require().NoError(err)
	s.Require().Len(appts, 2)
	s.True(appts[0].Start.Before(appts[1].Start), "ordered by start time")
}

func (s *ServiceSuite) TestNewRejectsNilDependencies() {
	resolver, err := schedule.NewResolver(schedule.NewInMemory())
	s.Require().NoError(err)

	_, err = New(nil, resolver, daylock.New())
	s.Error(err)

	_, err = New(appointment.NewInMemory(), nil, daylock.New())
	s.Error(err)

	_, err = New(appointment.NewInMemory(), resolver, nil)
	s.Error(err)
}
