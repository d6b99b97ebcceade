package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consular/internal/appointment"
	"consular/internal/notify"
	"consular/internal/profile"
	"consular/internal/request"
	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
	"consular/pkg/requestcontext"
)

type WorkflowSuite struct {
	suite.Suite

	ctx          context.Context
	now          time.Time
	org          id.OrganizationID
	applicant    id.ActorID
	profiles     *profile.InMemory
	appointments *appointment.InMemory
	prof         *profile.Profile
	svc          *Service
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.now = time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.org = id.NewOrganizationID()
	s.applicant = id.NewActorID()

	s.profiles = profile.NewInMemory()
	s.prof = &profile.Profile{
		ID:          id.NewProfileID(),
		Actor:       s.applicant,
		FullName:    "Nikos Alexiou",
		DateOfBirth: "1990-07-01",
		Nationality: id.CountryCode("GR"),
		Email:       "nikos@example.org",
		Phone:       "+30 210 1111111",
		Address:     "3 Akadimias St, Athens",
	}
	s.prof.AttachDocument(profile.DocumentPhotoID, "doc-1", s.now)
	s.Require().NoError(s.profiles.Save(s.ctx, s.prof))

	s.appointments = appointment.NewInMemory()

	var err error
	s.svc, err = New(request.NewInMemory(), s.profiles, s.appointments, WithNotifier(notify.Nop{}))
	s.Require().NoError(err)
}

func (s *WorkflowSuite) create() *request.ServiceRequest {
	req, err := s.svc.Create(s.ctx, CreateInput{
		Organization: s.org,
		Country:      id.CountryCode("GR"),
		Applicant:    s.applicant,
		Profile:      s.prof.ID,
		Kind:         request.KindNationalID,
	})
	s.Require().NoError(err)
	return req
}

func (s *WorkflowSuite) validateDocuments() {
	s.Require().NoError(s.prof.SetDocumentStatus(profile.DocumentPhotoID, profile.DocumentValidated, "agent-1", s.now))
	s.Require().NoError(s.profiles.Save(s.ctx, s.prof))
}

// addPickup links a collection appointment to the request. hour keeps slot
// starts distinct across calls, the store enforces active-start uniqueness.
func (s *WorkflowSuite) addPickup(reqID id.ServiceRequestID, status appointment.Status, hour int) {
	start := time.Date(2025, 3, 20, hour, 0, 0, 0, time.UTC)
	s.Require().NoError(s.appointments.Create(s.ctx, &appointment.Appointment{
		ID:           id.NewAppointmentID(),
		Organization: s.org,
		Country:      id.CountryCode("GR"),
		Request:      reqID,
		Attendee:     s.applicant,
		Type:         appointment.TypeDocumentCollection,
		Status:       status,
		Start:        start,
		End:          start.Add(15 * time.Minute),
	}))
}

func (s *WorkflowSuite) transition(reqID id.ServiceRequestID, to request.Status) (*request.ServiceRequest, error) {
	return s.svc.Transition(s.ctx, reqID, to, "")
}

func (s *WorkflowSuite) TestCreate() {
	req := s.create()

	s.Equal(request.StatusDraft, req.Status)
	s.Equal(request.KindNationalID, req.Kind)
	s.Empty(req.History)
	s.False(req.ID.IsNil())
}

func (s *WorkflowSuite) TestCreateRejectsUnknownProfile() {
	_, err := s.svc.Create(s.ctx, CreateInput{
		Organization: s.org,
		Country:      id.CountryCode("GR"),
		Applicant:    s.applicant,
		Profile:      id.NewProfileID(),
		Kind:         request.KindNationalID,
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *WorkflowSuite) TestCreateRejectsForeignProfile() {
	_, err := s.svc.Create(s.ctx, CreateInput{
		Organization: s.org,
		Country:      id.CountryCode("GR"),
		Applicant:    id.NewActorID(),
		Profile:      s.prof.ID,
		Kind:         request.KindNationalID,
	})

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *WorkflowSuite) TestSubmit() {
	req := s.create()

	updated, err := s.transition(req.ID, request.StatusSubmitted)

	s.Require().NoError(err)
	s.Equal(request.StatusSubmitted, updated.Status)
	s.Require().Len(updated.History, 1)
	s.Equal(request.StatusDraft, updated.History[0].From)
	s.Equal(request.StatusSubmitted, updated.History[0].To)
	s.Equal(s.now, updated.History[0].At)
}

func (s *WorkflowSuite) TestSubmitIncompleteProfileRejected() {
	s.prof.Phone = ""
	s.Require().NoError(s.profiles.Save(s.ctx, s.prof))
	req := s.create()

	_, err := s.transition(req.ID, request.StatusSubmitted)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	s.Contains(err.Error(), "83%")
}

func (s *WorkflowSuite) TestSkippingToValidatedRejected() {
	req := s.create()

	_, err := s.transition(req.ID, request.StatusValidated)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *WorkflowSuite) TestValidateRequiresValidatedDocuments() {
	req := s.create()
	_, err := s.transition(req.ID, request.StatusSubmitted)
	s.Require().NoError(err)

	_, err = s.transition(req.ID, request.StatusValidated)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	s.Contains(err.Error(), "documents not validated")
}

func (s *WorkflowSuite) TestValidateIncompleteProfileRejected() {
	req := s.create()
	_, err := s.transition(req.ID, request.StatusSubmitted)
	s.Require().NoError(err)

	s.validateDocuments()
	s.prof.Address = ""
	s.Require().NoError(s.profiles.Save(s.ctx, s.prof))

	_, err = s.transition(req.ID, request.StatusValidated)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	s.Contains(err.Error(), "83%")
}

func (s *WorkflowSuite) TestValidateAfterDocumentValidation() {
	req := s.create()
	_, err := s.transition(req.ID, request.StatusSubmitted)
	s.Require().NoError(err)
	s.validateDocuments()

	updated, err := s.transition(req.ID, request.StatusValidated)

	s.Require().NoError(err)
	s.Equal(request.StatusValidated, updated.Status)
}

func (s *WorkflowSuite) TestFullWorkflow() {
	req := s.create()
	s.validateDocuments()

	// Everything after validation up to scheduling is unconditional.
	path := []request.Status{
		request.StatusSubmitted, request.StatusValidated,
		request.StatusCardInProduction, request.StatusReadyForPickup,
		request.StatusAppointmentScheduled,
	}
	for _, to := range path {
		_, err := s.transition(req.ID, to)
		s.Require().NoError(err, "to %s", to)
	}

	// Completion is gated on the pickup having been attended.
	_, err := s.transition(req.ID, request.StatusCompleted)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	s.addPickup(req.ID, appointment.StatusConfirmed, 10)
	_, err = s.transition(req.ID, request.StatusCompleted)
	s.Require().Error(err, "a scheduled but unattended pickup does not count")

	s.addPickup(id.NewServiceRequestID(), appointment.StatusCompleted, 11) // unrelated request
	_, err = s.transition(req.ID, request.StatusCompleted)
	s.Require().Error(err, "another request's pickup does not count")

	s.addPickup(req.ID, appointment.StatusCompleted, 12)
	final, err := s.transition(req.ID, request.StatusCompleted)
	s.Require().NoError(err)
	s.Equal(request.StatusCompleted, final.Status)
	s.Len(final.History, 6)
}

func (s *WorkflowSuite) TestReject() {
	req := s.create()
	_, err := s.transition(req.ID, request.StatusSubmitted)
	s.Require().NoError(err)

	rejected, err := s.svc.Transition(s.ctx, req.ID, request.StatusRejected, "identity mismatch")

	s.Require().NoError(err)
	s.Equal(request.StatusRejected, rejected.Status)
	s.Equal("identity mismatch", rejected.RejectReason)
}

func (s *WorkflowSuite) TestRejectRequiresReason() {
	req := s.create()
	_, err := s.transition(req.ID, request.StatusSubmitted)
	s.Require().NoError(err)

	_, err = s.svc.Transition(s.ctx, req.ID, request.StatusRejected, "")

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *WorkflowSuite) TestRejectDraftNotAllowed() {
	req := s.create()

	_, err := s.svc.Transition(s.ctx, req.ID, request.StatusRejected, "nope")

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *WorkflowSuite) TestCanTransition() {
	req := s.create()

	decision, err := s.svc.CanTransition(s.ctx, req.ID, request.StatusSubmitted)
	s.Require().NoError(err)
	s.True(decision.Allowed)

	s.prof.Email = ""
	s.Require().NoError(s.profiles.Save(s.ctx, s.prof))

	decision, err = s.svc.CanTransition(s.ctx, req.ID, request.StatusSubmitted)
	s.Require().NoError(err)
	s.False(decision.Allowed)
	s.NotEmpty(decision.Reason)
}

func (s *WorkflowSuite) TestAvailableTransitions() {
	req := s.create()

	next, err := s.svc.AvailableTransitions(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal([]request.Status{request.StatusSubmitted}, next)

	_, err = s.transition(req.ID, request.StatusSubmitted)
	s.Require().NoError(err)

	next, err = s.svc.AvailableTransitions(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal([]request.Status{
		request.StatusPendingCompletion, request.StatusValidated, request.StatusRejected,
	}, next)
}

func (s *WorkflowSuite) TestTransitionUnknownRequest() {
	_, err := s.transition(id.NewServiceRequestID(), request.StatusSubmitted)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *WorkflowSuite) TestListByStatus() {
	first := s.create()
	second := s.create()
	_, err := s.transition(second.ID, request.StatusSubmitted)
	s.Require().NoError(err)

	drafts, err := s.svc.ListByStatus(s.ctx, s.org, request.StatusDraft)
	s.Require().NoError(err)
	s.Require().Len(drafts, 1)
	s.Equal(first.ID, drafts[0].ID)

	submitted, err := s.svc.ListByStatus(s.ctx, s.org, request.StatusSubmitted)
	s.Require().NoError(err)
	s.Len(submitted, 1)
}
