//go:build integration

package request_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"consular/internal/request"
	id "consular/pkg/domain"
	"consular/pkg/platform/sentinel"
	"consular/pkg/testutil/containers"
)

type RequestPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *request.PostgresStore
}

func TestRequestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RequestPostgresSuite))
}

func (s *RequestPostgresSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = request.NewPostgres(s.postgres.Pool)
}

func (s *RequestPostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "service_requests"))
}

func newTestRequest(org id.OrganizationID, applicant id.ActorID) *request.ServiceRequest {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &request.ServiceRequest{
		ID:           id.NewServiceRequestID(),
		Organization: org,
		Country:      id.CountryCode("GR"),
		Applicant:    applicant,
		Profile:      id.NewProfileID(),
		Kind:         request.KindPassportRenewal,
		Status:       request.StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *RequestPostgresSuite) TestCreateAndFindWithHistory() {
	ctx := context.Background()
	actor := id.ActorID(uuid.New())
	r := newTestRequest(id.NewOrganizationID(), actor)
	r.Apply(request.StatusSubmitted, actor.String(), "", r.CreatedAt.Add(time.Minute))

	s.Require().NoError(s.store.Create(ctx, r))

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusSubmitted, found.Status)
	s.Equal(r.Kind, found.Kind)
	s.Equal(r.Applicant, found.Applicant)
	s.Require().Len(found.History, 1)
	s.Equal(request.StatusDraft, found.History[0].From)
	s.Equal(request.StatusSubmitted, found.History[0].To)
	s.Equal(actor.String(), found.History[0].Actor)
}

func (s *RequestPostgresSuite) TestCreateDuplicateID() {
	ctx := context.Background()
	r := newTestRequest(id.NewOrganizationID(), id.ActorID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, r))
	s.ErrorIs(s.store.Create(ctx, r), sentinel.ErrConflict)
}

func (s *RequestPostgresSuite) TestUpdateAppendsHistory() {
	ctx := context.Background()
	actor := id.ActorID(uuid.New())
	r := newTestRequest(id.NewOrganizationID(), actor)
	s.Require().NoError(s.store.Create(ctx, r))

	r.Apply(request.StatusSubmitted, actor.String(), "", time.Now().UTC())
	r.Apply(request.StatusRejected, actor.String(), "illegible documents", time.Now().UTC())
	r.RejectReason = "illegible documents"
	s.Require().NoError(s.store.Update(ctx, r))

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(request.StatusRejected, found.Status)
	s.Equal("illegible documents", found.RejectReason)
	s.Require().Len(found.History, 2)
	s.Equal("illegible documents", found.History[1].Reason)
}

func (s *RequestPostgresSuite) TestUpdateUnknownID() {
	r := newTestRequest(id.NewOrganizationID(), id.ActorID(uuid.New()))
	s.ErrorIs(s.store.Update(context.Background(), r), sentinel.ErrNotFound)
}

func (s *RequestPostgresSuite) TestListByApplicantAndStatus() {
	ctx := context.Background()
	org := id.NewOrganizationID()
	applicant := id.ActorID(uuid.New())

	first := newTestRequest(org, applicant)
	second := newTestRequest(org, applicant)
	second.Kind = request.KindNationalID
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	other := newTestRequest(org, id.ActorID(uuid.New()))

	for _, r := range []*request.ServiceRequest{first, second, other} {
		s.Require().NoError(s.store.Create(ctx, r))
	}

	mine, err := s.store.ListByApplicant(ctx, applicant)
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal(first.ID, mine[0].ID)
	s.Equal(second.ID, mine[1].ID)

	drafts, err := s.store.ListByStatus(ctx, org, request.StatusDraft)
	s.Require().NoError(err)
	s.Len(drafts, 3)

	validated, err := s.store.ListByStatus(ctx, org, request.StatusValidated)
	s.Require().NoError(err)
	s.Empty(validated)
}
