package httptransport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consular/internal/appointment"
	"consular/internal/appointment/daylock"
	apptservice "consular/internal/appointment/service"
	"consular/internal/availability"
	"consular/internal/profile"
	"consular/internal/request"
	reqservice "consular/internal/request/service"
	"consular/internal/schedule"
	id "consular/pkg/domain"
	"consular/pkg/testutil"
)

// fullStack wires real in-memory services behind the router, so the journey
// tests exercise every layer from HTTP decoding down to the stores.
type fullStack struct {
	routerFixture
}

func newFullStack(t *testing.T) *fullStack {
	t.Helper()

	scheduleStore := schedule.NewInMemory()
	resolver, err := schedule.NewResolver(scheduleStore)
	require.NoError(t, err)

	appointmentStore := appointment.NewInMemory()
	availabilitySvc, err := availability.New(resolver, appointmentStore)
	require.NoError(t, err)
	appointmentSvc, err := apptservice.New(appointmentStore, resolver, daylock.New(),
		apptservice.WithAvailabilityCache(availabilitySvc))
	require.NoError(t, err)

	profileStore := profile.NewInMemory()
	profileSvc, err := profile.NewService(profileStore)
	require.NoError(t, err)

	requestStore := request.NewInMemory()
	requestSvc, err := reqservice.New(requestStore, profileStore, appointmentStore)
	require.NoError(t, err)

	s := &fullStack{}
	s.validator = &staticValidator{}
	s.router = NewRouter(RouterConfig{
		Logger:       slog.New(slog.DiscardHandler),
		JWTValidator: s.validator,
		Availability: NewAvailabilityHandler(availabilitySvc),
		Schedules:    NewScheduleHandler(scheduleStore),
		Appointments: NewAppointmentHandler(appointmentSvc),
		Requests:     NewRequestHandler(requestSvc),
		Profiles:     NewProfileHandler(profileSvc),
	})
	return s
}

// nextMonday returns a Monday far enough in the future that bookings always
// pass the future-start check.
func nextMonday() time.Time {
	day := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	for day.Weekday() != time.Monday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func (s *fullStack) putMondaySchedule(t *testing.T, org id.OrganizationID) {
	t.Helper()
	admin := id.NewActorID()
	s.authenticateAs(admin, RoleAdmin)
	rec := s.do(t, http.MethodPut, fmt.Sprintf("/api/v1/organizations/%s/schedules/GR", org),
		map[string]any{
			"timezone": "UTC",
			"week": map[string]any{
				"monday": map[string]any{
					"open":    true,
					"windows": []map[string]string{{"start": "09:00", "end": "12:00"}},
				},
			},
		})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBookingJourney(t *testing.T) {
	s := newFullStack(t)
	org := id.NewOrganizationID()
	applicant := id.NewActorID()
	monday := nextMonday()
	dateStr := monday.Format("2006-01-02")

	var bookedID string
	firstStart := monday.Add(9 * time.Hour)
	secondStart := monday.Add(9*time.Hour + 45*time.Minute)

	testutil.Given(t, "a configured Monday schedule", func(t *testing.T) {
		s.putMondaySchedule(t, org)

		testutil.When(t, "the applicant checks interview availability", func(t *testing.T) {
			s.authenticateAs(applicant, RoleApplicant)
			rec := s.do(t, http.MethodGet,
				fmt.Sprintf("/api/v1/organizations/%s/availability?country=GR&date=%s&type=interview", org, dateStr), nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp struct {
				Slots []struct {
					Start time.Time `json:"start"`
				} `json:"slots"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			// 09:00-12:00 window, 45 minute slots: 09:00, 09:45, 10:30, 11:15.
			require.Len(t, resp.Slots, 4)
			assert.True(t, firstStart.Equal(resp.Slots[0].Start))
		})

		testutil.When(t, "the applicant books the first slot", func(t *testing.T) {
			rec := s.do(t, http.MethodPost,
				fmt.Sprintf("/api/v1/organizations/%s/appointments", org),
				map[string]any{"country": "GR", "type": "interview", "start": firstStart})
			require.Equal(t, http.StatusCreated, rec.Code)

			var resp struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "confirmed", resp.Status)
			bookedID = resp.ID

			testutil.Then(t, "the slot is no longer offered", func(t *testing.T) {
				rec := s.do(t, http.MethodGet,
					fmt.Sprintf("/api/v1/organizations/%s/availability?country=GR&date=%s&type=interview", org, dateStr), nil)
				require.Equal(t, http.StatusOK, rec.Code)

				var resp struct {
					Slots []struct {
						Start time.Time `json:"start"`
					} `json:"slots"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				require.Len(t, resp.Slots, 3)
				assert.True(t, secondStart.Equal(resp.Slots[0].Start))
			})

			testutil.Then(t, "booking it again conflicts", func(t *testing.T) {
				other := id.NewActorID()
				s.authenticateAs(other, RoleApplicant)
				rec := s.do(t, http.MethodPost,
					fmt.Sprintf("/api/v1/organizations/%s/appointments", org),
					map[string]any{"country": "GR", "type": "interview", "start": firstStart})
				assert.Equal(t, http.StatusConflict, rec.Code)
				s.authenticateAs(applicant, RoleApplicant)
			})
		})

		testutil.When(t, "the applicant reschedules to the second slot", func(t *testing.T) {
			rec := s.do(t, http.MethodPost,
				fmt.Sprintf("/api/v1/appointments/%s/reschedule", bookedID),
				map[string]any{"start": secondStart})
			require.Equal(t, http.StatusCreated, rec.Code)

			var resp struct {
				ID              string     `json:"id"`
				Start           time.Time  `json:"start"`
				RescheduledFrom *time.Time `json:"rescheduled_from"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEqual(t, bookedID, resp.ID)
			assert.True(t, secondStart.Equal(resp.Start))
			require.NotNil(t, resp.RescheduledFrom)
			assert.True(t, firstStart.Equal(*resp.RescheduledFrom))
			bookedID = resp.ID

			testutil.Then(t, "only the replacement still blocks a slot", func(t *testing.T) {
				rec := s.do(t, http.MethodGet,
					fmt.Sprintf("/api/v1/organizations/%s/availability?country=GR&date=%s&type=interview", org, dateStr), nil)
				require.Equal(t, http.StatusOK, rec.Code)

				var resp struct {
					Slots []struct {
						Start time.Time `json:"start"`
					} `json:"slots"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				require.Len(t, resp.Slots, 3)
				assert.True(t, firstStart.Equal(resp.Slots[0].Start), "original slot is free again")
			})
		})

		testutil.When(t, "an agent completes the appointment", func(t *testing.T) {
			s.authenticateAs(id.NewActorID(), RoleAgent)
			rec := s.do(t, http.MethodPost,
				fmt.Sprintf("/api/v1/appointments/%s/complete", bookedID), nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "completed", resp.Status)
		})
	})
}

func TestPassportRenewalJourney(t *testing.T) {
	s := newFullStack(t)
	org := id.NewOrganizationID()
	applicant := id.NewActorID()
	agent := id.NewActorID()
	monday := nextMonday()

	var profileID, requestID, pickupID string

	transition := func(t *testing.T, to string) *struct {
		Status  string `json:"status"`
		History []struct {
			To string `json:"to"`
		} `json:"history"`
	} {
		t.Helper()
		rec := s.do(t, http.MethodPost,
			fmt.Sprintf("/api/v1/requests/%s/transition", requestID),
			map[string]any{"to": to})
		require.Equal(t, http.StatusOK, rec.Code, "transition to %s: %s", to, rec.Body.String())
		resp := &struct {
			Status  string `json:"status"`
			History []struct {
				To string `json:"to"`
			} `json:"history"`
		}{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
		require.Equal(t, to, resp.Status)
		return resp
	}

	testutil.Given(t, "a complete validated profile", func(t *testing.T) {
		s.putMondaySchedule(t, org)
		s.authenticateAs(applicant, RoleApplicant)

		rec := s.do(t, http.MethodPost, "/api/v1/profiles", map[string]any{
			"full_name":     "Eleni Papadopoulou",
			"date_of_birth": "1990-04-17",
			"nationality":   "GR",
			"email":         "eleni@example.com",
			"phone":         "+30 210 1234567",
			"address":       "12 Ermou St, Athens",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		var created struct {
			ID         string `json:"id"`
			Completion int    `json:"completion"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, 100, created.Completion)
		profileID = created.ID

		rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/profiles/%s/documents", profileID),
			map[string]any{"kind": "photo_id", "reference": "scan://photo-id-001"})
		require.Equal(t, http.StatusOK, rec.Code)

		s.authenticateAs(agent, RoleAgent)
		rec = s.do(t, http.MethodPut,
			fmt.Sprintf("/api/v1/profiles/%s/documents/photo_id", profileID),
			map[string]any{"status": "validated"})
		require.Equal(t, http.StatusOK, rec.Code)

		testutil.When(t, "the applicant opens a passport renewal request", func(t *testing.T) {
			s.authenticateAs(applicant, RoleApplicant)
			rec := s.do(t, http.MethodPost,
				fmt.Sprintf("/api/v1/organizations/%s/requests", org),
				map[string]any{"country": "GR", "profile_id": profileID, "kind": "passport_renewal"})
			require.Equal(t, http.StatusCreated, rec.Code)
			var created struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
			assert.Equal(t, "draft", created.Status)
			requestID = created.ID
		})

		testutil.When(t, "the request moves through review", func(t *testing.T) {
			transition(t, "submitted")

			s.authenticateAs(agent, RoleAgent)
			transition(t, "validated")
			transition(t, "card_in_production")
			transition(t, "ready_for_pickup")
			transition(t, "appointment_scheduled")

			testutil.Then(t, "completion is gated on an attended pickup", func(t *testing.T) {
				rec := s.do(t, http.MethodPost,
					fmt.Sprintf("/api/v1/requests/%s/transition", requestID),
					map[string]any{"to": "completed"})
				assert.Equal(t, http.StatusConflict, rec.Code)
			})
		})

		testutil.When(t, "the applicant books the pickup", func(t *testing.T) {
			s.authenticateAs(applicant, RoleApplicant)
			rec := s.do(t, http.MethodPost,
				fmt.Sprintf("/api/v1/organizations/%s/appointments", org),
				map[string]any{
					"country":    "GR",
					"type":       "document_collection",
					"start":      monday.Add(9 * time.Hour),
					"request_id": requestID,
				})
			require.Equal(t, http.StatusCreated, rec.Code)
			var created struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
			pickupID = created.ID
		})

		testutil.When(t, "the pickup is completed", func(t *testing.T) {
			s.authenticateAs(agent, RoleAgent)
			rec := s.do(t, http.MethodPost,
				fmt.Sprintf("/api/v1/appointments/%s/complete", pickupID), nil)
			require.Equal(t, http.StatusOK, rec.Code)

			testutil.Then(t, "the request closes with a full audit trail", func(t *testing.T) {
				resp := transition(t, "completed")
				require.Len(t, resp.History, 6)
				assert.Equal(t, "completed", resp.History[5].To)
			})
		})
	})
}
