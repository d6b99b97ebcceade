package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consular/internal/appointment"
	apptservice "consular/internal/appointment/service"
	"consular/internal/transport/http/shared"
	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
	"consular/pkg/requestcontext"
)

// AppointmentHandler serves booking and lifecycle operations.
type AppointmentHandler struct {
	svc AppointmentService
}

// NewAppointmentHandler creates the appointment handler.
func NewAppointmentHandler(svc AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

// OrgRoutes mounts the organization-scoped booking route.
func (h *AppointmentHandler) OrgRoutes(r chi.Router) {
	r.Post("/", h.book)
}

// Routes mounts the appointment-scoped routes.
func (h *AppointmentHandler) Routes(r chi.Router) {
	r.Get("/", h.listMine)
	r.Get("/{appointmentID}", h.get)
	r.Post("/{appointmentID}/cancel", h.cancel)
	r.Post("/{appointmentID}/reschedule", h.reschedule)
	r.Post("/{appointmentID}/complete", h.complete)
	r.Post("/{appointmentID}/missed", h.markMissed)
}

type bookRequest struct {
	Country      string    `json:"country"`
	RequestID    string    `json:"request_id,omitempty"`
	Type         string    `json:"type"`
	Start        time.Time `json:"start"`
	Instructions string    `json:"instructions,omitempty"`
}

type appointmentResponse struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organization_id"`
	Country         string     `json:"country"`
	RequestID       string     `json:"request_id,omitempty"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	Instructions    string     `json:"instructions,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	RescheduledFrom *time.Time `json:"rescheduled_from,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:              a.ID.String(),
		OrganizationID:  a.Organization.String(),
		Country:         a.Country.String(),
		Type:            a.Type.String(),
		Status:          a.Status.String(),
		Start:           a.Start,
		End:             a.End,
		Instructions:    a.Instructions,
		CancelReason:    a.CancelReason,
		RescheduledFrom: a.RescheduledFrom,
	}
	if !a.Request.IsNil() {
		resp.RequestID = a.Request.String()
	}
	return resp
}

// book handles POST /organizations/{organizationID}/appointments.
func (h *AppointmentHandler) book(w http.ResponseWriter, r *http.Request) {
	org, err := shared.PathID("organization id", chi.URLParam(r, "organizationID"), id.ParseOrganizationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body bookRequest
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}

	country, err := id.ParseCountryCode(body.Country)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	typ, err := appointment.ParseType(body.Type)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var reqID id.ServiceRequestID
	if body.RequestID != "" {
		reqID, err = id.ParseServiceRequestID(body.RequestID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
	}

	attendee := requestcontext.ActorID(r.Context())
	appt, err := h.svc.Book(r.Context(), apptservice.BookInput{
		Organization: org,
		Country:      country,
		Request:      reqID,
		Attendee:     attendee,
		Type:         typ,
		Start:        body.Start,
		Instructions: body.Instructions,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

// get handles GET /appointments/{appointmentID}. Applicants can only read
// their own bookings.
func (h *AppointmentHandler) get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.findAuthorized(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// listMine handles GET /appointments.
func (h *AppointmentHandler) listMine(w http.ResponseWriter, r *http.Request) {
	appts, err := h.svc.ListByAttendee(r.Context(), requestcontext.ActorID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// cancel handles POST /appointments/{appointmentID}/cancel.
func (h *AppointmentHandler) cancel(w http.ResponseWriter, r *http.Request) {
	appt, err := h.findAuthorized(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body cancelRequest
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), appt.ID, body.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toAppointmentResponse(cancelled))
}

type rescheduleRequest struct {
	Start time.Time `json:"start"`
}

// reschedule handles POST /appointments/{appointmentID}/reschedule.
func (h *AppointmentHandler) reschedule(w http.ResponseWriter, r *http.Request) {
	appt, err := h.findAuthorized(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body rescheduleRequest
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}

	replacement, err := h.svc.Reschedule(r.Context(), appt.ID, body.Start)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toAppointmentResponse(replacement))
}

// complete handles POST /appointments/{appointmentID}/complete. Agent only.
func (h *AppointmentHandler) complete(w http.ResponseWriter, r *http.Request) {
	h.conclude(w, r, h.svc.Complete)
}

// markMissed handles POST /appointments/{appointmentID}/missed. Agent only.
func (h *AppointmentHandler) markMissed(w http.ResponseWriter, r *http.Request) {
	h.conclude(w, r, h.svc.MarkMissed)
}

func (h *AppointmentHandler) conclude(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, apptID id.AppointmentID) (*appointment.Appointment, error)) {
	if err := requireRole(r, RoleAgent, RoleAdmin); err != nil {
		shared.WriteError(w, err)
		return
	}
	apptID, err := shared.PathID("appointment id", chi.URLParam(r, "appointmentID"), id.ParseAppointmentID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	appt, err := op(r.Context(), apptID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// findAuthorized loads the appointment and enforces that applicants only
// touch their own bookings; agents and admins see everything.
func (h *AppointmentHandler) findAuthorized(r *http.Request) (*appointment.Appointment, error) {
	apptID, err := shared.PathID("appointment id", chi.URLParam(r, "appointmentID"), id.ParseAppointmentID)
	if err != nil {
		return nil, err
	}
	appt, err := h.svc.Get(r.Context(), apptID)
	if err != nil {
		return nil, err
	}

	if requireRole(r, RoleAgent, RoleAdmin) == nil {
		return appt, nil
	}
	if appt.Attendee != requestcontext.ActorID(r.Context()) {
		return nil, dErrors.New(dErrors.CodeForbidden, "appointment belongs to another attendee")
	}
	return appt, nil
}
