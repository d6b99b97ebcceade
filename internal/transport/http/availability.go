package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consular/internal/appointment"
	"consular/internal/schedule"
	"consular/internal/transport/http/shared"
	id "consular/pkg/domain"
)

// AvailabilityHandler serves slot availability queries.
type AvailabilityHandler struct {
	svc AvailabilityService
}

// NewAvailabilityHandler creates the availability handler.
func NewAvailabilityHandler(svc AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc}
}

// Routes mounts the handler under an organization-scoped subrouter.
func (h *AvailabilityHandler) Routes(r chi.Router) {
	r.Get("/", h.get)
}

type slotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type availabilityResponse struct {
	Date  string         `json:"date"`
	Type  string         `json:"type"`
	Slots []slotResponse `json:"slots"`
}

// get handles GET /organizations/{organizationID}/availability.
func (h *AvailabilityHandler) get(w http.ResponseWriter, r *http.Request) {
	org, err := shared.PathID("organization id", chi.URLParam(r, "organizationID"), id.ParseOrganizationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	q := r.URL.Query()
	country, err := id.ParseCountryCode(q.Get("country"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	date, err := schedule.ParseDate(q.Get("date"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	typ, err := appointment.ParseType(q.Get("type"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	slots, err := h.svc.GetAvailableSlots(r.Context(), org, country, date, typ)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := availabilityResponse{
		Date:  date.String(),
		Type:  typ.String(),
		Slots: make([]slotResponse, 0, len(slots)),
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotResponse{Start: s.Start, End: s.End})
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}
