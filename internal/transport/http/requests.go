package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consular/internal/request"
	reqservice "consular/internal/request/service"
	"consular/internal/transport/http/shared"
	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
	"consular/pkg/requestcontext"
)

// RequestHandler serves the service request workflow.
type RequestHandler struct {
	svc RequestService
}

// NewRequestHandler creates the request handler.
func NewRequestHandler(svc RequestService) *RequestHandler {
	return &RequestHandler{svc: svc}
}

// OrgRoutes mounts the organization-scoped request routes.
func (h *RequestHandler) OrgRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.listByStatus)
}

// Routes mounts the request-scoped routes.
func (h *RequestHandler) Routes(r chi.Router) {
	r.Get("/", h.listMine)
	r.Get("/{requestID}", h.get)
	r.Get("/{requestID}/transitions", h.transitions)
	r.Post("/{requestID}/transition", h.transition)
}

type createRequestBody struct {
	Country   string `json:"country"`
	ProfileID string `json:"profile_id"`
	Kind      string `json:"kind"`
}

type statusChangeDTO struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Actor  string    `json:"actor,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type requestResponse struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Country        string            `json:"country"`
	ProfileID      string            `json:"profile_id"`
	Kind           string            `json:"kind"`
	Status         string            `json:"status"`
	RejectReason   string            `json:"reject_reason,omitempty"`
	History        []statusChangeDTO `json:"history"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toRequestResponse(r *request.ServiceRequest) requestResponse {
	resp := requestResponse{
		ID:             r.ID.String(),
		OrganizationID: r.Organization.String(),
		Country:        r.Country.String(),
		ProfileID:      r.Profile.String(),
		Kind:           r.Kind.String(),
		Status:         r.Status.String(),
		RejectReason:   r.RejectReason,
		History:        make([]statusChangeDTO, 0, len(r.History)),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	for _, h := range r.History {
		resp.History = append(resp.History, statusChangeDTO{
			From: h.From.String(), To: h.To.String(),
			Actor: h.Actor, Reason: h.Reason, At: h.At,
		})
	}
	return resp
}

// create handles POST /organizations/{organizationID}/requests.
func (h *RequestHandler) create(w http.ResponseWriter, r *http.Request) {
	org, err := shared.PathID("organization id", chi.URLParam(r, "organizationID"), id.ParseOrganizationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body createRequestBody
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}

	country, err := id.ParseCountryCode(body.Country)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	profileID, err := id.ParseProfileID(body.ProfileID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	kind, err := request.ParseKind(body.Kind)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	req, err := h.svc.Create(r.Context(), reqservice.CreateInput{
		Organization: org,
		Country:      country,
		Applicant:    requestcontext.ActorID(r.Context()),
		Profile:      profileID,
		Kind:         kind,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toRequestResponse(req))
}

// listByStatus handles GET /organizations/{organizationID}/requests?status=.
// Agent work queue.
func (h *RequestHandler) listByStatus(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r, RoleAgent, RoleAdmin); err != nil {
		shared.WriteError(w, err)
		return
	}
	org, err := shared.PathID("organization id", chi.URLParam(r, "organizationID"), id.ParseOrganizationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	status, err := request.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	reqs, err := h.svc.ListByStatus(r.Context(), org, status)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toRequestResponse(req))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

// listMine handles GET /requests.
func (h *RequestHandler) listMine(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.svc.ListByApplicant(r.Context(), requestcontext.ActorID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toRequestResponse(req))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

// get handles GET /requests/{requestID}. Applicants can only read their own.
func (h *RequestHandler) get(w http.ResponseWriter, r *http.Request) {
	req, err := h.findAuthorized(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

type transitionBody struct {
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// transition handles POST /requests/{requestID}/transition. Submission is
// open to the applicant; every other move is an agent operation.
func (h *RequestHandler) transition(w http.ResponseWriter, r *http.Request) {
	req, err := h.findAuthorized(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body transitionBody
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	to, err := request.ParseStatus(body.To)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if to != request.StatusSubmitted {
		if err := requireRole(r, RoleAgent, RoleAdmin); err != nil {
			shared.WriteError(w, err)
			return
		}
	}

	updated, err := h.svc.Transition(r.Context(), req.ID, to, body.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRequestResponse(updated))
}

type transitionOption struct {
	To      string `json:"to"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// transitions handles GET /requests/{requestID}/transitions: the reachable
// statuses with each gate's current verdict.
func (h *RequestHandler) transitions(w http.ResponseWriter, r *http.Request) {
	req, err := h.findAuthorized(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	next, err := h.svc.AvailableTransitions(r.Context(), req.ID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]transitionOption, 0, len(next))
	for _, to := range next {
		decision, err := h.svc.CanTransition(r.Context(), req.ID, to)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		out = append(out, transitionOption{To: to.String(), Allowed: decision.Allowed, Reason: decision.Reason})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"transitions": out})
}

func (h *RequestHandler) findAuthorized(r *http.Request) (*request.ServiceRequest, error) {
	reqID, err := shared.PathID("request id", chi.URLParam(r, "requestID"), id.ParseServiceRequestID)
	if err != nil {
		return nil, err
	}
	req, err := h.svc.Get(r.Context(), reqID)
	if err != nil {
		return nil, err
	}

	if requireRole(r, RoleAgent, RoleAdmin) == nil {
		return req, nil
	}
	if req.Applicant != requestcontext.ActorID(r.Context()) {
		return nil, dErrors.New(dErrors.CodeForbidden, "request belongs to another applicant")
	}
	return req, nil
}
