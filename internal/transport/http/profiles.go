package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consular/internal/profile"
	"consular/internal/transport/http/shared"
	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
	"consular/pkg/requestcontext"
)

// ProfileHandler serves applicant profile management.
type ProfileHandler struct {
	svc ProfileService
}

// NewProfileHandler creates the profile handler.
func NewProfileHandler(svc ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// Routes mounts the profile routes.
func (h *ProfileHandler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/me", h.getMine)
	r.Get("/{profileID}", h.get)
	r.Put("/{profileID}", h.update)
	r.Post("/{profileID}/documents", h.attachDocument)
	r.Put("/{profileID}/documents/{kind}", h.setDocumentStatus)
}

type personalBody struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	Nationality string `json:"nationality"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

type documentDTO struct {
	Kind        string    `json:"kind"`
	Reference   string    `json:"reference"`
	Status      string    `json:"status"`
	ValidatedBy string    `json:"validated_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type profileResponse struct {
	ID          string        `json:"id"`
	FullName    string        `json:"full_name,omitempty"`
	DateOfBirth string        `json:"date_of_birth,omitempty"`
	Nationality string        `json:"nationality,omitempty"`
	Email       string        `json:"email,omitempty"`
	Phone       string        `json:"phone,omitempty"`
	Address     string        `json:"address,omitempty"`
	Completion  int           `json:"completion"`
	Documents   []documentDTO `json:"documents"`
}

func toProfileResponse(p *profile.Profile) profileResponse {
	resp := profileResponse{
		ID:          p.ID.String(),
		FullName:    p.FullName,
		DateOfBirth: p.DateOfBirth,
		Nationality: p.Nationality.String(),
		Email:       p.Email,
		Phone:       p.Phone,
		Address:     p.Address,
		Completion:  p.Completion(),
		Documents:   make([]documentDTO, 0, len(p.Documents)),
	}
	for _, d := range p.Documents {
		resp.Documents = append(resp.Documents, documentDTO{
			Kind:        string(d.Kind),
			Reference:   d.Reference,
			Status:      string(d.Status),
			ValidatedBy: d.ValidatedBy,
			UpdatedAt:   d.UpdatedAt,
		})
	}
	return resp
}

func (b personalBody) toInput() (profile.PersonalInput, error) {
	in := profile.PersonalInput{
		FullName:    b.FullName,
		DateOfBirth: b.DateOfBirth,
		Email:       b.Email,
		Phone:       b.Phone,
		Address:     b.Address,
	}
	if b.Nationality != "" {
		nationality, err := id.ParseCountryCode(b.Nationality)
		if err != nil {
			return profile.PersonalInput{}, err
		}
		in.Nationality = nationality
	}
	return in, nil
}

// create handles POST /profiles.
func (h *ProfileHandler) create(w http.ResponseWriter, r *http.Request) {
	var body personalBody
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	in, err := body.toInput()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	p, err := h.svc.Create(r.Context(), requestcontext.ActorID(r.Context()), in)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toProfileResponse(p))
}

// getMine handles GET /profiles/me.
func (h *ProfileHandler) getMine(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetByActor(r.Context(), requestcontext.ActorID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toProfileResponse(p))
}

// get handles GET /profiles/{profileID}.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.findAuthorized(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toProfileResponse(p))
}

// update handles PUT /profiles/{profileID}.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request) {
	p, err := h.findAuthorized(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body personalBody
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}
	in, err := body.toInput()
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	updated, err := h.svc.Update(r.Context(), p.ID, in)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toProfileResponse(updated))
}

type attachDocumentBody struct {
	Kind      string `json:"kind"`
	Reference string `json:"reference"`
}

// attachDocument handles POST /profiles/{profileID}/documents.
func (h *ProfileHandler) attachDocument(w http.ResponseWriter, r *http.Request) {
	p, err := h.findAuthorized(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body attachDocumentBody
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}

	updated, err := h.svc.AttachDocument(r.Context(), p.ID, profile.DocumentKind(body.Kind), body.Reference)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toProfileResponse(updated))
}

type documentStatusBody struct {
	Status string `json:"status"`
}

// setDocumentStatus handles PUT /profiles/{profileID}/documents/{kind}.
// Agent only: document validation is a review verdict.
func (h *ProfileHandler) setDocumentStatus(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r, RoleAgent, RoleAdmin); err != nil {
		shared.WriteError(w, err)
		return
	}
	profileID, err := shared.PathID("profile id", chi.URLParam(r, "profileID"), id.ParseProfileID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body documentStatusBody
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.WriteError(w, err)
		return
	}

	updated, err := h.svc.SetDocumentStatus(r.Context(), profileID,
		profile.DocumentKind(chi.URLParam(r, "kind")), profile.DocumentStatus(body.Status))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toProfileResponse(updated))
}

// findAuthorized loads the profile and enforces ownership for applicants.
func (h *ProfileHandler) findAuthorized(r *http.Request) (*profile.Profile, error) {
	profileID, err := shared.PathID("profile id", chi.URLParam(r, "profileID"), id.ParseProfileID)
	if err != nil {
		return nil, err
	}
	p, err := h.svc.Get(r.Context(), profileID)
	if err != nil {
		return nil, err
	}

	if requireRole(r, RoleAgent, RoleAdmin) == nil {
		return p, nil
	}
	if p.Actor != requestcontext.ActorID(r.Context()) {
		return nil, dErrors.New(dErrors.CodeForbidden, "profile belongs to another actor")
	}
	return p, nil
}
