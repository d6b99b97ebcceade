package httptransport

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consular/internal/schedule"
	"consular/internal/transport/http/shared"
	id "consular/pkg/domain"
	dErrors "consular/pkg/domain-errors"
	"consular/pkg/platform/sentinel"
	"consular/pkg/requestcontext"
)

// ScheduleHandler serves operating calendar administration.
type ScheduleHandler struct {
	store ScheduleStore
}

// NewScheduleHandler creates the schedule admin handler.
func NewScheduleHandler(store ScheduleStore) *ScheduleHandler {
	return &ScheduleHandler{store: store}
}

// Routes mounts the handler under an organization-scoped subrouter.
func (h *ScheduleHandler) Routes(r chi.Router) {
	r.Get("/", h.listCountries)
	r.Get("/{country}", h.get)
	r.Put("/{country}", h.put)
}

type windowDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type dayHoursDTO struct {
	Open    bool        `json:"open"`
	Windows []windowDTO `json:"windows,omitempty"`
}

type holidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name,omitempty"`
}

type closureDTO struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason,omitempty"`
}

type scheduleDTO struct {
	Week     map[string]dayHoursDTO `json:"week"`
	Holidays []holidayDTO           `json:"holidays,omitempty"`
	Closures []closureDTO           `json:"closures,omitempty"`
	Timezone string                 `json:"timezone"`
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

func (dto scheduleDTO) toConfig(org id.OrganizationID, country id.CountryCode, now time.Time) (*schedule.CountryScheduleConfig, error) {
	cfg := &schedule.CountryScheduleConfig{
		Organization: org,
		Country:      country,
		Week:         make(map[time.Weekday]schedule.DayHours, len(dto.Week)),
		Timezone:     dto.Timezone,
		UpdatedAt:    now,
	}

	for name, day := range dto.Week {
		weekday, ok := weekdayNames[name]
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown weekday %q", name)
		}
		hours := schedule.DayHours{Open: day.Open}
		for _, w := range day.Windows {
			start, err := schedule.ParseTimeOfDay(w.Start)
			if err != nil {
				return nil, err
			}
			end, err := schedule.ParseTimeOfDay(w.End)
			if err != nil {
				return nil, err
			}
			hours.Windows = append(hours.Windows, schedule.Window{Start: start, End: end})
		}
		cfg.Week[weekday] = hours
	}

	for _, hol := range dto.Holidays {
		date, err := schedule.ParseDate(hol.Date)
		if err != nil {
			return nil, err
		}
		cfg.Holidays = append(cfg.Holidays, schedule.Holiday{Date: date, Name: hol.Name})
	}

	for _, cl := range dto.Closures {
		start, err := schedule.ParseDate(cl.Start)
		if err != nil {
			return nil, err
		}
		end, err := schedule.ParseDate(cl.End)
		if err != nil {
			return nil, err
		}
		cfg.Closures = append(cfg.Closures, schedule.Closure{Start: start, End: end, Reason: cl.Reason})
	}

	return cfg, nil
}

func toScheduleDTO(cfg *schedule.CountryScheduleConfig) scheduleDTO {
	dto := scheduleDTO{
		Week:     make(map[string]dayHoursDTO, len(cfg.Week)),
		Timezone: cfg.Timezone,
	}
	for name, weekday := range weekdayNames {
		day, ok := cfg.Week[weekday]
		if !ok {
			continue
		}
		hours := dayHoursDTO{Open: day.Open}
		for _, w := range day.Windows {
			hours.Windows = append(hours.Windows, windowDTO{Start: w.Start.String(), End: w.End.String()})
		}
		dto.Week[name] = hours
	}
	for _, hol := range cfg.Holidays {
		dto.Holidays = append(dto.Holidays, holidayDTO{Date: hol.Date.String(), Name: hol.Name})
	}
	for _, cl := range cfg.Closures {
		dto.Closures = append(dto.Closures, closureDTO{Start: cl.Start.String(), End: cl.End.String(), Reason: cl.Reason})
	}
	return dto
}

func orgAndCountry(r *http.Request) (id.OrganizationID, id.CountryCode, error) {
	org, err := shared.PathID("organization id", chi.URLParam(r, "organizationID"), id.ParseOrganizationID)
	if err != nil {
		return id.OrganizationID{}, "", err
	}
	country, err := id.ParseCountryCode(chi.URLParam(r, "country"))
	if err != nil {
		return id.OrganizationID{}, "", err
	}
	return org, country, nil
}

// put handles PUT /organizations/{organizationID}/schedules/{country}.
func (h *ScheduleHandler) put(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r, RoleAdmin); err != nil {
		shared.WriteError(w, err)
		return
	}
	org, country, err := orgAndCountry(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var dto scheduleDTO
	if err := shared.DecodeJSON(r, &dto); err != nil {
		shared.WriteError(w, err)
		return
	}
	cfg, err := dto.toConfig(org, country, requestcontext.Now(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.store.Save(r.Context(), cfg); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toScheduleDTO(cfg))
}

// get handles GET /organizations/{organizationID}/schedules/{country}.
func (h *ScheduleHandler) get(w http.ResponseWriter, r *http.Request) {
	org, country, err := orgAndCountry(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	cfg, err := h.store.Find(r.Context(), org, country)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.Wrap(err, dErrors.CodeNotFound, "no schedule configured for country")
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toScheduleDTO(cfg))
}

// listCountries handles GET /organizations/{organizationID}/schedules.
func (h *ScheduleHandler) listCountries(w http.ResponseWriter, r *http.Request) {
	org, err := shared.PathID("organization id", chi.URLParam(r, "organizationID"), id.ParseOrganizationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	countries, err := h.store.ListCountries(r.Context(), org)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if countries == nil {
		countries = []id.CountryCode{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"countries": countries})
}
