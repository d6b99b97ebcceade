package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consular/internal/platform/metrics"
	"consular/internal/platform/middleware"
)

// RouterConfig wires handlers and cross-cutting dependencies into the router.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	JWTValidator   middleware.JWTValidator
	RequestTimeout time.Duration

	Availability *AvailabilityHandler
	Schedules    *ScheduleHandler
	Appointments *AppointmentHandler
	Requests     *RequestHandler
	Profiles     *ProfileHandler

	// Healthz is called on GET /healthz; a nil func reports healthy.
	Healthz func() error
}

// NewRouter assembles the HTTP surface: public health and metrics endpoints,
// and the authenticated v1 API behind the middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Latency(cfg.Metrics))

	r.Get("/healthz", healthz(cfg.Healthz))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RequestTimeout > 0 {
			api.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(cfg.JWTValidator, cfg.Logger))

		api.Route("/organizations/{organizationID}", func(org chi.Router) {
			org.Route("/availability", cfg.Availability.Routes)
			org.Route("/schedules", cfg.Schedules.Routes)
			org.Route("/appointments", cfg.Appointments.OrgRoutes)
			org.Route("/requests", cfg.Requests.OrgRoutes)
		})
		api.Route("/appointments", cfg.Appointments.Routes)
		api.Route("/requests", cfg.Requests.Routes)
		api.Route("/profiles", cfg.Profiles.Routes)
	})

	return r
}

func healthz(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
