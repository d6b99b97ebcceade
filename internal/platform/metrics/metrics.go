package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SlotsComputed        prometheus.Counter
	AvailabilityCacheHit prometheus.Counter
	AppointmentsBooked   prometheus.Counter
	BookingConflicts     *prometheus.CounterVec
	TransitionsRejected  prometheus.Counter
	RequestLatency       *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SlotsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consular_slots_computed_total",
			Help: "Total number of availability computations performed",
		}),
		AvailabilityCacheHit: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consular_availability_cache_hits_total",
			Help: "Total number of availability responses served from cache",
		}),
		AppointmentsBooked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consular_appointments_booked_total",
			Help: "Total number of appointments successfully booked",
		}),
		BookingConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consular_booking_conflicts_total",
			Help: "Total number of bookings rejected by the conflict guard",
		}, []string{"reason"}),
		TransitionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consular_request_transitions_rejected_total",
			Help: "Total number of service request transitions rejected",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consular_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// IncBookingConflict records a rejected booking by guard reason.
func (m *Metrics) IncBookingConflict(reason string) {
	if m == nil {
		return
	}
	m.BookingConflicts.WithLabelValues(reason).Inc()
}
