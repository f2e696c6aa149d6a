// Package telemetry exposes the server's Prometheus metrics: HTTP traffic,
// database pool usage and the appointment counters the clinic reports on.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/barangay/bhc/internal/platform/middleware"
)

const namespace = "bhc"

// Slot lookup outcomes.
const (
	OutcomeAvailable   = "available"
	OutcomeFullyBooked = "fully_booked"
	OutcomeNotOffered  = "not_offered"
	OutcomeUnknownType = "unknown_type"
	OutcomeError       = "error"
)

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	appointmentsBooked    prometheus.Counter
	appointmentsCancelled prometheus.Counter
	appointmentsCompleted prometheus.Counter
	slotLookups           *prometheus.CounterVec
	bookingConflicts      prometheus.Counter
	recordAccess          *prometheus.CounterVec
}

// New builds the metric set and registers the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		appointmentsBooked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_booked_total",
			Help:      "Appointments created through booking",
		}),
		appointmentsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_cancelled_total",
			Help:      "Appointments moved to Cancelled",
		}),
		appointmentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_completed_total",
			Help:      "Appointments moved to Completed",
		}),
		slotLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slot_lookups_total",
				Help:      "Available-slot lookups by outcome",
			},
			[]string{"outcome"},
		),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Bookings rejected because the slot was taken at submission time",
		}),
		recordAccess: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "record_access_total",
				Help:      "Audited API accesses by resource and action",
			},
			[]string{"resource", "action"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.appointmentsBooked,
		m.appointmentsCancelled,
		m.appointmentsCompleted,
		m.slotLookups,
		m.bookingConflicts,
		m.recordAccess,
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one served request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) AppointmentBooked()    { m.appointmentsBooked.Inc() }
func (m *Metrics) AppointmentCancelled() { m.appointmentsCancelled.Inc() }
func (m *Metrics) AppointmentCompleted() { m.appointmentsCompleted.Inc() }
func (m *Metrics) BookingConflict()      { m.bookingConflicts.Inc() }

// SlotLookup counts an available-slot lookup by outcome.
func (m *Metrics) SlotLookup(outcome string) {
	m.slotLookups.WithLabelValues(outcome).Inc()
}

// RecordAccess counts an audited request. Metrics is passed to
// middleware.Audit as a recorder.
func (m *Metrics) RecordAccess(entry middleware.AuditEntry) error {
	m.recordAccess.WithLabelValues(entry.ResourceType, entry.Action).Inc()
	return nil
}

// RegisterPool exports connection pool gauges read on every scrape.
func (m *Metrics) RegisterPool(pool *pgxpool.Pool) {
	gauge := func(name, help string, f func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return f(pool.Stat()) })
	}
	m.registry.MustRegister(
		gauge("total_conns", "Connections currently open", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("idle_conns", "Idle connections", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("acquired_conns", "Connections checked out", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
	)
}
