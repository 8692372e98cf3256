// Package telemetry exposes Prometheus instrumentation for the HTTP layer,
// the scheduling core, and the external sync pipeline.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the service.
type Metrics struct {
	registry *prometheus.Registry

	httpDuration      *prometheus.HistogramVec
	appointmentEvents *prometheus.CounterVec
	conflictsRejected prometheus.Counter
	syncDeliveries    *prometheus.CounterVec
	syncQueueDepth    prometheus.Gauge
}

// NewMetrics registers all instruments on the given registry. A nil registry
// creates a private one, which keeps tests isolated from each other.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "carebase",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		appointmentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebase",
			Subsystem: "scheduling",
			Name:      "appointment_events_total",
			Help:      "Appointment lifecycle events by operation",
		}, []string{"operation"}),
		conflictsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carebase",
			Subsystem: "scheduling",
			Name:      "conflicts_rejected_total",
			Help:      "Bookings rejected because the provider slot was taken",
		}),
		syncDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebase",
			Subsystem: "sync",
			Name:      "deliveries_total",
			Help:      "External sync delivery attempts by record kind and result",
		}, []string{"kind", "result"}),
		syncQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "carebase",
			Subsystem: "sync",
			Name:      "queue_depth",
			Help:      "Records waiting in the sync dispatch queue",
		}),
	}

	reg.MustRegister(
		m.httpDuration,
		m.appointmentEvents,
		m.conflictsRejected,
		m.syncDeliveries,
		m.syncQueueDepth,
	)
	return m
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// HTTPMiddleware observes request latency. Routes are labeled by their echo
// pattern (e.g. /api/appointments/:id) so UUIDs do not explode cardinality.
func (m *Metrics) HTTPMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpDuration.WithLabelValues(
				c.Request().Method,
				route,
				strconv.Itoa(c.Response().Status),
			).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// AppointmentEvent counts a lifecycle operation such as scheduled, cancelled
// or completed.
func (m *Metrics) AppointmentEvent(operation string) {
	if m == nil {
		return
	}
	m.appointmentEvents.WithLabelValues(operation).Inc()
}

// ConflictRejected counts a booking refused by the conflict guard.
func (m *Metrics) ConflictRejected() {
	if m == nil {
		return
	}
	m.conflictsRejected.Inc()
}

// SyncDelivery counts one delivery attempt outcome for the sync pipeline.
func (m *Metrics) SyncDelivery(kind, result string) {
	if m == nil {
		return
	}
	m.syncDeliveries.WithLabelValues(kind, result).Inc()
}

// SetSyncQueueDepth records the current dispatch queue length.
func (m *Metrics) SetSyncQueueDepth(n int) {
	if m == nil {
		return
	}
	m.syncQueueDepth.Set(float64(n))
}
