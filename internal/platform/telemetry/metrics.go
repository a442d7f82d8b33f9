// Package telemetry holds the service's Prometheus metrics and the OpenTelemetry
// span helpers used by the booking, plan and fulfillment services.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinicdesk"

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	bookings       *prometheus.CounterVec
	fanoutFailures *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	fulfillments   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Slot booking attempts by outcome (booked, conflict, rejected, error).",
		}, []string{"outcome"}),
		fanoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treatment",
			Name:      "fanout_failures_total",
			Help:      "Derived record writes that failed after a plan save.",
		}, []string{"target"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "uploads_total",
			Help:      "File uploads by kind and outcome.",
		}, []string{"kind", "outcome"}),
		fulfillments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fulfillment",
			Name:      "transitions_total",
			Help:      "Lab and pharmacy fulfillment transitions.",
		}, []string{"target", "transition"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.fanoutFailures, m.uploads, m.fulfillments, m.httpDuration)
	return m
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFanoutFailure(target string) {
	if m == nil {
		return
	}
	m.fanoutFailures.WithLabelValues(target).Inc()
}

func (m *Metrics) ObserveUpload(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "stored"
	if err != nil {
		outcome = "failed"
	}
	m.uploads.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveFulfillment(target, transition string) {
	if m == nil {
		return
	}
	m.fulfillments.WithLabelValues(target, transition).Inc()
}

// Middleware records request latency labelled by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpDuration.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes g in the Prometheus text format.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
