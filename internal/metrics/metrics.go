// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. Construct one per process with New.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	packagesCreated prometheus.Counter
	bookingsCreated prometheus.Counter
	partialWrites   *prometheus.CounterVec
	signIns         *prometheus.CounterVec
	payoutsCreated  prometheus.Counter
}

// New registers every collector on a fresh registry along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfarer_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wayfarer_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		packagesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wayfarer_packages_created_total",
			Help: "Packages created by agencies.",
		}),
		bookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wayfarer_bookings_created_total",
			Help: "Booking requests created by travelers.",
		}),
		partialWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfarer_partial_writes_total",
			Help: "Dependent batch inserts that failed after the primary entity was created.",
		}, []string{"batch"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wayfarer_signins_total",
			Help: "Sign-in attempts by result.",
		}, []string{"result"}),
		payoutsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wayfarer_payouts_created_total",
			Help: "Payouts generated by the payout job.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.packagesCreated, m.bookingsCreated, m.partialWrites, m.signIns, m.payoutsCreated,
	)
	return m
}

// PackageCreated counts one created package.
func (m *Metrics) PackageCreated() { m.packagesCreated.Inc() }

// BookingCreated counts one created booking.
func (m *Metrics) BookingCreated() { m.bookingsCreated.Inc() }

// PartialWrite counts one failed dependent batch.
func (m *Metrics) PartialWrite(batch string) { m.partialWrites.WithLabelValues(batch).Inc() }

// SignIn counts one sign-in attempt; result is "success", "failure" or "limited".
func (m *Metrics) SignIn(result string) { m.signIns.WithLabelValues(result).Inc() }

// PayoutCreated counts one generated payout.
func (m *Metrics) PayoutCreated() { m.payoutsCreated.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count and latency labelled by the chi route
// pattern, so /api/packages/{id} is one series rather than one per id.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rw.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
