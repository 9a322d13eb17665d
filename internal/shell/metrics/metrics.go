// Package metrics exposes Prometheus instrumentation for the polls service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Vote sources, used as the "source" label on polls_votes_total.
const (
	SourceForm = "form"
	SourceAPI  = "api"
)

// Metrics holds the collectors for one server instance. Each instance owns
// its registry so several servers (or tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry
	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	votes    *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polls_http_in_flight_requests",
			Help: "A gauge of requests currently being served.",
		}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polls_http_requests_total",
				Help: "A counter for requests to the polls server.",
			},
			[]string{"code", "method"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polls_http_request_duration_seconds",
				Help:    "A histogram of request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		votes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polls_votes_total",
				Help: "Votes recorded, by submission source.",
			},
			[]string{"source"},
		),
	}

	m.registry.MustRegister(
		m.inFlight,
		m.requests,
		m.duration,
		m.votes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Middleware wraps next with in-flight, counter and latency instrumentation.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return promhttp.InstrumentHandlerInFlight(m.inFlight,
		promhttp.InstrumentHandlerCounter(m.requests,
			promhttp.InstrumentHandlerDuration(m.duration, next),
		),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// VoteRecorded counts a successful vote.
func (m *Metrics) VoteRecorded(source string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(source).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
