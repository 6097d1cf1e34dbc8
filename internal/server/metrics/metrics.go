// Package metrics exposes the server's Prometheus metrics and the per-request
// step timings reported in the Server-Timing header.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sigauth"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	StepDuration *prometheus.HistogramVec
	Outcomes     *prometheus.CounterVec
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_step_duration_seconds",
			Help:      "Histogram of authentication step latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Total number of authentication results by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.StepDuration,
		m.Outcomes,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry to tests and embedders.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, fmt.Sprint(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) Outcome(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(endpoint, outcome).Inc()
}

// Measure runs fn and records how long it took as step, both in the
// step histogram and in the request's Timings when ctx carries one.
func (m *Metrics) Measure(ctx context.Context, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	if m != nil {
		m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
	}
	if t := TimingsFrom(ctx); t != nil {
		t.add(step, d)
	}
	return err
}

type timing struct {
	name string
	dur  time.Duration
}

// Timings collects the measured steps of one request.
type Timings struct {
	mu      sync.Mutex
	entries []timing
}

type timingsKey struct{}

// WithTimings attaches a fresh Timings to ctx.
func WithTimings(ctx context.Context) (context.Context, *Timings) {
	t := &Timings{}
	return context.WithValue(ctx, timingsKey{}, t), t
}

func TimingsFrom(ctx context.Context) *Timings {
	t, _ := ctx.Value(timingsKey{}).(*Timings)
	return t
}

func (t *Timings) add(name string, d time.Duration) {
	t.mu.Lock()
	t.entries = append(t.entries, timing{name: name, dur: d})
	t.mu.Unlock()
}

// Header renders the timings as a Server-Timing header value, durations in
// milliseconds. It returns "" when nothing was measured.
func (t *Timings) Header() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	parts := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		parts = append(parts, fmt.Sprintf("%s;dur=%.3f", e.name, float64(e.dur.Microseconds())/1000))
	}
	return strings.Join(parts, ", ")
}
