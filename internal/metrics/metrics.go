// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway collectors on a private registry, so several
// servers (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	proxyRequests    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	rateLimited      prometheus.Counter
	authEvents       *prometheus.CounterVec
}

// New registers the gateway collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		proxyRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_proxy_requests_total",
				Help: "Requests handled by the proxy route, by resource prefix and response status",
			},
			[]string{"prefix", "status"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_upstream_duration_seconds",
				Help:    "Upstream round-trip time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"prefix"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_proxy_requests_in_flight",
				Help: "Proxy requests currently waiting on the upstream",
			},
		),
		rateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_rate_limited_total",
				Help: "Requests rejected with 429 by the rate limiter",
			},
		),
		authEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_auth_events_total",
				Help: "Login, refresh and logout attempts by outcome",
			},
			[]string{"event", "result"},
		),
	}
}

// ObserveProxy records a finished proxy request. A zero duration means the
// upstream was never contacted.
func (m *Metrics) ObserveProxy(prefix string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if prefix == "" {
		prefix = "unknown"
	}
	m.proxyRequests.WithLabelValues(prefix, strconv.Itoa(status)).Inc()
	if duration > 0 {
		m.upstreamDuration.WithLabelValues(prefix).Observe(duration.Seconds())
	}
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// AuthEvent counts an auth attempt; event is login, refresh or logout.
func (m *Metrics) AuthEvent(event string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.authEvents.WithLabelValues(event, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
