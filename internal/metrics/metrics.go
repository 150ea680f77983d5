// Package metrics exposes Prometheus collectors for the console and its API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	backendCallsTotal          *prometheus.CounterVec
	backendCallDurationSeconds *prometheus.HistogramVec
	backendInFlight            prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"method", "route"},
		)

		backendCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowfact_backend_calls_total",
				Help: "Outbound backend calls, labeled by endpoint and result code (or \"error\").",
			},
			[]string{"endpoint", "code"},
		)

		backendCallDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowfact_backend_call_duration_seconds",
				Help:    "Outbound backend call latency, labeled by endpoint.",
				Buckets: []float64{0.1, 0.5, 1, 5, 30, 120, 600, 1800, 9000},
			},
			[]string{"endpoint"},
		)

		backendInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowfact_backend_calls_in_flight",
				Help: "Number of backend calls currently awaiting a response.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveBackendCall records one completed outbound call. A zero code marks a transport failure.
func ObserveBackendCall(endpoint string, code int, duration time.Duration) {
	Init()
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	backendCallsTotal.WithLabelValues(endpoint, label).Inc()
	backendCallDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// IncBackendInFlight increments the in-flight gauge.
func IncBackendInFlight() {
	Init()
	backendInFlight.Inc()
}

// DecBackendInFlight decrements the in-flight gauge.
func DecBackendInFlight() {
	Init()
	backendInFlight.Dec()
}
