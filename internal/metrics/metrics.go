// Package metrics provides Prometheus metrics collection for the box simulator.
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

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTPRequestDuration tracks HTTP request duration by method, route, and status code.
	HTTPRequestDuration *prometheus.HistogramVec
	// HTTPRequestTotal tracks total HTTP requests by method, route, and status code.
	HTTPRequestTotal *prometheus.CounterVec
	// SimulationsTotal counts simulations by chosen policy, or "error".
	SimulationsTotal *prometheus.CounterVec
	// SimulationDuration tracks how long packing plus reporting took.
	SimulationDuration prometheus.Histogram
	// BoxesGenerated tracks the box count of chosen results.
	BoxesGenerated prometheus.Histogram
	// OversizedBoxesTotal counts boxes opened for products exceeding the limits.
	OversizedBoxesTotal prometheus.Counter
	// OrderLinesTotal counts order lines fed into simulations.
	OrderLinesTotal prometheus.Counter
}

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		SimulationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "box_simulations_total",
				Help: "Total number of box simulations by selected policy",
			},
			[]string{"policy"},
		),
		SimulationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "box_simulation_duration_seconds",
				Help:    "Box simulation duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5},
			},
		),
		BoxesGenerated: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "box_simulation_boxes",
				Help:    "Number of boxes in the selected packing",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		OversizedBoxesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "box_simulation_oversized_boxes_total",
				Help: "Total number of boxes holding a product that exceeds the box limits",
			},
		),
		OrderLinesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "box_simulation_order_lines_total",
				Help: "Total number of order lines simulated",
			},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSimulation records a finished simulation.
func (m *Metrics) RecordSimulation(duration time.Duration, policy string, lines, boxes, oversized int) {
	m.SimulationDuration.Observe(duration.Seconds())
	m.SimulationsTotal.WithLabelValues(policy).Inc()
	m.OrderLinesTotal.Add(float64(lines))
	m.BoxesGenerated.Observe(float64(boxes))
	m.OversizedBoxesTotal.Add(float64(oversized))
}

// RecordSimulationError records a simulation that did not complete.
func (m *Metrics) RecordSimulationError(duration time.Duration) {
	m.SimulationDuration.Observe(duration.Seconds())
	m.SimulationsTotal.WithLabelValues("error").Inc()
}

// Middleware collects HTTP metrics. Routes are labelled by their mux pattern
// when one matched, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(rec.status)
		m.HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.HTTPRequestTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
