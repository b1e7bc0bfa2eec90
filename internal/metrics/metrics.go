// Package metrics holds the Prometheus collectors for simulations, field
// fetches, translation and the HTTP API. Collectors live on a dedicated
// registry so tests and multiple servers never collide on the default one.
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

const namespace = "foresight"

// CustomScenario is the realized label for scenarios outside the known set.
const CustomScenario = "custom"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	simulations   *prometheus.CounterVec
	steps         prometheus.Counter
	realized      *prometheus.CounterVec
	finalEntropy  prometheus.Histogram
	fieldFetches  *prometheus.CounterVec
	translations  *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		simulations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Simulations run, by kind (simulate, step, battle)",
		}, []string{"kind"}),

		steps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_steps_total",
			Help:      "Engine iterations executed across all simulations",
		}),

		realized: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realized_total",
			Help:      "Collapses by realized scenario",
		}, []string{"scenario"}),

		finalEntropy: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "final_entropy_bits",
			Help:      "Shannon entropy of the distribution at the end of a simulation",
			Buckets:   prometheus.LinearBuckets(0, 0.25, 14), // 0 to 3.25 bits
		}),

		fieldFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_fetches_total",
			Help:      "Field context fetches by resulting status",
		}, []string{"status"}),

		translations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Argument translations by result",
		}, []string{"result"}),

		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter, by surface",
		}, []string{"surface"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),

		httpDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"route"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSimulation records one finished simulation. Realized names missing
// from known are counted under CustomScenario so request-supplied names
// never become label values.
func (m *Metrics) ObserveSimulation(kind string, steps int, realized []string, known map[string]bool, entropy float64) {
	if m == nil {
		return
	}
	m.simulations.WithLabelValues(kind).Inc()
	m.steps.Add(float64(steps))
	for _, name := range realized {
		if name == "" {
			continue
		}
		if !known[name] {
			name = CustomScenario
		}
		m.realized.WithLabelValues(name).Inc()
	}
	m.finalEntropy.Observe(entropy)
}

// ObserveFieldFetch records a field fetch outcome ("ok", "no_data", "error").
func (m *Metrics) ObserveFieldFetch(status string) {
	if m == nil {
		return
	}
	m.fieldFetches.WithLabelValues(status).Inc()
}

// ObserveTranslation records a translation outcome ("ok", "error", "skipped").
func (m *Metrics) ObserveTranslation(result string) {
	if m == nil {
		return
	}
	m.translations.WithLabelValues(result).Inc()
}

// ObserveRateLimited records a rejected request on surface ("http", "mcp").
func (m *Metrics) ObserveRateLimited(surface string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(surface).Inc()
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDurations.WithLabelValues(route).Observe(elapsed.Seconds())
}
