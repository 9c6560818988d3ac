// Package metrics exposes Prometheus instrumentation for the submission
// pipeline.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline counters on a private registry so multiple
// instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	submissions *prometheus.CounterVec
	calls       *prometheus.CounterVec
	cacheHits   prometheus.Counter
}

// New constructs a Metrics set with Go runtime collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_submissions_total",
			Help: "Form submissions by form id and outcome.",
		}, []string{"form", "outcome"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formflow_external_calls_total",
			Help: "External API calls by phase and result.",
		}, []string{"phase", "result"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formflow_call_cache_hits_total",
			Help: "External call results served from cache.",
		}),
	}
	registry.MustRegister(m.submissions, m.calls, m.cacheHits)
	return m
}

// ObserveSubmission counts one submission outcome ("accepted" or "rejected").
func (m *Metrics) ObserveSubmission(formID int64, outcome string) {
	m.submissions.WithLabelValues(strconv.FormatInt(formID, 10), outcome).Inc()
}

// ObserveCall counts one external call by phase and result ("ok" or "error").
func (m *Metrics) ObserveCall(phase, result string) {
	m.calls.WithLabelValues(phase, result).Inc()
}

// ObserveCacheHit counts one cache-served call result.
func (m *Metrics) ObserveCacheHit() {
	m.cacheHits.Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
