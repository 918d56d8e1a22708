// Package prometheus exposes run metrics: source traffic, resolution tiers,
// and emitted row counts.  All record methods are safe on a nil receiver so
// metrics stay optional.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trialdossier"

// Metrics bundles the pipeline's collectors.
type Metrics struct {
	registry *prometheus.Registry

	sourceRequests *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	rowsEmitted    *prometheus.CounterVec
	cacheOutcomes  *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
}

// NewMetrics builds and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		sourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "External source requests by source and outcome.",
		}, []string{"source", "outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Mention resolutions by kind and tier (tier \"none\" means unresolved).",
		}, []string{"kind", "tier"}),
		rowsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_emitted_total",
			Help:      "Dossier rows written by shape.",
		}, []string{"shape"}),
		cacheOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_outcomes_total",
			Help:      "Annotation cache lookups by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end pipeline run duration.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"shape"}),
	}

	registry.MustRegister(
		m.sourceRequests,
		m.resolutions,
		m.rowsEmitted,
		m.cacheOutcomes,
		m.runDuration,
	)
	return m
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSourceRequest counts one external source request.
func (m *Metrics) RecordSourceRequest(source, outcome string) {
	if m == nil {
		return
	}
	m.sourceRequests.WithLabelValues(source, outcome).Inc()
}

// RecordResolution counts one mention resolution outcome.
func (m *Metrics) RecordResolution(kind, tier string) {
	if m == nil {
		return
	}
	if tier == "" {
		tier = "none"
	}
	m.resolutions.WithLabelValues(kind, tier).Inc()
}

// RecordRows counts emitted dossier rows.
func (m *Metrics) RecordRows(shape string, n int) {
	if m == nil {
		return
	}
	m.rowsEmitted.WithLabelValues(shape).Add(float64(n))
}

// RecordCacheOutcome counts a cache hit or miss.
func (m *Metrics) RecordCacheOutcome(outcome string) {
	if m == nil {
		return
	}
	m.cacheOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveRunDuration records one run's wall-clock seconds.
func (m *Metrics) ObserveRunDuration(shape string, seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(shape).Observe(seconds)
}
