// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package telemetry builds the process logger and the Prometheus metrics
// shared by the aggregator, the embedding service, and the vector index.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "research_rag"

// NewLogger returns a zerolog logger writing to w. Console output is used
// unless jsonOutput is set. Unknown levels fall back to info.
func NewLogger(w io.Writer, level string, jsonOutput bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Metrics holds the collectors recorded by the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	providerResults  *prometheus.CounterVec
	duplicates       prometheus.Counter
	indexRows        prometheus.Gauge
	indexSyncs       *prometheus.CounterVec
	chunksIngested   *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry,
// including the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Search provider calls by outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Search provider call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		providerResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_results_total",
			Help:      "Paper records returned by each provider.",
		}, []string{"provider"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Paper records merged during deduplication.",
		}),
		indexRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_rows",
			Help:      "Vectors currently held by the index.",
		}),
		indexSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_syncs_total",
			Help:      "Durable store operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		chunksIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks created and stored by ingestion.",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.providerRequests,
		m.providerLatency,
		m.providerResults,
		m.duplicates,
		m.indexRows,
		m.indexSyncs,
		m.chunksIngested,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveProvider records one provider call.
func (m *Metrics) ObserveProvider(provider string, elapsed time.Duration, results int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
	m.providerResults.WithLabelValues(provider).Add(float64(results))
}

// AddDuplicates records records merged by deduplication.
func (m *Metrics) AddDuplicates(n int) {
	if m == nil {
		return
	}
	m.duplicates.Add(float64(n))
}

// SetIndexRows records the current index size.
func (m *Metrics) SetIndexRows(n int) {
	if m == nil {
		return
	}
	m.indexRows.Set(float64(n))
}

// ObserveSync records a durable store load or persist.
func (m *Metrics) ObserveSync(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.indexSyncs.WithLabelValues(op, outcome).Inc()
}

// AddChunks records chunks at an ingestion stage ("created" or "stored").
func (m *Metrics) AddChunks(stage string, n int) {
	if m == nil {
		return
	}
	m.chunksIngested.WithLabelValues(stage).Add(float64(n))
}
