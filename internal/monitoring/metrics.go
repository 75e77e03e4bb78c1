// Package monitoring exposes Prometheus instrumentation for the coverage and
// heatmap engines.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors shared by the engines and the API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheClears      prometheus.Counter
	CoverageDuration prometheus.Histogram
	CoveragePoints   prometheus.Histogram
	HeatmapFallbacks *prometheus.CounterVec
	HeatmapDuration  *prometheus.HistogramVec
	DroppedRows      *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	DataAlerts       *prometheus.GaugeVec
}

// NewMetrics registers all collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "coverage",
			Name:      "cache_hits_total",
			Help:      "Coverage-grid cache hits.",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: "coverage",
			Name:      "cache_misses_total",
			Help:      "Coverage-grid cache misses.",
		}),
		CacheClears: f.NewCounter(prometheus.CounterOpts{
			Namespace: "coverage",
			Name:      "cache_clears_total",
			Help:      "Full clears of the coverage-grid cache at capacity.",
		}),
		CoverageDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coverage",
			Name:      "grid_duration_seconds",
			Help:      "Time to compute an uncached coverage grid.",
			Buckets:   prometheus.DefBuckets,
		}),
		CoveragePoints: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coverage",
			Name:      "grid_points",
			Help:      "Covered points in a computed coverage grid.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		}),
		HeatmapFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heatmap",
			Name:      "fallbacks_total",
			Help:      "Heatmap generations answered by the fallback strategy.",
		}, []string{"kind"}),
		HeatmapDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "heatmap",
			Name:      "duration_seconds",
			Help:      "Heatmap generation time by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		DroppedRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coverage",
			Name:      "dropped_rows_total",
			Help:      "Input rows excluded for data-quality reasons.",
		}, []string{"source"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		DataAlerts: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "coverage",
			Name:      "data_alerts",
			Help:      "Data-quality alerts raised by the last load, by type.",
		}, []string{"type"}),
	}
}

// CacheHit records a coverage cache hit.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// CacheMiss records a coverage cache miss.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// CacheCleared records a full cache clear.
func (m *Metrics) CacheCleared() {
	if m != nil {
		m.CacheClears.Inc()
	}
}

// ObserveCoverage records the duration and size of a computed grid.
func (m *Metrics) ObserveCoverage(d time.Duration, points int) {
	if m != nil {
		m.CoverageDuration.Observe(d.Seconds())
		m.CoveragePoints.Observe(float64(points))
	}
}

// HeatmapFallback records a fallback for the given heatmap kind.
func (m *Metrics) HeatmapFallback(kind string) {
	if m != nil {
		m.HeatmapFallbacks.WithLabelValues(kind).Inc()
	}
}

// ObserveHeatmap records heatmap generation time.
func (m *Metrics) ObserveHeatmap(kind string, d time.Duration) {
	if m != nil {
		m.HeatmapDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// Dropped records n rows excluded from source.
func (m *Metrics) Dropped(source string, n int) {
	if m != nil && n > 0 {
		m.DroppedRows.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveRequest records an HTTP request.
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(route, status).Observe(d.Seconds())
	}
}

// RecordAlerts sets the alert gauge to the count of each alert type.
func (m *Metrics) RecordAlerts(alerts []Alert) {
	if m == nil {
		return
	}
	m.DataAlerts.Reset()
	for _, a := range alerts {
		m.DataAlerts.WithLabelValues(string(a.Type)).Inc()
	}
}
