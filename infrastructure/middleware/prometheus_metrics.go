// Package middleware provides cross-cutting concerns for the tally analyzer:
// Prometheus metrics and the diagnostics sinks operator lines are written to.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-tally/internal/ports"
)

// distanceBuckets cover the squared distance between two points on the
// probability simplex, which is bounded by 2.
var distanceBuckets = []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2}

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It tracks records read, issues found by kind, settlement distances, and
// stage durations for a single analysis run.
//
// Each instance owns its registry, so several instances can coexist in one
// process and a finished run can be dumped with WriteTextfile.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	recordsTotal     *prometheus.CounterVec
	issuesTotal      *prometheus.CounterVec
	distance         *prometheus.HistogramVec
	executionLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with all
// metrics registered in a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,

		// Tally-specific metrics.
		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_records_total",
				Help: "Total number of ballot records read.",
			},
			[]string{"source", "unit"},
		),
		issuesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_issues_total",
				Help: "Total number of issues attached to ballot records, by kind.",
			},
			[]string{"kind", "unit"},
		),
		distance: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_settlement_distance",
				Help:    "Squared distance of ballot boxes from their settlement average.",
				Buckets: distanceBuckets,
			},
			[]string{"unit"},
		),

		// General execution metrics.
		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_stage_duration_seconds",
				Help:    "Execution time of analysis stages.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "unit"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_operations_total",
				Help: "Total number of counted analysis events.",
			},
			[]string{"operation", "status", "unit"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tally_run_state",
				Help: "Current values describing the analysis run.",
			},
			[]string{"metric", "unit"},
		),
	}
}

// Registry returns the registry the metrics are registered in.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// WriteTextfile writes every gathered metric to path in the Prometheus text
// format, suitable for the node exporter's textfile collector.
func (pm *PrometheusMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, pm.registry); err != nil {
		return ports.NewMetricsError(path, "write_textfile", err)
	}
	return nil
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.executionLatency.WithLabelValues(operation, unitLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	unit := unitLabel(labels)

	switch metric {
	case "records_total":
		pm.recordsTotal.WithLabelValues(labels["source"], unit).Add(value)
	case "issues_total":
		pm.issuesTotal.WithLabelValues(labels["kind"], unit).Add(value)
	case "sink_failures_total":
		pm.operationCounter.WithLabelValues("sink_write", "failed", unit).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, "success", unit).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric, unitLabel(labels)).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram. Settlement distances get their own
// buckets; everything else is treated as a duration in seconds.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	unit := unitLabel(labels)
	if metric == "settlement_distance" {
		pm.distance.WithLabelValues(unit).Observe(value)
		return
	}
	pm.executionLatency.WithLabelValues(metric, unit).Observe(value)
}

func unitLabel(labels map[string]string) string {
	if unit := labels["unit"]; unit != "" {
		return unit
	}
	return "unknown"
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
