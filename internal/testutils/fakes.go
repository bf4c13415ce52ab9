package testutils

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var (
	_ ports.PartySource      = (*StaticParties)(nil)
	_ ports.BallotSource     = (*StaticBallots)(nil)
	_ ports.ReportSink       = (*MemorySink)(nil)
	_ ports.MetricsCollector = (*MetricsRecorder)(nil)
)

// StaticParties returns a fixed party list, or Err.
type StaticParties struct {
	List []domain.Party
	Err  error
}

// Parties implements ports.PartySource.
func (s *StaticParties) Parties(ctx context.Context) ([]domain.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return slices.Clone(s.List), nil
}

// StaticBallots returns fixed records after checking that every party code
// they carry is registered, the same contract the CSV source honors.
type StaticBallots struct {
	Records []domain.BallotRecord
	Err     error
}

// Ballots implements ports.BallotSource.
func (s *StaticBallots) Ballots(ctx context.Context, registry *domain.PartyRegistry) ([]domain.BallotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	for _, r := range s.Records {
		if err := registry.ValidateCoverage(r.PartyCodes()); err != nil {
			return nil, err
		}
	}
	return slices.Clone(s.Records), nil
}

// MemorySink keeps the last report written. Err, when set, is returned
// instead.
type MemorySink struct {
	Name string
	Err  error

	mu     sync.Mutex
	rows   [][]string
	writes int
}

// WriteReport implements ports.ReportSink.
func (s *MemorySink) WriteReport(ctx context.Context, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return ports.NewSinkError(s.Destination(), "write", s.Err)
	}
	if err := ctx.Err(); err != nil {
		return ports.NewSinkError(s.Destination(), "write", err)
	}
	if len(rows) == 0 {
		return ports.NewSinkError(s.Destination(), "encode", ports.ErrEmptyReport)
	}
	s.rows = make([][]string, len(rows))
	for i, r := range rows {
		s.rows[i] = slices.Clone(r)
	}
	s.writes++
	return nil
}

// Destination implements ports.ReportSink.
func (s *MemorySink) Destination() string {
	if s.Name == "" {
		return "memory"
	}
	return s.Name
}

// Rows returns the last report written.
func (s *MemorySink) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Writes returns how many reports were written.
func (s *MemorySink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// MetricsRecorder sums every recorded metric by name. Counters are also
// summed per label pair so tests can check label routing.
type MetricsRecorder struct {
	mu         sync.Mutex
	counters   map[string]float64
	labelSums  map[metricLabel]float64
	gauges     map[string]float64
	histograms map[string][]float64
	latencies  map[string]int
}

type metricLabel struct{ metric, key, value string }

// NewMetricsRecorder returns an empty recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{
		counters:   map[string]float64{},
		labelSums:  map[metricLabel]float64{},
		gauges:     map[string]float64{},
		histograms: map[string][]float64{},
		latencies:  map[string]int{},
	}
}

// RecordLatency implements ports.MetricsCollector.
func (m *MetricsRecorder) RecordLatency(operation string, _ time.Duration, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[operation]++
}

// RecordCounter implements ports.MetricsCollector.
func (m *MetricsRecorder) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metric] += value
	for k, v := range labels {
		m.labelSums[metricLabel{metric, k, v}] += value
	}
}

// RecordGauge implements ports.MetricsCollector.
func (m *MetricsRecorder) RecordGauge(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[metric] = value
}

// RecordHistogram implements ports.MetricsCollector.
func (m *MetricsRecorder) RecordHistogram(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[metric] = append(m.histograms[metric], value)
}

// Counter returns the summed value of a counter.
func (m *MetricsRecorder) Counter(metric string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[metric]
}

// CounterWith sums the counter over calls whose labels include key=value.
func (m *MetricsRecorder) CounterWith(metric, key, value string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.labelSums[metricLabel{metric, key, value}]
}

// Gauge returns the last value set for a gauge.
func (m *MetricsRecorder) Gauge(metric string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[metric]
}

// Observations returns the histogram values recorded for metric.
func (m *MetricsRecorder) Observations(metric string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.histograms[metric])
}

// Latencies returns how many latencies were recorded for operation.
func (m *MetricsRecorder) Latencies(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latencies[operation]
}
