package checks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/internal/domain"
)

// countingMetrics tallies counter and histogram calls by metric name.
type countingMetrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string]int
	gauges     map[string]float64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		counters:   map[string]float64{},
		histograms: map[string]int{},
		gauges:     map[string]float64{},
	}
}

func (m *countingMetrics) RecordLatency(string, time.Duration, map[string]string) {}

func (m *countingMetrics) RecordCounter(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[metric] += value
}

func (m *countingMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[metric] = value
}

func (m *countingMetrics) RecordHistogram(metric string, _ float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[metric]++
}

func even(symbol string, n int) []domain.BallotRecord {
	out := make([]domain.BallotRecord, n)
	for i := range n {
		out[i] = box(symbol, fmt.Sprint(i+1),
			domain.Counts{Suffrage: 200, Total: 100, Valid: 100},
			map[string]int{"A": 60, "B": 40})
	}
	return out
}

func newScorer(t *testing.T, cfg SettlementConfig) (*SettlementScorer, *middleware.Recorder) {
	t.Helper()
	rec := &middleware.Recorder{}
	s, err := NewSettlementScorer("settlement", cfg, rec, nil)
	require.NoError(t, err)
	return s, rec
}

func TestNewSettlementScorer(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := NewSettlementScorer("settlement", DefaultSettlementConfig(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "settlement", s.Name())
		assert.NoError(t, s.Validate())
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := NewSettlementScorer("", DefaultSettlementConfig(), nil, nil)
		assert.ErrorIs(t, err, ErrEmptyCheckName)
	})

	invalid := []struct {
		name   string
		mutate func(*SettlementConfig)
	}{
		{"zero group size", func(c *SettlementConfig) { c.MinGroupSize = 0 }},
		{"zero alert", func(c *SettlementConfig) { c.DistanceAlert = 0 }},
		{"alert above maximum distance", func(c *SettlementConfig) { c.DistanceAlert = 2.5 }},
		{"zero workers", func(c *SettlementConfig) { c.Workers = 0 }},
		{"negative warnings", func(c *SettlementConfig) { c.MismatchWarnings = -1 }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSettlementConfig()
			tt.mutate(&cfg)
			s, err := NewSettlementScorer("settlement", cfg, nil, nil)
			assert.Error(t, err)
			assert.Nil(t, s)
		})
	}
}

// TestSettlementScorer_GroupSize verifies the cutoff: four boxes are never
// scored, five identical boxes all score zero.
func TestSettlementScorer_GroupSize(t *testing.T) {
	s, diag := newScorer(t, DefaultSettlementConfig())

	records := append(even("10", 4), even("20", 5)...)
	scores, err := s.Score(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, scores, len(records))

	for i := range 4 {
		assert.Nil(t, scores[i].Distance, "record %d of a 4-box settlement should be unscored", i)
		assert.Empty(t, scores[i].Issues)
	}
	for i := 4; i < 9; i++ {
		require.NotNil(t, scores[i].Distance, "record %d of a 5-box settlement should be scored", i)
		assert.InDelta(t, 0, *scores[i].Distance, 1e-12)
		assert.Empty(t, scores[i].Issues)
	}
	assert.Empty(t, diag.Lines())
}

// TestSettlementScorer_Interleaved verifies grouping is by symbol, not by
// adjacency, and results stay index-aligned.
func TestSettlementScorer_Interleaved(t *testing.T) {
	s, _ := newScorer(t, DefaultSettlementConfig())

	a := even("1", 5)
	b := even("2", 3)
	records := []domain.BallotRecord{a[0], b[0], a[1], b[1], a[2], b[2], a[3], a[4]}

	scores, err := s.Score(context.Background(), records)
	require.NoError(t, err)

	for i, rec := range records {
		if rec.Label().Symbol == "1" {
			assert.NotNil(t, scores[i].Distance, "index %d", i)
		} else {
			assert.Nil(t, scores[i].Distance, "index %d", i)
		}
	}
}

// TestSettlementScorer_Alert verifies the distance value and the advisory
// line for a box far from its settlement.
func TestSettlementScorer_Alert(t *testing.T) {
	s, diag := newScorer(t, DefaultSettlementConfig())

	records := make([]domain.BallotRecord, 0, 5)
	for i := range 4 {
		records = append(records, box("5", fmt.Sprint(i+1),
			domain.Counts{Total: 100, Valid: 100}, map[string]int{"A": 100, "B": 0}))
	}
	records = append(records, box("5", "5",
		domain.Counts{Total: 100, Valid: 100}, map[string]int{"A": 0, "B": 100}))

	scores, err := s.Score(context.Background(), records)
	require.NoError(t, err)

	// Settlement shares are A 0.8, B 0.2.
	for i := range 4 {
		require.NotNil(t, scores[i].Distance)
		assert.InDelta(t, 0.08, *scores[i].Distance, 1e-9)
	}
	require.NotNil(t, scores[4].Distance)
	assert.InDelta(t, 1.28, *scores[4].Distance, 1e-9)

	assert.Equal(t, []string{"Town 5 5 - Dist from settlement average is 1.280"}, diag.Lines())
}

// TestSettlementScorer_KeyMismatch verifies a box without party votes is
// scored with zero shares, carries an issue, and produces a warning.
func TestSettlementScorer_KeyMismatch(t *testing.T) {
	s, diag := newScorer(t, DefaultSettlementConfig())

	records := even("3", 4)
	records = append(records, box("3", "9",
		domain.Counts{Total: 4, Disqualified: 4}, map[string]int{"A": 0, "B": 0}))

	scores, err := s.Score(context.Background(), records)
	require.NoError(t, err)

	// Settlement shares are A 0.6, B 0.4; the empty box counts as 0, 0.
	require.NotNil(t, scores[4].Distance)
	assert.InDelta(t, 0.52, *scores[4].Distance, 1e-9)
	require.Len(t, scores[4].Issues, 1)
	assert.Equal(t, domain.IssueSettlementKeyMismatch, scores[4].Issues[0].Kind)
	assert.Equal(t,
		"Party keys differ from settlement Town 3 (0 of 2 parties); distance counts missing shares as 0",
		scores[4].Issues[0].Message)

	for i := range 4 {
		assert.Empty(t, scores[i].Issues)
	}

	assert.Equal(t, []string{
		"Mismatching keys between Town 3 and its ballot 9: 0 ballot parties, 2 settlement parties",
		"Town 3 9 - Dist from settlement average is 0.520",
	}, diag.Lines())
}

// TestSettlementScorer_MismatchThrottle verifies repeated key-mismatch
// warnings are summarized while every mismatch is still recorded.
func TestSettlementScorer_MismatchThrottle(t *testing.T) {
	cfg := DefaultSettlementConfig()
	cfg.MismatchWarnings = 2
	cfg.DistanceAlert = 2
	s, diag := newScorer(t, cfg)

	records := []domain.BallotRecord{
		box("4", "1", domain.Counts{Total: 10, Valid: 10}, map[string]int{"A": 10}),
	}
	for i := range 5 {
		records = append(records, box("4", fmt.Sprint(i+2), domain.Counts{}, map[string]int{"A": 0}))
	}

	scores, err := s.Score(context.Background(), records)
	require.NoError(t, err)

	mismatches := 0
	for _, sc := range scores {
		mismatches += len(sc.Issues)
	}
	assert.Equal(t, 5, mismatches)

	lines := diag.Lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "its ballot 2")
	assert.Contains(t, lines[1], "its ballot 3")
	assert.Equal(t, "3 further key-mismatch warnings suppressed", lines[2])
}

// TestSettlementScorer_WorkerIndependence verifies scores and diagnostics
// do not depend on the worker count.
func TestSettlementScorer_WorkerIndependence(t *testing.T) {
	var records []domain.BallotRecord
	for g := range 12 {
		symbol := fmt.Sprint(100 + g)
		for i := range 6 {
			a := 10 + (g*7+i*13)%90
			votes := map[string]int{"A": a, "B": 100 - a}
			if i == 5 && g%3 == 0 {
				votes = map[string]int{"A": 0, "B": 100}
			}
			records = append(records, box(symbol, fmt.Sprint(i+1),
				domain.Counts{Total: 100, Valid: 100}, votes))
		}
	}

	run := func(workers int) ([]SettlementScore, []string) {
		cfg := DefaultSettlementConfig()
		cfg.Workers = workers
		cfg.DistanceAlert = 0.1
		s, diag := newScorer(t, cfg)
		scores, err := s.Score(context.Background(), records)
		require.NoError(t, err)
		return scores, diag.Lines()
	}

	serialScores, serialLines := run(1)
	parallelScores, parallelLines := run(8)

	assert.Equal(t, serialLines, parallelLines)
	require.Len(t, parallelScores, len(serialScores))
	for i := range serialScores {
		require.NotNil(t, serialScores[i].Distance)
		require.NotNil(t, parallelScores[i].Distance)
		assert.Equal(t, *serialScores[i].Distance, *parallelScores[i].Distance)
	}
}

func TestSettlementScorer_Metrics(t *testing.T) {
	metrics := newCountingMetrics()
	s, err := NewSettlementScorer("settlement", DefaultSettlementConfig(), nil, metrics)
	require.NoError(t, err)

	records := even("1", 4)
	records = append(records, box("1", "5", domain.Counts{}, map[string]int{}))
	records = append(records, even("2", 2)...)

	_, err = s.Score(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 5, metrics.histograms["settlement_distance"])
	assert.Equal(t, 1.0, metrics.counters["key_mismatches_total"])
	assert.Equal(t, 1.0, metrics.gauges["settlements_scored"])
	// The empty box sits at 0.52 from the settlement.
	assert.Equal(t, 1.0, metrics.counters["distance_alerts_total"])
}

func TestSettlementScorer_Cancelled(t *testing.T) {
	s, _ := newScorer(t, DefaultSettlementConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Score(ctx, even("1", 5))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSettlementScorer_Empty(t *testing.T) {
	s, diag := newScorer(t, DefaultSettlementConfig())

	scores, err := s.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
	assert.Empty(t, diag.Lines())
}
