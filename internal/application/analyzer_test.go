package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tally/infrastructure/checks"
	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
	"github.com/ahrav/go-tally/internal/testutils"
)

// stubDetector returns a fixed issue for every record in the named box.
type stubDetector struct {
	name      string
	box       string
	issue     domain.Issue
	invalid   error
	nationals []domain.BallotRecord
}

func (s *stubDetector) Name() string    { return s.name }
func (s *stubDetector) Validate() error { return s.invalid }

func (s *stubDetector) Detect(_ context.Context, record, national domain.BallotRecord) []domain.Issue {
	s.nationals = append(s.nationals, national)
	if record.Label().BallotBox != s.box {
		return nil
	}
	return []domain.Issue{s.issue}
}

func newTestScorer(t *testing.T, diag ports.Diagnostics) *checks.SettlementScorer {
	t.Helper()
	scorer, err := checks.NewSettlementScorer("settlement", checks.DefaultSettlementConfig(), diag, nil)
	require.NoError(t, err)
	return scorer
}

func TestNewAnalyzer(t *testing.T) {
	reg := testutils.MustRegistry(t, "X", "x")
	scorer := newTestScorer(t, nil)

	tests := []struct {
		name      string
		registry  *domain.PartyRegistry
		detectors []ports.Detector
		scorer    SettlementScorer
		wantErr   error
	}{
		{name: "valid", registry: reg, detectors: []ports.Detector{&stubDetector{name: "a"}}, scorer: scorer},
		{name: "no detectors", registry: reg, scorer: scorer},
		{name: "nil registry", scorer: scorer, wantErr: ErrNilRegistry},
		{name: "nil scorer", registry: reg, wantErr: ErrNilScorer},
		{
			name:      "duplicate detector",
			registry:  reg,
			detectors: []ports.Detector{&stubDetector{name: "a"}, &stubDetector{name: "a"}},
			scorer:    scorer,
			wantErr:   ErrDuplicateDetector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAnalyzer(tt.registry, tt.detectors, tt.scorer)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, a)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, a)
		})
	}

	t.Run("detector validation failure", func(t *testing.T) {
		bad := errors.New("misconfigured")
		_, err := NewAnalyzer(reg, []ports.Detector{&stubDetector{name: "a", invalid: bad}}, scorer)
		assert.ErrorIs(t, err, bad)
		assert.ErrorContains(t, err, "detector a")
	})
}

func TestAnalyzer_Analyze(t *testing.T) {
	reg := testutils.MustRegistry(t, "X", "x", "Y", "y")

	// Five identical boxes in Town 1 form a scored settlement; the sixth
	// box is alone in its settlement and carries a stub issue.
	var records []domain.BallotRecord
	for i := 1; i <= 5; i++ {
		records = append(records, testutils.Ballot("Town", "1", fmt.Sprint(i)).Vote("x", 30).Vote("y", 70).Build())
	}
	records = append(records, testutils.Ballot("Village", "2", "9").Vote("x", 5).Vote("y", 5).Valid(12).Total(15).Build())

	first := &stubDetector{name: "first", box: "9", issue: domain.Issue{Kind: "stub", Message: "first finding"}}
	diag := &middleware.Recorder{}
	metrics := testutils.NewMetricsRecorder()
	consistency, err := checks.NewConsistencyChecker("consistency")
	require.NoError(t, err)

	a, err := NewAnalyzer(reg,
		[]ports.Detector{first, consistency},
		newTestScorer(t, diag),
		WithConsole(NewConsole(diag, reg)),
		WithMetrics(metrics),
	)
	require.NoError(t, err)

	analysis, err := a.Analyze(context.Background(), records)
	require.NoError(t, err)

	t.Run("national baseline", func(t *testing.T) {
		assert.Equal(t, domain.NationalLabel, analysis.National.Label())
		x, _ := analysis.National.VotesFor("x")
		y, _ := analysis.National.VotesFor("y")
		assert.Equal(t, 155, x)
		assert.Equal(t, 355, y)
		for _, n := range first.nationals {
			assert.Equal(t, analysis.National.Counts(), n.Counts())
		}
	})

	t.Run("records in input order", func(t *testing.T) {
		require.Len(t, analysis.Records, len(records))
		for i, r := range analysis.Records {
			assert.Equal(t, records[i].Label(), r.Record.Label())
		}
	})

	t.Run("settlement distances", func(t *testing.T) {
		for _, r := range analysis.Records[:5] {
			require.NotNil(t, r.Distance)
			assert.InDelta(t, 0, *r.Distance, 1e-12)
			assert.Empty(t, r.Issues)
		}
		assert.Nil(t, analysis.Records[5].Distance)
	})

	t.Run("issues in detector order", func(t *testing.T) {
		issues := analysis.Records[5].Issues
		require.Len(t, issues, 3)
		assert.Equal(t, "first finding", issues[0].Message)
		assert.Equal(t, domain.IssueTotalMismatch, issues[1].Kind)
		assert.Equal(t, domain.IssuePartySumMismatch, issues[2].Kind)
		assert.Equal(t, 3, analysis.IssueCount())
	})

	t.Run("party order", func(t *testing.T) {
		require.Len(t, analysis.PartyOrder, 2)
		assert.Equal(t, "y", analysis.PartyOrder[0].Code)
		assert.Equal(t, "x", analysis.PartyOrder[1].Code)
	})

	t.Run("console issue block", func(t *testing.T) {
		lines := diag.Lines()
		assert.Contains(t, lines, issueRule)
		assert.Contains(t, lines, "Issues in ballot 9 (Village)")
		assert.Contains(t, lines, "first finding")
		assert.Contains(t, lines, fmt.Sprintf("%-20s: %s (%s)", "Settlement", "*", "*"))
	})

	t.Run("metrics", func(t *testing.T) {
		assert.Equal(t, 3.0, metrics.Counter("issues_total"))
		assert.Equal(t, 1.0, metrics.CounterWith("issues_total", "kind", string(domain.IssueTotalMismatch)))
		assert.Equal(t, 1.0, metrics.CounterWith("issues_total", "kind", "stub"))
		assert.Equal(t, 1, metrics.Latencies("detect"))
		assert.Equal(t, 1, metrics.Latencies("score"))
	})
}

func TestAnalyzer_NationalScope(t *testing.T) {
	reg := testutils.MustRegistry(t, "X", "x")
	records := []domain.BallotRecord{
		testutils.Ballot("Town", "1", "1").Vote("x", 10).Build(),
		testutils.Ballot("Town", "1", "2").Vote("x", 20).Build(),
		testutils.Ballot("Town", "1", "12").Vote("x", 40).Build(),
	}

	tests := []struct {
		name  string
		scope NationalConfig
		want  int
	}{
		{name: "everything", scope: NationalConfig{SymbolPattern: "*", BoxPattern: "*"}, want: 70},
		{name: "no filter", scope: NationalConfig{}, want: 70},
		{name: "boxes starting with 1", scope: NationalConfig{SymbolPattern: "*", BoxPattern: "1*"}, want: 50},
		{name: "single character boxes", scope: NationalConfig{BoxPattern: "?"}, want: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAnalyzer(reg, nil, newTestScorer(t, nil), WithNationalScope(tt.scope))
			require.NoError(t, err)

			analysis, err := a.Analyze(context.Background(), records)
			require.NoError(t, err)
			x, _ := analysis.National.VotesFor("x")
			assert.Equal(t, tt.want, x)
		})
	}
}

func TestAnalyzer_Cancelled(t *testing.T) {
	reg := testutils.MustRegistry(t, "X", "x")
	a, err := NewAnalyzer(reg, nil, newTestScorer(t, nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Analyze(ctx, []domain.BallotRecord{testutils.Ballot("Town", "1", "1").Vote("x", 1).Build()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzer_Empty(t *testing.T) {
	reg := testutils.MustRegistry(t, "X", "x")
	a, err := NewAnalyzer(reg, nil, newTestScorer(t, nil))
	require.NoError(t, err)

	analysis, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, analysis.Records)
	assert.Zero(t, analysis.National.Counts())
	assert.Len(t, analysis.PartyOrder, 1)
}
