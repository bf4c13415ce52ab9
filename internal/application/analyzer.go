// Package application orchestrates an analysis run. It loads the party
// registry and ballot records through ports, runs the detectors against
// the national baseline, scores settlements, and assembles the report
// table handed to the sink.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-tally/infrastructure/checks"
	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

// Errors returned while assembling an Analyzer.
var (
	// ErrNilRegistry indicates that no party registry was supplied.
	ErrNilRegistry = errors.New("party registry is required")

	// ErrNilScorer indicates that no settlement scorer was supplied.
	ErrNilScorer = errors.New("settlement scorer is required")

	// ErrDuplicateDetector indicates two detectors share a name.
	ErrDuplicateDetector = errors.New("duplicate detector name")
)

// SettlementScorer scores records against their settlement aggregate. The
// result is index-aligned with records.
type SettlementScorer interface {
	Name() string
	Score(ctx context.Context, records []domain.BallotRecord) ([]checks.SettlementScore, error)
}

var _ SettlementScorer = (*checks.SettlementScorer)(nil)

// Analysis is the outcome of one analyzer pass.
type Analysis struct {
	// National is the aggregate every record was compared against.
	National domain.BallotRecord

	// Records holds one analyzed record per input record, in input order.
	Records []domain.AnalyzedRecord

	// PartyOrder lists registry parties by descending national votes.
	PartyOrder []domain.Party
}

// IssueCount returns the total number of issues across all records.
func (a *Analysis) IssueCount() int {
	n := 0
	for _, r := range a.Records {
		n += len(r.Issues)
	}
	return n
}

// Analyzer runs the detector pipeline over a batch of ballot records:
// national baseline, per-record detectors in registration order, then
// settlement scoring. It holds no per-run state and may be reused.
type Analyzer struct {
	registry  *domain.PartyRegistry
	detectors []ports.Detector
	scorer    SettlementScorer
	national  NationalConfig
	console   *Console
	logger    *slog.Logger
	metrics   ports.MetricsCollector
	tracer    trace.Tracer
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger.With("component", "analyzer")
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics ports.MetricsCollector) AnalyzerOption {
	return func(a *Analyzer) {
		if metrics != nil {
			a.metrics = metrics
		}
	}
}

// WithConsole sets where operator summaries are printed.
func WithConsole(console *Console) AnalyzerOption {
	return func(a *Analyzer) {
		if console != nil {
			a.console = console
		}
	}
}

// WithNationalScope overrides the wildcard patterns that select the
// national baseline.
func WithNationalScope(cfg NationalConfig) AnalyzerOption {
	return func(a *Analyzer) { a.national = cfg }
}

// NewAnalyzer assembles an Analyzer. Every detector is validated and
// detector names must be unique.
func NewAnalyzer(
	registry *domain.PartyRegistry,
	detectors []ports.Detector,
	scorer SettlementScorer,
	opts ...AnalyzerOption,
) (*Analyzer, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if scorer == nil {
		return nil, ErrNilScorer
	}

	seen := make(map[string]struct{}, len(detectors))
	for _, d := range detectors {
		if _, dup := seen[d.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDetector, d.Name())
		}
		seen[d.Name()] = struct{}{}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("detector %s: %w", d.Name(), err)
		}
	}

	a := &Analyzer{
		registry:  registry,
		detectors: detectors,
		scorer:    scorer,
		national:  NationalConfig{SymbolPattern: "*", BoxPattern: "*"},
		console:   NewConsole(middleware.Discard, registry),
		logger:    slog.Default().With("component", "analyzer"),
		metrics:   middleware.NopMetrics{},
		tracer:    otel.Tracer("analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze runs every check over records. Detector findings are advisory
// and never fail the run; only context cancellation does.
func (a *Analyzer) Analyze(ctx context.Context, records []domain.BallotRecord) (*Analysis, error) {
	ctx, span := a.tracer.Start(ctx, "Analyzer.Analyze",
		trace.WithAttributes(
			attribute.Int("records", len(records)),
			attribute.Int("detectors", len(a.detectors)),
		),
	)
	defer span.End()

	fail := func(err error) (*Analysis, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	national := domain.CountMatching(records, domain.NationalLabel, a.national.SymbolPattern, a.national.BoxPattern)
	a.console.Record(national)

	analyzed, err := a.detect(ctx, records, national)
	if err != nil {
		return fail(err)
	}

	start := time.Now()
	scores, err := a.scorer.Score(ctx, records)
	a.metrics.RecordLatency("score", time.Since(start), map[string]string{"unit": a.scorer.Name()})
	if err != nil {
		return fail(err)
	}
	for i, s := range scores {
		analyzed[i].Issues = append(analyzed[i].Issues, s.Issues...)
		analyzed[i].Distance = s.Distance
	}

	result := &Analysis{
		National:   national,
		Records:    analyzed,
		PartyOrder: PartyOrder(a.registry, national),
	}
	a.recordIssues(result)
	span.SetAttributes(attribute.Int("issues", result.IssueCount()))
	a.logger.Info("analysis complete",
		"records", len(records),
		"issues", result.IssueCount(),
		"national_valid", national.Counts().Valid,
	)
	return result, nil
}

// detect runs the per-record detectors and prints the issue block of every
// record that has findings.
func (a *Analyzer) detect(ctx context.Context, records []domain.BallotRecord, national domain.BallotRecord) ([]domain.AnalyzedRecord, error) {
	start := time.Now()
	defer func() {
		a.metrics.RecordLatency("detect", time.Since(start), map[string]string{"unit": "analyzer"})
	}()

	out := make([]domain.AnalyzedRecord, len(records))
	for i, rec := range records {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("analysis cancelled: %w", err)
			}
		}
		var issues []domain.Issue
		for _, d := range a.detectors {
			issues = append(issues, d.Detect(ctx, rec, national)...)
		}
		out[i] = domain.AnalyzedRecord{Record: rec, Issues: issues}
		if len(issues) > 0 {
			a.console.Issues(rec, issues)
		}
	}
	return out, nil
}

func (a *Analyzer) recordIssues(result *Analysis) {
	byKind := make(map[domain.IssueKind]int)
	for _, r := range result.Records {
		for _, issue := range r.Issues {
			byKind[issue.Kind]++
		}
	}
	for kind, n := range byKind {
		a.metrics.RecordCounter("issues_total", float64(n), map[string]string{
			"unit": "analyzer",
			"kind": string(kind),
		})
	}
}
