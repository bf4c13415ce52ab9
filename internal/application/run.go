package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-tally/infrastructure/checks"
	"github.com/ahrav/go-tally/infrastructure/ingest"
	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/infrastructure/report"
	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

// Detector names used in logs, spans and metric labels.
const (
	ConsistencyCheckName = "consistency"
	SwitchCheckName      = "switch"
	SettlementCheckName  = "settlement"
)

// ErrMissingCollaborator indicates a Runner without a source or sink.
var ErrMissingCollaborator = errors.New("runner collaborator is required")

// Runner executes one analysis run: load the registry, read ballots,
// analyze, and write the report.
type Runner struct {
	// RunID tags log lines for this run. A random id is used when empty.
	RunID string

	Config  RunConfig
	Parties ports.PartySource
	Ballots ports.BallotSource
	Sink    ports.ReportSink

	// Detectors builds the detectors named in Config.Detectors. Nil uses
	// NewDetectorRegistry.
	Detectors *DetectorRegistry

	// Diag receives console summaries and scorer warnings. Nil discards.
	Diag    ports.Diagnostics
	Logger  *slog.Logger
	Metrics ports.MetricsCollector
}

// Result summarizes a completed run.
type Result struct {
	RunID       string
	Analysis    *Analysis
	Rows        [][]string
	Destination string
}

// NewRunner wires the CSV sources and the configured report sink from cfg.
// cfg must already be validated.
func NewRunner(
	ctx context.Context,
	cfg RunConfig,
	diag ports.Diagnostics,
	logger *slog.Logger,
	metrics ports.MetricsCollector,
) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ballots, err := ingest.NewCSVBallotSource(cfg.Inputs.Ballots, cfg.Inputs.Encoding, logger, metrics)
	if err != nil {
		return nil, err
	}

	var sink ports.ReportSink
	if cfg.Output.S3 != nil {
		s3Sink, err := report.NewS3Sink(ctx, *cfg.Output.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 sink: %w", err)
		}
		sink = s3Sink
	} else {
		sink = report.NewFileSink(cfg.Output.Path, logger)
	}

	return &Runner{
		Config:  cfg,
		Parties: ingest.NewCSVPartySource(cfg.Inputs.Parties, logger),
		Ballots: ballots,
		Sink:    sink,
		Diag:    diag,
		Logger:  logger,
		Metrics: metrics,
	}, nil
}

// Run performs the analysis. Registry, input and sink failures are fatal;
// everything the detectors find is reported in the result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.Parties == nil || r.Ballots == nil || r.Sink == nil {
		return nil, ErrMissingCollaborator
	}
	runID := r.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", runID)
	metrics := r.Metrics
	if metrics == nil {
		metrics = middleware.NopMetrics{}
	}
	diag := r.Diag
	if diag == nil {
		diag = middleware.Discard
	}
	start := time.Now()

	parties, err := r.Parties.Parties(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load parties: %w", err)
	}
	registry, err := domain.NewPartyRegistry(parties)
	if err != nil {
		return nil, fmt.Errorf("invalid party registry: %w", err)
	}
	console := NewConsole(diag, registry)
	console.Parties()

	records, err := r.Ballots.Ballots(ctx, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to load ballots: %w", err)
	}
	console.BallotCount(len(records))

	analyzer, err := r.analyzer(registry, console, diag, logger, metrics)
	if err != nil {
		return nil, err
	}
	analysis, err := analyzer.Analyze(ctx, records)
	if err != nil {
		return nil, err
	}

	rows := AssembleReport(analysis)
	console.SavingReport(r.Sink.Destination())
	if err := r.Sink.WriteReport(ctx, rows); err != nil {
		metrics.RecordCounter("sink_failures_total", 1, map[string]string{"unit": "runner"})
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	metrics.RecordGauge("ballot_boxes", float64(len(records)), map[string]string{"unit": "runner"})
	metrics.RecordGauge("parties", float64(registry.Len()), map[string]string{"unit": "runner"})
	metrics.RecordLatency("run", time.Since(start), map[string]string{"unit": "runner"})
	logger.Info("run complete",
		"destination", r.Sink.Destination(),
		"ballot_boxes", len(records),
		"issues", analysis.IssueCount(),
		"duration", time.Since(start),
	)

	return &Result{
		RunID:       runID,
		Analysis:    analysis,
		Rows:        rows,
		Destination: r.Sink.Destination(),
	}, nil
}

// analyzer builds the detector pipeline for registry.
func (r *Runner) analyzer(
	registry *domain.PartyRegistry,
	console *Console,
	diag ports.Diagnostics,
	logger *slog.Logger,
	metrics ports.MetricsCollector,
) (*Analyzer, error) {
	factories := r.Detectors
	if factories == nil {
		factories = NewDetectorRegistry()
	}
	if err := ValidateDetectorKinds(r.Config.Detectors, factories); err != nil {
		return nil, err
	}
	detectors, err := factories.CreateDetectors(r.Config.Detectors, r.Config, registry)
	if err != nil {
		return nil, err
	}
	scorer, err := checks.NewSettlementScorer(SettlementCheckName, r.Config.Settlement, diag, metrics)
	if err != nil {
		return nil, fmt.Errorf("invalid settlement configuration: %w", err)
	}

	return NewAnalyzer(registry,
		detectors,
		scorer,
		WithLogger(logger),
		WithMetrics(metrics),
		WithConsole(console),
		WithNationalScope(r.Config.National),
	)
}
