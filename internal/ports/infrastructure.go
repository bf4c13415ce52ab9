package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-tally/internal/domain"
)

// PartySource supplies the party registry entries, in registry order.
// Implementations read files, embedded fixtures, or any other source of
// (name, letter code) pairs. Duplicate detection is left to
// domain.NewPartyRegistry.
type PartySource interface {
	Parties(ctx context.Context) ([]domain.Party, error)
}

// BallotSource supplies the primary ballot records for a run.
// Implementations must verify that every party column resolves to a
// registry entry before returning any record, and must fail on malformed
// numeric fields with a *domain.FieldError.
type BallotSource interface {
	Ballots(ctx context.Context, registry *domain.PartyRegistry) ([]domain.BallotRecord, error)
}

// ReportSink accepts the finished report table: the header row first, then
// the national summary row, then one row per primary record.
type ReportSink interface {
	// WriteReport persists rows. It returns a *SinkError on failure.
	WriteReport(ctx context.Context, rows [][]string) error

	// Destination describes where the report goes, for logging.
	Destination() string
}

// Diagnostics receives free-text advisory lines for the operator: the party
// manifest, issue listings, key-mismatch and high-distance warnings.
// Lines are purely observational and never read back.
// Implementations must be safe for concurrent use.
type Diagnostics interface {
	Emit(line string)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like records read, issues found,
	// key mismatches, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like settlements scored or the
	// national turnout.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like settlement distances.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
