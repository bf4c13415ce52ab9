// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-tally/internal/domain"
)

// Detector is a per-record anomaly check run against the national total.
// Findings are advisory: a detector never fails a run, it only returns
// issues. Detectors should be stateless and safe for concurrent use.
type Detector interface {
	// Name returns a unique identifier for this detector.
	// The name is used for logging, tracing, and metrics labels.
	Name() string

	// Detect inspects record and returns its findings in a fixed order.
	// national is the aggregate of all primary records. A nil or empty
	// result means the record is clean.
	//
	// Example:
	//
	//	issues := detector.Detect(ctx, record, national)
	//	all = append(all, issues...)
	Detect(ctx context.Context, record, national domain.BallotRecord) []domain.Issue

	// Validate checks if the detector is properly configured.
	// It is typically called while the analyzer is being assembled.
	Validate() error
}
