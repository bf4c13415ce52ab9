package checks

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.Detector = (*ConsistencyChecker)(nil)

// ConsistencyChecker verifies the structural invariants of a single ballot
// record: turnout within suffrage, total = valid + disqualified, and party
// votes summing to valid votes. Comparisons are exact integer comparisons.
//
// Each check is independent, so a record may carry zero to three issues.
// They are always reported in the same order.
//
// Concurrency: ConsistencyChecker is stateless and safe for concurrent use.
type ConsistencyChecker struct {
	// name is the unique identifier for this detector instance.
	name string
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewConsistencyChecker creates a ConsistencyChecker.
// Returns ErrEmptyCheckName if name is empty.
func NewConsistencyChecker(name string) (*ConsistencyChecker, error) {
	if name == "" {
		return nil, ErrEmptyCheckName
	}

	return &ConsistencyChecker{
		name:   name,
		tracer: otel.Tracer("consistency-check"),
	}, nil
}

// Name returns the unique identifier for this detector instance.
func (c *ConsistencyChecker) Name() string { return c.name }

// Detect runs the three structural checks against record. The national
// total is not used.
func (c *ConsistencyChecker) Detect(ctx context.Context, record, _ domain.BallotRecord) []domain.Issue {
	_, span := c.tracer.Start(ctx, "ConsistencyChecker.Detect",
		trace.WithAttributes(
			attribute.String("check.id", c.name),
			attribute.String("ballot.symbol", record.Label().Symbol),
			attribute.String("ballot.box", record.Label().BallotBox),
		),
	)
	defer span.End()

	issues := consistencyIssues(record)
	span.SetAttributes(attribute.Int("check.issues", len(issues)))
	return issues
}

func consistencyIssues(record domain.BallotRecord) []domain.Issue {
	var issues []domain.Issue
	n := record.Counts()

	// Double envelopes have no suffrage size.
	if n.Suffrage > 0 && n.Total > n.Suffrage {
		issues = append(issues, domain.Issue{
			Kind:    domain.IssueTurnoutExceedsSuffrage,
			Message: printer.Sprintf("Voting over 100%%. Suffrage size: %d ; Total votes: %d", n.Suffrage, n.Total),
		})
	}

	if n.Total != n.Disqualified+n.Valid {
		issues = append(issues, domain.Issue{
			Kind: domain.IssueTotalMismatch,
			Message: printer.Sprintf("Mismatch total votes. Valid + Disqualified != Total: %d + %d != %d",
				n.Valid, n.Disqualified, n.Total),
		})
	}

	if sum := record.PartySum(); sum != n.Valid {
		issues = append(issues, domain.Issue{
			Kind:    domain.IssuePartySumMismatch,
			Message: printer.Sprintf("Total by party != total (%d != %d)", sum, n.Valid),
		})
	}

	return issues
}

// Validate reports whether the checker is usable.
func (c *ConsistencyChecker) Validate() error {
	if c.name == "" {
		return ErrEmptyCheckName
	}
	return nil
}
