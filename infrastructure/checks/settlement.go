package checks

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

// SettlementScorer measures how far each ballot box strays from its own
// settlement. Boxes are grouped by settlement symbol; for every group with
// enough boxes the settlement aggregate is normalized and each box gets
// the squared Euclidean distance between its normalized vector and the
// settlement's. The score is a dimensionless spread, not a probability.
//
// Key-set mismatches (a box whose party vector lacks keys present in the
// settlement vector, typically a box with no party votes) are scored with
// the missing shares counted as zero, recorded as an issue on the box, and
// reported to the diagnostics sink.
//
// Groups are scored concurrently. Each group writes only its own boxes'
// result slots and diagnostics are emitted afterwards in group order, so
// output does not depend on the worker count.
type SettlementScorer struct {
	name     string
	config   SettlementConfig
	diag     ports.Diagnostics
	metrics  ports.MetricsCollector
	tracer   trace.Tracer
	mismatch *rate.Sometimes
}

// SettlementConfig controls settlement grouping and alerting.
type SettlementConfig struct {
	// MinGroupSize is the fewest boxes a settlement needs to be scored.
	// Smaller settlements get no score at all, not a score of zero.
	MinGroupSize int `yaml:"min_group_size" json:"min_group_size" validate:"min=1,max=1000"`

	// DistanceAlert is the distance above which a box is reported to the
	// operator. It does not change the stored score.
	DistanceAlert float64 `yaml:"distance_alert" json:"distance_alert" validate:"gt=0,lte=2"`

	// Workers bounds the number of settlements scored concurrently.
	Workers int `yaml:"workers" json:"workers" validate:"min=1,max=256"`

	// MismatchWarnings is how many key-mismatch warnings are printed before
	// only every 100th is. Every mismatch is still recorded as an issue.
	MismatchWarnings int `yaml:"mismatch_warnings" json:"mismatch_warnings" validate:"min=0"`
}

// DefaultSettlementConfig returns the production defaults: settlements need
// five boxes, distances over 0.5 are reported, four workers.
func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{
		MinGroupSize:     5,
		DistanceAlert:    0.5,
		Workers:          4,
		MismatchWarnings: 20,
	}
}

// SettlementScore is the scorer's output for one record.
type SettlementScore struct {
	// Distance is nil when the record's settlement was too small to score.
	Distance *float64

	// Issues holds key-mismatch findings for the record.
	Issues []domain.Issue
}

// warning is a diagnostic line produced while scoring a group.
type warning struct {
	mismatch bool
	line     string
}

// NewSettlementScorer creates a SettlementScorer. diag and metrics may be
// nil, in which case diagnostics are discarded and metrics are not
// recorded.
func NewSettlementScorer(
	name string,
	config SettlementConfig,
	diag ports.Diagnostics,
	metrics ports.MetricsCollector,
) (*SettlementScorer, error) {
	if name == "" {
		return nil, ErrEmptyCheckName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if diag == nil {
		diag = middleware.Discard
	}
	if metrics == nil {
		metrics = middleware.NopMetrics{}
	}

	return &SettlementScorer{
		name:     name,
		config:   config,
		diag:     diag,
		metrics:  metrics,
		tracer:   otel.Tracer("settlement-scorer"),
		mismatch: &rate.Sometimes{First: config.MismatchWarnings, Every: 100},
	}, nil
}

// Name returns the unique identifier for this scorer instance.
func (s *SettlementScorer) Name() string { return s.name }

// Score returns one SettlementScore per record, index-aligned with records.
// It fails only if ctx is cancelled.
func (s *SettlementScorer) Score(ctx context.Context, records []domain.BallotRecord) ([]SettlementScore, error) {
	ctx, span := s.tracer.Start(ctx, "SettlementScorer.Score",
		trace.WithAttributes(
			attribute.String("check.id", s.name),
			attribute.Int("records", len(records)),
			attribute.Int("config.min_group_size", s.config.MinGroupSize),
		),
	)
	defer span.End()

	groups := domain.GroupBySettlement(records)
	scores := make([]SettlementScore, len(records))
	warnings := make([][]warning, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	scored := 0
	for gi, group := range groups {
		if len(group.Indices) < s.config.MinGroupSize {
			continue
		}
		scored++
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			warnings[gi] = s.scoreGroup(records, group, scores)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("settlement scoring cancelled: %w", err)
	}

	s.report(warnings)
	s.recordMetrics(scores)
	s.metrics.RecordGauge("settlements_scored", float64(scored), map[string]string{"unit": s.name})
	span.SetAttributes(
		attribute.Int("settlements.total", len(groups)),
		attribute.Int("settlements.scored", scored),
	)
	return scores, nil
}

// scoreGroup fills scores for the group's records and returns the
// diagnostics it produced.
func (s *SettlementScorer) scoreGroup(records []domain.BallotRecord, group domain.SettlementGroup, scores []SettlementScore) []warning {
	members := make([]domain.BallotRecord, len(group.Indices))
	for i, idx := range group.Indices {
		members[i] = records[idx]
	}
	first := members[0].Label()
	total := domain.Total(domain.Label{Settlement: first.Settlement, Symbol: group.Symbol, BallotBox: "*"}, members)
	center := total.Normalized()

	var out []warning
	for _, idx := range group.Indices {
		rec := records[idx]
		label := rec.Label()
		point := rec.Normalized()
		dist, keysMatch := domain.SquaredDistance(point, center)

		var issues []domain.Issue
		if !keysMatch {
			issues = append(issues, domain.Issue{
				Kind: domain.IssueSettlementKeyMismatch,
				Message: fmt.Sprintf("Party keys differ from settlement %s (%d of %d parties); distance counts missing shares as 0",
					label.Settlement, len(point), len(center)),
			})
			out = append(out, warning{
				mismatch: true,
				line: fmt.Sprintf("Mismatching keys between %s and its ballot %s: %d ballot parties, %d settlement parties",
					label.Settlement, label.BallotBox, len(point), len(center)),
			})
		}
		if dist > s.config.DistanceAlert {
			out = append(out, warning{
				line: fmt.Sprintf("%s %s - Dist from settlement average is %.3f", label.Settlement, label.BallotBox, dist),
			})
		}

		d := dist
		scores[idx] = SettlementScore{Distance: &d, Issues: issues}
	}
	return out
}

// report emits collected diagnostics in group order, throttling repeated
// key-mismatch warnings.
func (s *SettlementScorer) report(warnings [][]warning) {
	suppressed := 0
	for _, ws := range warnings {
		for _, w := range ws {
			if !w.mismatch {
				s.diag.Emit(w.line)
				continue
			}
			printed := false
			s.mismatch.Do(func() {
				s.diag.Emit(w.line)
				printed = true
			})
			if !printed {
				suppressed++
			}
		}
	}
	if suppressed > 0 {
		s.diag.Emit(strconv.Itoa(suppressed) + " further key-mismatch warnings suppressed")
	}
}

func (s *SettlementScorer) recordMetrics(scores []SettlementScore) {
	labels := map[string]string{"unit": s.name}
	for _, sc := range scores {
		if sc.Distance == nil {
			continue
		}
		s.metrics.RecordHistogram("settlement_distance", *sc.Distance, labels)
		if *sc.Distance > s.config.DistanceAlert {
			s.metrics.RecordCounter("distance_alerts_total", 1, labels)
		}
		if len(sc.Issues) > 0 {
			s.metrics.RecordCounter("key_mismatches_total", float64(len(sc.Issues)), labels)
		}
	}
}

// Validate verifies the scorer is properly configured.
func (s *SettlementScorer) Validate() error {
	if err := validate.Struct(s.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
