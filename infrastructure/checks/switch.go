package checks

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-tally/internal/domain"
	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.Detector = (*SwitchDetector)(nil)

// SwitchDetector flags ballot boxes where votes look tallied to the wrong
// party: a party that is negligible nationally takes a large local share
// while a nationally major party is almost absent. This is a proxy for
// transcription errors and tabulation fraud.
//
// Concurrency: SwitchDetector is immutable after creation and safe for
// concurrent use.
type SwitchDetector struct {
	name     string
	config   SwitchConfig
	registry *domain.PartyRegistry
	tracer   trace.Tracer
}

// SwitchConfig holds the share thresholds for switch detection.
// Shares are fractions of the party-vote sum, in (0, 1).
type SwitchConfig struct {
	// FringeLocalMin is the local share above which a nationally fringe
	// party counts as locally dominant.
	FringeLocalMin float64 `yaml:"fringe_local_min" json:"fringe_local_min" validate:"gt=0,lt=1"`

	// FringeNationalMax is the national share below which a party is fringe.
	FringeNationalMax float64 `yaml:"fringe_national_max" json:"fringe_national_max" validate:"gt=0,lt=1,ltfield=MajorNationalMin"`

	// MajorNationalMin is the national share above which a party is major.
	MajorNationalMin float64 `yaml:"major_national_min" json:"major_national_min" validate:"gt=0,lt=1"`

	// MajorLocalMax is the local share below which a major party counts as
	// locally absent.
	MajorLocalMax float64 `yaml:"major_local_max" json:"major_local_max" validate:"gt=0,lt=1,ltfield=FringeLocalMin"`
}

// DefaultSwitchConfig returns the thresholds used for the national report:
// fringe means under 1% nationally and over 5% locally, major means over
// 20% nationally and under 0.1% locally.
func DefaultSwitchConfig() SwitchConfig {
	return SwitchConfig{
		FringeLocalMin:    0.05,
		FringeNationalMax: 0.01,
		MajorNationalMin:  0.2,
		MajorLocalMax:     0.001,
	}
}

// NewSwitchDetector creates a SwitchDetector. The registry supplies party
// names for issue text and the order parties are listed in.
func NewSwitchDetector(name string, config SwitchConfig, registry *domain.PartyRegistry) (*SwitchDetector, error) {
	if name == "" {
		return nil, ErrEmptyCheckName
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &SwitchDetector{
		name:     name,
		config:   config,
		registry: registry,
		tracer:   otel.Tracer("switch-detector"),
	}, nil
}

// Name returns the unique identifier for this detector instance.
func (d *SwitchDetector) Name() string { return d.name }

// Detect compares record's normalized votes with the national ones. It
// returns a single issue when the record has both a high-fringe and a
// low-major party, otherwise nothing. Parties whose share is undefined in
// either vector are never classified.
//
// The issue lists every high-fringe party, then every low-major party, as
// "<name>=<raw votes> ; " with the trailing separator kept.
func (d *SwitchDetector) Detect(ctx context.Context, record, national domain.BallotRecord) []domain.Issue {
	_, span := d.tracer.Start(ctx, "SwitchDetector.Detect",
		trace.WithAttributes(
			attribute.String("check.id", d.name),
			attribute.String("ballot.symbol", record.Label().Symbol),
			attribute.String("ballot.box", record.Label().BallotBox),
		),
	)
	defer span.End()

	highFringe, lowMajor := d.classify(record, national)
	span.SetAttributes(
		attribute.Int("switch.high_fringe", len(highFringe)),
		attribute.Int("switch.low_major", len(lowMajor)),
	)
	if len(highFringe) == 0 || len(lowMajor) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, code := range slices.Concat(highFringe, lowMajor) {
		votes, _ := record.VotesFor(code)
		fmt.Fprintf(&sb, "%s=%d ; ", d.registry.Name(code), votes)
	}
	return []domain.Issue{{Kind: domain.IssueSuspectedSwitch, Message: sb.String()}}
}

// classify returns the high-fringe and low-major party codes of record,
// each in registry order.
func (d *SwitchDetector) classify(record, national domain.BallotRecord) (highFringe, lowMajor []string) {
	for _, code := range d.orderedCodes(record) {
		local, ok := record.Share(code)
		if !ok {
			continue
		}
		nat, ok := national.Share(code)
		if !ok {
			continue
		}
		if local > d.config.FringeLocalMin && nat < d.config.FringeNationalMax {
			highFringe = append(highFringe, code)
		}
		if local < d.config.MajorLocalMax && nat > d.config.MajorNationalMin {
			lowMajor = append(lowMajor, code)
		}
	}
	return highFringe, lowMajor
}

// orderedCodes sorts the record's parties by registry position; codes the
// registry does not know come last, alphabetically.
func (d *SwitchDetector) orderedCodes(record domain.BallotRecord) []string {
	codes := record.PartyCodes()
	slices.SortStableFunc(codes, func(a, b string) int {
		pa, pb := d.registry.Position(a), d.registry.Position(b)
		switch {
		case pa < 0 && pb < 0:
			return 0
		case pa < 0:
			return 1
		case pb < 0:
			return -1
		}
		return cmp.Compare(pa, pb)
	})
	return codes
}

// Validate verifies the detector is properly configured.
func (d *SwitchDetector) Validate() error {
	if d.registry == nil {
		return ErrNilRegistry
	}
	if err := validate.Struct(d.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
