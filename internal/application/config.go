package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tally/infrastructure/checks"
	"github.com/ahrav/go-tally/infrastructure/ingest"
	"github.com/ahrav/go-tally/infrastructure/report"
	"github.com/ahrav/go-tally/internal/ports"
)

// RunConfig is the complete configuration of one analysis run. It is read
// from YAML and then overridden by command line flags.
type RunConfig struct {
	// Inputs locates the party registry and the ballot data.
	Inputs InputsConfig `yaml:"inputs"`

	// National selects which ballot boxes form the national baseline the
	// switch detector compares against.
	National NationalConfig `yaml:"national"`

	// Output configures where the report goes.
	Output OutputConfig `yaml:"output"`

	// Detectors lists the per-record detectors to run, in order. Their
	// findings appear in each record's notes in this order.
	Detectors []string `yaml:"detectors" validate:"min=1,unique,dive,required"`

	// Switch holds the fringe/major thresholds.
	Switch checks.SwitchConfig `yaml:"switch"`

	// Settlement holds settlement grouping and alerting parameters.
	Settlement checks.SettlementConfig `yaml:"settlement"`

	// Metrics configures the Prometheus textfile export.
	Metrics MetricsConfig `yaml:"metrics"`

	// Console controls the operator summaries printed to stdout.
	Console ConsoleConfig `yaml:"console"`
}

// InputsConfig names the input files.
type InputsConfig struct {
	// Parties is the party registry CSV ("Party", "Ballot" columns).
	Parties string `yaml:"parties" validate:"required"`

	// Ballots is the ballot tally CSV.
	Ballots string `yaml:"ballots" validate:"required"`

	// Encoding is the ballot file text encoding.
	Encoding string `yaml:"encoding" validate:"encoding"`
}

// NationalConfig holds the wildcard filters for the national baseline.
// Both patterns are matched against the ballot-box id; see
// domain.CountMatching.
type NationalConfig struct {
	SymbolPattern string `yaml:"symbol_pattern" validate:"max=64"`
	BoxPattern    string `yaml:"box_pattern" validate:"max=64"`
}

// OutputConfig selects the report sink. S3 wins over Path when set.
type OutputConfig struct {
	Path string           `yaml:"path"`
	S3   *report.S3Config `yaml:"s3" validate:"omitempty"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives all run metrics in the Prometheus text
	// format after the report is written.
	Textfile string `yaml:"textfile"`
}

// ConsoleConfig toggles the operator summaries.
type ConsoleConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultRunConfig returns a configuration with every default filled in.
// Input paths are left empty and must be supplied.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Inputs:     InputsConfig{Encoding: ingest.DefaultEncoding},
		National:   NationalConfig{SymbolPattern: "*", BoxPattern: "*"},
		Detectors:  []string{ConsistencyCheckName, SwitchCheckName},
		Output:     OutputConfig{Path: report.DefaultPath},
		Switch:     checks.DefaultSwitchConfig(),
		Settlement: checks.DefaultSettlementConfig(),
		Console:    ConsoleConfig{Enabled: true},
	}
}

// LoadConfigFile reads the YAML file at path over DefaultRunConfig. It does
// not validate; call Validate after applying overrides.
func LoadConfigFile(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return RunConfig{}, fmt.Errorf("%w: %s", ports.ErrConfigNotFound, path)
	}
	if err != nil {
		return RunConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(bytes.NewReader(data))
}

// ParseConfig decodes YAML from r over DefaultRunConfig. Unknown fields are
// rejected. An empty document yields the defaults.
func ParseConfig(r io.Reader) (RunConfig, error) {
	cfg := DefaultRunConfig()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true) // Strict mode - fail on unknown fields.
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return RunConfig{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// Validate checks every section of the configuration.
func (c RunConfig) Validate() error {
	v, err := newValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return ports.NewConfigError(verrs[0].Namespace(), err)
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// newValidator returns a validator with the run config's custom tags.
func newValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := RegisterRunValidators(v); err != nil {
		return nil, err
	}
	return v, nil
}
