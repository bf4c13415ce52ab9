// Package checks provides the anomaly detectors of the tally analysis
// engine: structural consistency checks, fringe/major vote-switch detection,
// and settlement outlier scoring.
package checks

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Common errors returned by detector constructors.
var (
	// ErrEmptyCheckName is returned when attempting to create a detector with an empty name.
	ErrEmptyCheckName = errors.New("check name cannot be empty")

	// ErrNilRegistry is returned when a detector that names parties is built without a registry.
	ErrNilRegistry = errors.New("party registry is required")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// printer formats counts with thousands separators (1,234) for issue text.
var printer = message.NewPrinter(language.English)
