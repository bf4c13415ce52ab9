package domain

import (
	"errors"
	"fmt"
)

// Common domain errors. The first three are fatal for a run: they indicate a
// schema or configuration problem the operator must fix before any analysis
// is meaningful.
var (
	// ErrDuplicateParty indicates that two registry entries share a letter code.
	ErrDuplicateParty = errors.New("duplicate party letter code")

	// ErrMissingParty indicates that the ballot data references a letter code
	// that has no registry entry.
	ErrMissingParty = errors.New("missing party for letter code")

	// ErrMalformedField indicates that a required numeric field could not be
	// parsed as a non-negative integer.
	ErrMalformedField = errors.New("malformed field")

	// ErrEmptyValue indicates that a required value is empty.
	ErrEmptyValue = errors.New("empty value")
)

// DuplicateKeyError reports a registry letter code that was declared twice.
type DuplicateKeyError struct {
	// Code is the repeated letter code.
	Code string

	// First is the party that claimed the code first.
	First Party

	// Second is the conflicting party.
	Second Party
}

// Error implements the error interface for DuplicateKeyError.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate parties with ballot %q: %s and %s", e.Code, e.First, e.Second)
}

// Unwrap returns ErrDuplicateParty so callers can match with errors.Is.
func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateParty }

// MissingPartyError reports a ballot data column whose letter code is not in
// the registry.
type MissingPartyError struct {
	// Code is the unknown letter code.
	Code string

	// Suggestion is the closest registered code, if the ingest layer found
	// one. Empty when no suggestion is available.
	Suggestion string
}

// Error implements the error interface for MissingPartyError.
func (e *MissingPartyError) Error() string {
	msg := fmt.Sprintf("missing party with letter %q, please update the party registry", e.Code)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Unwrap returns ErrMissingParty so callers can match with errors.Is.
func (e *MissingPartyError) Unwrap() error { return ErrMissingParty }

// FieldError describes a malformed cell in the ballot data.
type FieldError struct {
	// Row is the 1-based data row (the header is row 0).
	Row int

	// Column is the header name of the offending column.
	Column string

	// Value is the raw cell content.
	Value string

	// Err is the underlying parse error.
	Err error
}

// Error implements the error interface for FieldError.
func (e *FieldError) Error() string {
	return fmt.Sprintf("row %d, column %q: malformed value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *FieldError) Unwrap() error { return e.Err }

// Is reports ErrMalformedField for every FieldError.
func (e *FieldError) Is(target error) bool { return target == ErrMalformedField }

// NewFieldError creates a new FieldError with the given details.
func NewFieldError(row int, column, value string, err error) *FieldError {
	return &FieldError{
		Row:    row,
		Column: column,
		Value:  value,
		Err:    err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
