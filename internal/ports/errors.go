package ports

import (
	"errors"
	"fmt"
)

// Common adapter errors raised while reading inputs or writing outputs.
var (
	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrUnsupportedEncoding indicates an unknown input text encoding name.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")

	// ErrMissingColumn indicates that a required input column is absent.
	ErrMissingColumn = errors.New("missing column")

	// ErrEmptyReport indicates an attempt to write a report without rows.
	ErrEmptyReport = errors.New("empty report")
)

// SinkError represents a failure writing the report to its destination.
type SinkError struct {
	// Destination is the file path or object URL being written.
	Destination string

	// Operation is the name of the sink operation that failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for SinkError.
func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error: operation=%s, destination=%s, err=%v", e.Operation, e.Destination, e.Err)
}

// Unwrap returns the underlying error.
func (e *SinkError) Unwrap() error { return e.Err }

// NewSinkError creates a new SinkError with the given details.
func NewSinkError(destination, operation string, err error) *SinkError {
	return &SinkError{
		Destination: destination,
		Operation:   operation,
		Err:         err,
	}
}

// MetricsError represents an error from metrics collection operations.
type MetricsError struct {
	// Metric is the name of the metric that was being collected when the
	// error occurred.
	Metric string

	// Operation is the name of the metrics operation that failed.
	Operation string

	// Err is the underlying error that caused the metrics operation to fail.
	Err error
}

// Error implements the error interface for MetricsError.
func (e *MetricsError) Error() string {
	return fmt.Sprintf("metrics error: operation=%s, metric=%s, err=%v", e.Operation, e.Metric, e.Err)
}

// Unwrap returns the underlying error.
func (e *MetricsError) Unwrap() error { return e.Err }

// NewMetricsError creates a new MetricsError with the given details.
func NewMetricsError(metric, operation string, err error) *MetricsError {
	return &MetricsError{
		Metric:    metric,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
