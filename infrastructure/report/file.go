package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ahrav/go-tally/internal/ports"
)

// DefaultPath is where the report is written when no destination is
// configured.
const DefaultPath = "analysis/all_ballot_places.csv"

var _ ports.ReportSink = (*FileSink)(nil)

// FileSink writes the report to a local file, creating parent directories
// as needed. The file is written to a temporary sibling and renamed into
// place, so a failed run never leaves a truncated report behind.
type FileSink struct {
	path   string
	logger *slog.Logger
}

// NewFileSink returns a sink writing to path ("" means DefaultPath). A nil
// logger uses slog.Default().
func NewFileSink(path string, logger *slog.Logger) *FileSink {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{path: path, logger: logger}
}

// Destination returns the target file path.
func (s *FileSink) Destination() string { return s.path }

// WriteReport encodes rows and replaces the target file.
func (s *FileSink) WriteReport(ctx context.Context, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return ports.NewSinkError(s.path, "write", err)
	}
	data, err := EncodeBytes(rows)
	if err != nil {
		return ports.NewSinkError(s.path, "encode", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ports.NewSinkError(s.path, "mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return ports.NewSinkError(s.path, "create", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ports.NewSinkError(s.path, "write", err)
	}
	if err := tmp.Close(); err != nil {
		return ports.NewSinkError(s.path, "close", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return ports.NewSinkError(s.path, "chmod", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return ports.NewSinkError(s.path, "rename", fmt.Errorf("replace report: %w", err))
	}

	s.logger.Info("report written", "path", s.path, "rows", len(rows), "bytes", len(data))
	return nil
}
