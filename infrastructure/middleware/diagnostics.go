package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ahrav/go-tally/internal/ports"
)

// Discard is a Diagnostics sink that drops every line.
var Discard ports.Diagnostics = discard{}

type discard struct{}

func (discard) Emit(string) {}

// NopMetrics is a MetricsCollector that records nothing.
type NopMetrics struct{}

func (NopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (NopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (NopMetrics) RecordHistogram(string, float64, map[string]string)     {}

var _ ports.MetricsCollector = NopMetrics{}

// ConsoleDiagnostics writes each line, newline-terminated, to an io.Writer.
// Writes are serialized so concurrent emitters never interleave within a
// line. Write errors are dropped; diagnostics are advisory.
type ConsoleDiagnostics struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleDiagnostics returns a ConsoleDiagnostics writing to w.
func NewConsoleDiagnostics(w io.Writer) *ConsoleDiagnostics {
	return &ConsoleDiagnostics{w: w}
}

// Emit writes line followed by a newline.
func (c *ConsoleDiagnostics) Emit(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, line)
}

var _ ports.Diagnostics = (*ConsoleDiagnostics)(nil)

// LogDiagnostics forwards diagnostic lines to a structured logger. It is
// used when the console report is disabled but the lines should still end
// up in the run log.
type LogDiagnostics struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogDiagnostics returns a LogDiagnostics logging at level. A nil logger
// uses slog.Default().
func NewLogDiagnostics(logger *slog.Logger, level slog.Level) *LogDiagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDiagnostics{logger: logger, level: level}
}

// Emit logs line under the "line" attribute.
func (l *LogDiagnostics) Emit(line string) {
	l.logger.LogAttrs(context.Background(), l.level, "diagnostic", slog.String("line", line))
}

var _ ports.Diagnostics = (*LogDiagnostics)(nil)

// Recorder keeps every emitted line in memory. It is safe for concurrent
// use and is mostly useful in tests and for building summaries.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// Emit appends line.
func (r *Recorder) Emit(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

// Lines returns a copy of the recorded lines in emission order.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

var _ ports.Diagnostics = (*Recorder)(nil)

// Tee returns a Diagnostics that emits every line to each of sinks in order.
// Nil sinks are skipped.
func Tee(sinks ...ports.Diagnostics) ports.Diagnostics {
	var live []ports.Diagnostics
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return tee(live)
}

type tee []ports.Diagnostics

func (t tee) Emit(line string) {
	for _, s := range t {
		s.Emit(line)
	}
}
