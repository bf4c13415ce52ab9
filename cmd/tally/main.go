// Command tally analyzes per-ballot-box election results and writes a report
// flagging internally inconsistent boxes, suspected party switches, and
// boxes that stray from their settlement's voting pattern.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/ahrav/go-tally/infrastructure/middleware"
	"github.com/ahrav/go-tally/infrastructure/report"
	"github.com/ahrav/go-tally/internal/application"
	"github.com/ahrav/go-tally/internal/ports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options holds the command line flags. Flags that were set override the
// config file.
type options struct {
	configPath  string
	parties     string
	ballots     string
	encoding    string
	out         string
	s3Bucket    string
	s3Key       string
	s3Endpoint  string
	s3Region    string
	metricsFile string
	workers     int
	logFormat   string
	logLevel    string
	quiet       bool
}

func parseFlags(args []string, stderr io.Writer) (options, map[string]bool, error) {
	var o options
	fs := flag.NewFlagSet("tally", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "YAML run configuration")
	fs.StringVar(&o.parties, "parties", "", "party registry CSV")
	fs.StringVar(&o.ballots, "ballots", "", "ballot tally CSV")
	fs.StringVar(&o.encoding, "encoding", "", "ballot file encoding (iso-8859-8, windows-1255, utf-8)")
	fs.StringVar(&o.out, "out", "", "report file path (default "+report.DefaultPath+")")
	fs.StringVar(&o.s3Bucket, "s3-bucket", "", "upload the report to this S3 bucket")
	fs.StringVar(&o.s3Key, "s3-key", "", "object key for the S3 report")
	fs.StringVar(&o.s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL (path-style addressing)")
	fs.StringVar(&o.s3Region, "s3-region", "", "S3 region")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	fs.IntVar(&o.workers, "workers", 0, "settlements scored concurrently")
	fs.StringVar(&o.logFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&o.quiet, "quiet", false, "do not print console summaries")
	if err := fs.Parse(args); err != nil {
		return options{}, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return o, set, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, set, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger, err := newLogger(stderr, opts.logFormat, opts.logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	cfg, err := loadConfig(opts, set)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}

	var console ports.Diagnostics
	if cfg.Console.Enabled {
		console = middleware.NewConsoleDiagnostics(stdout)
	}
	diag := middleware.Tee(console, middleware.NewLogDiagnostics(logger, slog.LevelDebug))
	metrics := middleware.NewPrometheusMetrics()

	runner, err := application.NewRunner(ctx, cfg, diag, logger, metrics)
	if err != nil {
		logger.Error("failed to initialize run", "error", err)
		return 1
	}
	runner.RunID = runID

	res, err := runner.Run(ctx)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		return 1
	}

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Error("failed to write metrics", "error", err)
			return 1
		}
	}

	logger.Info("report ready", "destination", res.Destination, "issues", res.Analysis.IssueCount())
	return 0
}

// loadConfig reads the config file, if any, applies flag overrides and
// validates the result.
func loadConfig(opts options, set map[string]bool) (application.RunConfig, error) {
	cfg := application.DefaultRunConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = application.LoadConfigFile(opts.configPath); err != nil {
			return application.RunConfig{}, err
		}
	}

	if set["parties"] {
		cfg.Inputs.Parties = opts.parties
	}
	if set["ballots"] {
		cfg.Inputs.Ballots = opts.ballots
	}
	if set["encoding"] {
		cfg.Inputs.Encoding = opts.encoding
	}
	if set["out"] {
		cfg.Output.Path = opts.out
	}
	if set["s3-bucket"] || set["s3-key"] || set["s3-endpoint"] || set["s3-region"] {
		if cfg.Output.S3 == nil {
			cfg.Output.S3 = &report.S3Config{}
		}
		s3 := cfg.Output.S3
		if set["s3-bucket"] {
			s3.Bucket = opts.s3Bucket
		}
		if set["s3-key"] {
			s3.Key = opts.s3Key
		}
		if set["s3-endpoint"] {
			s3.Endpoint = opts.s3Endpoint
			s3.PathStyle = true
		}
		if set["s3-region"] {
			s3.Region = opts.s3Region
		}
	}
	if set["metrics-file"] {
		cfg.Metrics.Textfile = opts.metricsFile
	}
	if set["workers"] {
		cfg.Settlement.Workers = opts.workers
	}
	if opts.quiet {
		cfg.Console.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return application.RunConfig{}, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
