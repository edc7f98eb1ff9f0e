package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"snapshot-diff/internal/callback"
	diffimage "snapshot-diff/internal/diff/image"
	"snapshot-diff/internal/env"
	"snapshot-diff/internal/orchestrator"
	"snapshot-diff/internal/report"
	"snapshot-diff/internal/runnable"
	"snapshot-diff/internal/storage"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

const (
	exitSuccess      = 0
	exitChanges      = 1
	exitUsageError   = 2
	exitRuntimeError = 4
)

type options struct {
	sideBySide     bool
	parallel       bool
	workers        int
	diffOptions    string
	threshold      float64
	pattern        string
	dryRun         bool
	storageBackend string
	s3Bucket       string
	schedule       string
	callbackURL    string
	failOnChange   bool
	logFormat      string
}

// usageError marks failures caused by invalid arguments or flags.
type usageError struct {
	err error
}

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func newCommand(stdout io.Writer, stderr io.Writer, exitCode *int) *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:           "diff <baseline> <candidate> <diff>",
		Short:         "Compare two trees of screenshots and write diff images",
		Long:          "diff pairs images by relative path, reports added and removed paths, and renders a diff image for every pair that differs.",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(cmd.Context(), o, args, stdout, stderr)
			*exitCode = code
			return err
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&o.sideBySide, "side-by-side", env.OrDefault("SIDE_BY_SIDE", false), "Render baseline, diff and candidate next to each other")
	flags.BoolVar(&o.parallel, "parallel", env.OrDefault("PARALLEL", true), "Diff images on a pool of workers")
	flags.IntVar(&o.workers, "workers", env.OrDefault("WORKERS", 0), "Pool size (0 uses three quarters of the CPUs)")
	flags.StringVar(&o.diffOptions, "options", env.OrDefault("DIFF_OPTIONS", ""), "Differ options as JSON, e.g. {\"threshold\":0.1}")
	flags.Float64Var(&o.threshold, "threshold", env.OrDefault("THRESHOLD", -1.0), "Per-channel tolerance between 0 and 1, overrides --options")
	flags.StringVar(&o.pattern, "pattern", env.OrDefault("PATTERN", ""), "Only diff paths matching this doublestar pattern")
	flags.BoolVar(&o.dryRun, "dry-run", env.OrDefault("DRY_RUN", false), "Report differences without writing diff images")
	flags.StringVar(&o.storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Where diff images go (file or s3)")
	flags.StringVar(&o.s3Bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "Bucket for the s3 storage backend")
	flags.StringVar(&o.schedule, "schedule", env.OrDefault("SCHEDULE", ""), "Cron expression; when set the diff runs on every activation")
	flags.StringVar(&o.callbackURL, "callback-url", env.OrDefault("CALLBACK_URL", ""), "PATCH the JSON report to this URL after each run")
	flags.BoolVar(&o.failOnChange, "fail-on-change", env.OrDefault("FAIL_ON_CHANGE", false), "Exit with 1 when any image changed or failed")
	flags.StringVar(&o.logFormat, "log-format", env.OrDefault("LOG_FORMAT", "json"), "Log format (json or text)")

	return cmd
}

func run(ctx context.Context, o *options, args []string, stdout io.Writer, stderr io.Writer) (int, error) {
	logger, err := runnable.NewLogger(stderr, o.logFormat)
	if err != nil {
		return exitUsageError, &usageError{err}
	}
	log := logr.FromSlogHandler(logger.Handler())

	config, err := o.config(args)
	if err != nil {
		return exitUsageError, &usageError{err}
	}

	sink, err := o.sink(ctx, config.DiffRoot)
	if err != nil {
		return exitRuntimeError, err
	}

	runner := &orchestrator.Runner{
		Log:  log.WithName("orchestrator"),
		Sink: sink,
	}

	var notifier *callback.Client
	if o.callbackURL != "" {
		notifier = callback.NewClient()
	}

	once := func(ctx context.Context) (*report.Report, error) {
		r, err := runner.DiffFolders(ctx, config)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(r)
		if err != nil {
			return nil, xerrors.Errorf("failed to encode report: %w", err)
		}
		if _, err := fmt.Fprintln(stdout, string(data)); err != nil {
			return nil, xerrors.Errorf("failed to write report: %w", err)
		}

		if notifier != nil {
			if err := notifier.Send(ctx, o.callbackURL, data); err != nil {
				return nil, xerrors.Errorf("failed to send callback: %w", err)
			}
		}
		return r, nil
	}

	if o.schedule != "" {
		schedule, err := runnable.ParseSchedule(o.schedule)
		if err != nil {
			return exitUsageError, &usageError{err}
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		scheduler := &runnable.Scheduler{
			Schedule: schedule,
			Log:      log.WithName("scheduler"),
			Run: func(ctx context.Context) error {
				_, err := once(ctx)
				return err
			},
		}
		if err := scheduler.Start(ctx); err != nil {
			return exitRuntimeError, err
		}
		return exitSuccess, nil
	}

	r, err := once(ctx)
	if err != nil {
		return exitRuntimeError, err
	}

	if o.failOnChange && (len(r.Changed) > 0 || len(r.Errored) > 0) {
		return exitChanges, nil
	}
	return exitSuccess, nil
}

func (o *options) config(args []string) (orchestrator.Config, error) {
	var diffOptions diffimage.Options
	if o.diffOptions != "" {
		if err := json.Unmarshal([]byte(o.diffOptions), &diffOptions); err != nil {
			return orchestrator.Config{}, xerrors.Errorf("failed to parse --options: %w", err)
		}
	}
	if o.threshold >= 0 {
		diffOptions.Threshold = o.threshold
	}
	if diffOptions.Threshold < 0 || diffOptions.Threshold > 1 {
		return orchestrator.Config{}, xerrors.Errorf("threshold must be between 0 and 1: %v", diffOptions.Threshold)
	}
	if o.workers < 0 {
		return orchestrator.Config{}, xerrors.Errorf("--workers must not be negative: %d", o.workers)
	}

	return orchestrator.Config{
		BaselineRoot:  args[0],
		CandidateRoot: args[1],
		DiffRoot:      args[2],
		Options:       diffOptions,
		SideBySide:    o.sideBySide,
		Parallel:      o.parallel,
		Workers:       o.workers,
		DryRun:        o.dryRun,
		Pattern:       o.pattern,
	}, nil
}

// sink returns nil for the file backend so the orchestrator writes under the diff root itself.
func (o *options) sink(ctx context.Context, diffRoot string) (storage.Storage, error) {
	switch o.storageBackend {
	case "", "file":
		return nil, nil
	case "s3":
		s, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket: o.s3Bucket,
			Prefix: diffRoot,
		})
		if err != nil {
			return nil, xerrors.Errorf("failed to create S3 storage backend: %w", err)
		}
		return s, nil
	default:
		return nil, &usageError{xerrors.Errorf("unknown storage backend: %s", o.storageBackend)}
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(exitUsageError)
	}

	exitCode := exitSuccess
	cmd := newCommand(os.Stdout, os.Stderr, &exitCode)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var u *usageError
		if errors.As(err, &u) || exitCode == exitSuccess {
			os.Exit(exitUsageError)
		}
		os.Exit(exitCode)
	}
	os.Exit(exitCode)
}
