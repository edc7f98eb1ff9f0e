package orchestrator

import (
	"context"
	"errors"
	"math"
	"runtime"
	diffimage "snapshot-diff/internal/diff/image"
	"snapshot-diff/internal/listing"
	"snapshot-diff/internal/reconcile"
	"snapshot-diff/internal/report"
	"snapshot-diff/internal/storage"
	"snapshot-diff/internal/worker"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

const meterName = "snapshot-diff/orchestrator"

// ErrInvalidConfig is matched by errors caused by the Config itself rather than by the trees it names.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	BaselineRoot  string
	CandidateRoot string
	DiffRoot      string
	Options       diffimage.Options
	SideBySide    bool
	// Parallel runs jobs on a pool of Workers units. When false every job runs on the caller's goroutine.
	Parallel bool
	// Workers overrides the pool size. Zero falls back to Runner.Workers, then DefaultPoolSize.
	Workers int
	DryRun  bool
	// Pattern restricts both trees to matching paths. Empty means every image.
	Pattern string
}

type Runner struct {
	Log    logr.Logger
	Differ diffimage.Differ
	// Sink receives diff images. Nil creates a file storage at Config.DiffRoot.
	Sink storage.Storage
	// Workers is the pool size used when Config.Workers is zero.
	Workers int
}

// DiffFolders compares every image under baselineRoot with its counterpart under candidateRoot and
// writes a diff image under diffRoot for each pair that differs.
func DiffFolders(ctx context.Context, baselineRoot string, candidateRoot string, diffRoot string, options diffimage.Options, sideBySide bool, parallel bool) (*report.Report, error) {
	r := &Runner{
		Log: logr.FromContextOrDiscard(ctx),
	}
	return r.DiffFolders(ctx, Config{
		BaselineRoot:  baselineRoot,
		CandidateRoot: candidateRoot,
		DiffRoot:      diffRoot,
		Options:       options,
		SideBySide:    sideBySide,
		Parallel:      parallel,
	})
}

// DefaultPoolSize is three quarters of the usable CPUs, rounded up.
func DefaultPoolSize() int {
	n := int(math.Ceil(0.75 * float64(runtime.GOMAXPROCS(0))))
	if n < 1 {
		return 1
	}
	return n
}

func poolSize(config Config, jobs int) int {
	if !config.Parallel {
		return 1
	}
	n := config.Workers
	if n <= 0 {
		n = DefaultPoolSize()
	}
	if n > jobs {
		n = jobs
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (r *Runner) DiffFolders(ctx context.Context, config Config) (*report.Report, error) {
	if config.BaselineRoot == "" || config.CandidateRoot == "" || config.DiffRoot == "" {
		return nil, xerrors.Errorf("%w: baseline, candidate and diff roots are required", ErrInvalidConfig)
	}
	if config.Workers < 0 {
		return nil, xerrors.Errorf("%w: workers must not be negative: %d", ErrInvalidConfig, config.Workers)
	}
	if config.Pattern != "" && !doublestar.ValidatePattern(config.Pattern) {
		return nil, xerrors.Errorf("%w: invalid pattern: %s", ErrInvalidConfig, config.Pattern)
	}

	if config.Workers == 0 {
		config.Workers = r.Workers
	}

	now := time.Now()

	instruments, err := newInstruments()
	if err != nil {
		return nil, err
	}

	var opts []listing.Option
	if config.Pattern != "" {
		opts = append(opts, listing.WithPattern(config.Pattern))
	}

	baseline, err := listing.ListImages(config.BaselineRoot, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to list baseline images: %w", err)
	}
	candidate, err := listing.ListImages(config.CandidateRoot, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to list candidate images: %w", err)
	}
	r.Log.Info("found images", "baseline", len(baseline), "candidate", len(candidate))

	result := reconcile.Reconcile(baseline, candidate)
	r.Log.Info("reconciled images", "added", len(result.Added), "removed", len(result.Removed), "common", len(result.Common))

	sink := r.Sink
	if sink == nil && !config.DryRun {
		sink, err = storage.NewFileStorage(ctx, storage.FileConfig{Directory: config.DiffRoot, Create: true})
		if err != nil {
			return nil, xerrors.Errorf("failed to create diff storage: %w", err)
		}
	}

	aggregator := report.NewAggregator()
	aggregator.MergeReconciled(result.Added, result.Removed)

	w := &worker.Worker{
		Log:    r.Log.WithName("worker"),
		Differ: r.Differ,
		Sink:   sink,
		DryRun: config.DryRun,
	}

	var cursor atomic.Int64
	unit := func() {
		for {
			i := int(cursor.Add(1) - 1)
			if i >= len(result.Common) {
				return
			}

			started := time.Now()
			outcome := w.Run(ctx, worker.Job{
				Path:          result.Common[i],
				BaselineRoot:  config.BaselineRoot,
				CandidateRoot: config.CandidateRoot,
				DiffRoot:      config.DiffRoot,
				Options:       config.Options,
				SideBySide:    config.SideBySide,
			})
			instruments.record(ctx, outcome, time.Since(started))
			aggregator.Merge(outcome)
		}
	}

	n := poolSize(config, len(result.Common))
	if n == 1 {
		unit()
	} else {
		eg := new(errgroup.Group)
		for range n {
			eg.Go(func() error {
				unit()
				return nil
			})
		}
		_ = eg.Wait()
	}

	rep, err := aggregator.Finish(len(result.Common))
	if err != nil {
		return nil, err
	}

	r.Log.Info("finished diffing images", "summary", rep.Summary(), "workers", n, "duration", time.Since(now).String())

	return rep, nil
}

type instruments struct {
	outcomes    metric.Int64Counter
	jobDuration metric.Int64Histogram
}

func newInstruments() (*instruments, error) {
	meter := otel.Meter(meterName)

	outcomes, err := meter.Int64Counter("diff_outcomes_total")
	if err != nil {
		return nil, xerrors.Errorf("failed to create counter: %w", err)
	}
	jobDuration, err := meter.Int64Histogram("diff_job_duration_micro_seconds")
	if err != nil {
		return nil, xerrors.Errorf("failed to create histogram: %w", err)
	}

	return &instruments{
		outcomes:    outcomes,
		jobDuration: jobDuration,
	}, nil
}

func (i *instruments) record(ctx context.Context, outcome report.Outcome, duration time.Duration) {
	var kind string
	switch outcome.(type) {
	case report.Changed:
		kind = "changed"
	case report.Unchanged:
		kind = "unchanged"
	case report.Errored:
		kind = "errored"
	}

	attrs := metric.WithAttributes(attribute.Key("outcome").String(kind))
	i.outcomes.Add(ctx, 1, attrs)
	i.jobDuration.Record(ctx, duration.Microseconds(), attrs)
}
