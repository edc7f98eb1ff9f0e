package worker

import (
	"context"
	"snapshot-diff/internal/codec"
	diffimage "snapshot-diff/internal/diff/image"
	"snapshot-diff/internal/report"
	"snapshot-diff/internal/storage"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var tracer = otel.Tracer("snapshot-diff/worker")

// Job describes one common path to diff. It is not modified after construction.
type Job struct {
	Path          string
	BaselineRoot  string
	CandidateRoot string
	DiffRoot      string
	Options       diffimage.Options
	SideBySide    bool
}

type Worker struct {
	Log    logr.Logger
	Differ diffimage.Differ
	// Sink receives rendered diff images keyed by path. Nil writes under Job.DiffRoot.
	Sink storage.Storage
	// DryRun classifies pairs without writing diff images.
	DryRun bool
}

// Run executes the pipeline for job. Every failure is returned as report.Errored.
func (w *Worker) Run(ctx context.Context, job Job) report.Outcome {
	ctx, span := tracer.Start(ctx, "diff", trace.WithAttributes(attribute.String("path", job.Path)))
	defer span.End()

	outcome, err := w.run(ctx, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.Log.V(1).Info("failed to diff image", "path", job.Path, "error", err.Error())
		return report.Errored{
			Path:    job.Path,
			Message: err.Error(),
		}
	}

	return outcome
}

func (w *Worker) run(ctx context.Context, job Job) (report.Outcome, error) {
	baselineData, candidateData, err := w.load(ctx, job)
	if err != nil {
		return nil, stageError(StageLoad, ErrIO, err)
	}

	format := codec.Classify(job.Path)
	baseline, err := codec.Decode(baselineData, format)
	if err != nil {
		return nil, stageError(StageDecode, ErrDecode, xerrors.Errorf("failed to decode baseline image: %w", err))
	}
	candidate, err := codec.Decode(candidateData, format)
	if err != nil {
		return nil, stageError(StageDecode, ErrDecode, xerrors.Errorf("failed to decode candidate image: %w", err))
	}

	baseline, candidate, err = normalize(baseline, candidate)
	if err != nil {
		return nil, err
	}

	width, height := baseline.Width, baseline.Height
	panels := 1
	if job.SideBySide {
		panels = 3
	}
	canvas := diffimage.NewRGBA(width*panels, height)

	count, err := w.calculate(baseline.Pix, candidate.Pix, canvas.Pix, width, height, job.Options)
	if err != nil {
		return nil, stageError(StageDiff, ErrDiffCompute, err)
	}

	if count == 0 {
		return report.Unchanged{Path: job.Path}, nil
	}

	rendered := false
	if !w.DryRun {
		if err := w.persist(ctx, job, canvas); err != nil {
			return nil, stageError(StagePersist, ErrIO, err)
		}
		rendered = true
	}

	return report.Changed{
		Path:           job.Path,
		DiffPixelCount: count,
		DiffAmount:     float64(count) / float64(width*height),
		Rendered:       rendered,
	}, nil
}

func (w *Worker) load(ctx context.Context, job Job) ([]byte, []byte, error) {
	var baselineData []byte
	var candidateData []byte

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s, err := storage.NewFileStorage(ctx, storage.FileConfig{Directory: job.BaselineRoot})
		if err != nil {
			return xerrors.Errorf("failed to open baseline root: %w", err)
		}
		data, err := s.Get(ctx, job.Path)
		if err != nil {
			return xerrors.Errorf("failed to read baseline image: %w", err)
		}
		baselineData = data
		return nil
	})

	eg.Go(func() error {
		s, err := storage.NewFileStorage(ctx, storage.FileConfig{Directory: job.CandidateRoot})
		if err != nil {
			return xerrors.Errorf("failed to open candidate root: %w", err)
		}
		data, err := s.Get(ctx, job.Path)
		if err != nil {
			return xerrors.Errorf("failed to read candidate image: %w", err)
		}
		candidateData = data
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	return baselineData, candidateData, nil
}

func normalize(baseline *diffimage.RawImage, candidate *diffimage.RawImage) (*diffimage.RawImage, *diffimage.RawImage, error) {
	baseline, err := diffimage.ToRGBA(baseline)
	if err != nil {
		return nil, nil, stageError(StageDecode, ErrDecode, xerrors.Errorf("failed to convert baseline image: %w", err))
	}
	candidate, err = diffimage.ToRGBA(candidate)
	if err != nil {
		return nil, nil, stageError(StageDecode, ErrDecode, xerrors.Errorf("failed to convert candidate image: %w", err))
	}

	baseline, candidate = diffimage.Pad(baseline, candidate)

	if baseline.Width != candidate.Width || baseline.Height != candidate.Height {
		return nil, nil, stageError(StageNormalize, ErrDimensionInvariant, xerrors.Errorf(
			"images still differ in size after padding: %dx%d and %dx%d",
			baseline.Width, baseline.Height, candidate.Width, candidate.Height))
	}
	for _, img := range []*diffimage.RawImage{baseline, candidate} {
		if err := img.Validate(); err != nil {
			return nil, nil, stageError(StageNormalize, ErrDimensionInvariant, err)
		}
	}

	return baseline, candidate, nil
}

func (w *Worker) calculate(baseline []byte, candidate []byte, canvas []byte, width int, height int, options diffimage.Options) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("differ panicked: %v", r)
		}
	}()

	return w.differ().Calculate(baseline, candidate, canvas, width, height, options)
}

func (w *Worker) persist(ctx context.Context, job Job, canvas *diffimage.RawImage) error {
	data, err := codec.EncodePNG(canvas)
	if err != nil {
		return err
	}

	sink := w.Sink
	if sink == nil {
		sink, err = storage.NewFileStorage(ctx, storage.FileConfig{Directory: job.DiffRoot})
		if err != nil {
			return xerrors.Errorf("failed to open diff root: %w", err)
		}
	}

	if _, err := sink.Put(ctx, job.Path, data); err != nil {
		return xerrors.Errorf("failed to save diff image: %w", err)
	}
	return nil
}

func (w *Worker) differ() diffimage.Differ {
	if w.Differ != nil {
		return w.Differ
	}
	return diffimage.NewPixelDiff()
}
