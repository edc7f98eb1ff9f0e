package runnable

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	"golang.org/x/xerrors"
)

// ParseSchedule parses a standard five field cron expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(spec)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// Scheduler calls Run at every activation of Schedule until its context is done. Runs never overlap;
// an activation missed while Run is in progress is skipped.
type Scheduler struct {
	Schedule cron.Schedule
	Run      func(ctx context.Context) error
	Log      logr.Logger
}

func (s *Scheduler) Start(ctx context.Context) error {
	for {
		now := time.Now()
		nextRun := s.Schedule.Next(now)
		if nextRun.IsZero() {
			return xerrors.New("schedule has no future activation")
		}
		s.Log.V(1).Info("waiting for next run", "next", nextRun)

		timer := time.NewTimer(nextRun.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := s.Run(ctx); err != nil {
			s.Log.Error(err, "scheduled run failed")
		}
	}
}
