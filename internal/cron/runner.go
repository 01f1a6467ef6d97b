package cron

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/metrics"
)

const defaultInterval = 15 * time.Minute

// RunnerParams configure a Runner.
type RunnerParams struct {
	Logger   *logger.Logger
	Lock     Locker
	Jobs     Jobs
	Metrics  *metrics.JobMetrics
	Interval time.Duration
}

// Runner executes its jobs once per interval while it holds the lock.
type Runner struct {
	logg     *logger.Logger
	lock     Locker
	jobs     Jobs
	metrics  *metrics.JobMetrics
	interval time.Duration
}

// NewRunner validates params and builds a Runner.
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Runner{
		logg:     params.Logger,
		lock:     params.Lock,
		jobs:     params.Jobs,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run ticks until ctx is canceled. The first cycle starts immediately.
func (r *Runner) Run(ctx context.Context) error {
	r.RunOnce(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job a single time and reports whether this worker
// held the lock. A failing job does not stop the ones after it.
func (r *Runner) RunOnce(ctx context.Context) bool {
	release, ok, err := r.lock.Acquire(ctx)
	if err != nil {
		r.logg.Error(ctx, "cron.lock_failed", err)
		return false
	}
	if !ok {
		r.logg.Debug(ctx, "cron.lock_held_elsewhere")
		return false
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "cron.lock_release_failed")
		}
	}()

	for _, job := range r.jobs {
		r.runJob(ctx, job)
	}
	return true
}

func (r *Runner) runJob(ctx context.Context, job Job) {
	jobCtx := r.logg.WithField(ctx, "job", job.Name())
	start := time.Now()
	affected, err := job.Run(jobCtx)
	elapsed := time.Since(start)
	r.metrics.ObserveRun(job.Name(), err, elapsed)
	r.metrics.AddAffected(job.Name(), affected)

	jobCtx = r.logg.WithFields(jobCtx, map[string]any{
		"affected":    affected,
		"duration_ms": elapsed.Milliseconds(),
	})
	if err != nil {
		r.logg.Error(jobCtx, "cron.job_failed", err)
		return
	}
	r.logg.Info(jobCtx, "cron.job_completed")
}
