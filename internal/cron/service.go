package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const defaultInterval = time.Hour

type jobRecorder interface {
	ObserveDuration(job string, duration time.Duration)
	IncSuccess(job string)
	IncFailure(job string)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  jobRecorder
	Interval time.Duration
}

// Service drives the registered jobs. Every cycle runs under Lock, so with
// several replicas only one does the work.
type Service struct {
	logg     *logger.Logger
	jobs     *Registry
	lock     Lock
	metrics  jobRecorder
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	case params.Registry == nil:
		return nil, errors.New("job registry required")
	}
	svc := &Service{
		logg:     params.Logger,
		jobs:     params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// Run starts a cycle right away and another on each interval until ctx is done.
// Cycle failures are logged and never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle finished with errors", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every registered job once.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.cycle(ctx, s.jobs.Jobs())
}

// RunNamed runs only the named jobs, in the order given.
func (s *Service) RunNamed(ctx context.Context, names ...string) error {
	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		job, ok := s.jobs.Lookup(name)
		if !ok {
			return fmt.Errorf("unknown cron job %q (have %v)", name, s.jobs.Names())
		}
		jobs = append(jobs, job)
	}
	return s.cycle(ctx, jobs)
}

// cycle takes the lock, runs jobs and releases it. A failing job does not
// stop the ones after it; every failure comes back in one multierr.
func (s *Service) cycle(ctx context.Context, jobs []Job) (err error) {
	won, lockErr := s.lock.Acquire(ctx)
	if lockErr != nil {
		return fmt.Errorf("lock acquire: %w", lockErr)
	}
	if !won {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			err = multierr.Append(err, fmt.Errorf("lock release: %w", relErr))
		}
	}()

	started := time.Now()
	for _, job := range jobs {
		if ctx.Err() != nil {
			err = multierr.Append(err, ctx.Err())
			break
		}
		if jobErr := s.runJob(ctx, job); jobErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", job.Name(), jobErr))
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        len(jobs),
		"failed_jobs": len(multierr.Errors(err)),
		"duration_ms": time.Since(started).Milliseconds(),
	}), "cron cycle complete")
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)

	started := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(started)

	if s.metrics != nil {
		s.metrics.ObserveDuration(name, elapsed)
		if err != nil {
			s.metrics.IncFailure(name)
		} else {
			s.metrics.IncSuccess(name)
		}
	}

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return err
	}
	s.logg.Debug(ctx, "cron job done")
	return nil
}
