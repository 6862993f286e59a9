package cron

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

const (
	defaultInterval = 15 * time.Minute
	releaseTimeout  = 5 * time.Second
)

// jobRecorder receives per-job timings and outcomes.
type jobRecorder interface {
	ObserveRun(job string, duration time.Duration, err error)
	IncSkipped()
}

// ServiceParams configure the cron service. Metrics may be nil.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  jobRecorder
	Interval time.Duration
}

// Service wakes every interval, takes the cluster-wide lock and runs the
// jobs that are due.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  jobRecorder
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Run starts a cycle right away and then one per interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs one cycle. It returns nil without running anything when
// another worker holds the lock. A failing job is logged and counted and the
// remaining jobs still run.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		if s.metrics != nil {
			s.metrics.IncSkipped()
		}
		return nil
	}
	defer s.release(ctx)

	due := s.registry.Due(s.now())
	names := make([]string, len(due))
	for i, job := range due {
		names[i] = job.Name()
	}
	ctx = s.logg.WithField(ctx, "cycle_id", uuid.NewString())
	s.logg.Info(s.logg.WithField(ctx, "jobs", names), "scheduled run starting")

	failed := 0
	for _, job := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.registry.MarkRan(job.Name(), s.now())
		if s.runJob(ctx, job) != nil {
			failed++
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"ran": len(due), "failed": failed}), "scheduled run complete")
	return nil
}

// release outlives a canceled ctx so a shutdown mid-cycle does not leave the
// lease to expire on its own.
func (s *Service) release(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.lock.Release(releaseCtx); err != nil {
		s.logg.Error(ctx, "failed to release cron lock", err)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
			jobCtx = s.logg.WithField(jobCtx, "stack", string(debug.Stack()))
		}
		duration := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveRun(job.Name(), duration, err)
		}
		jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
		if err != nil {
			s.logg.Error(jobCtx, "job failed", err)
			return
		}
		s.logg.Info(jobCtx, "job completed")
	}()

	s.logg.Info(jobCtx, "job start")
	return job.Run(jobCtx)
}
