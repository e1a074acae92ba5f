package worker

import (
	"context"
	"time"

	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
)

const (
	// DefaultInterval is the reference refresh cadence
	DefaultInterval = 30 * time.Minute

	defaultBaseDelay = 1 * time.Second
	maxBackoffShift  = 30
)

// SchedulerOptions configures a Scheduler
type SchedulerOptions struct {
	Interval  time.Duration
	BaseDelay time.Duration
	Logger    logger.Logger
}

// Scheduler runs a Job every interval. OutcomeRetry reschedules the job with
// exponential backoff capped at the interval; OutcomeFailure waits for the next tick.
type Scheduler struct {
	job       Job
	interval  time.Duration
	baseDelay time.Duration
	logger    logger.Logger
}

// NewScheduler creates a scheduler for job
func NewScheduler(job Job, opts SchedulerOptions) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetDefaultLogger()
	}

	return &Scheduler{
		job:       job,
		interval:  opts.Interval,
		baseDelay: opts.BaseDelay,
		logger:    opts.Logger.WithField("component", "scheduler"),
	}
}

// Start blocks, running the job until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})

	retries := 0
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped", nil)
			return
		case <-timer.C:
		}

		start := time.Now()
		outcome := s.job.Run(ctx)

		next := s.interval
		switch outcome {
		case OutcomeSuccess:
			retries = 0
		case OutcomeRetry:
			next = s.backoff(retries)
			retries++
		case OutcomeFailure:
			retries = 0
			s.logger.Error("Scheduled job failed", nil)
		}

		s.logger.Debug("Scheduled job finished", map[string]interface{}{
			"outcome":     outcome.String(),
			"duration_ms": time.Since(start).Milliseconds(),
			"next_run":    next.String(),
		})

		timer.Reset(next)
	}
}

// backoff returns baseDelay * 2^retryCount, capped at the interval
func (s *Scheduler) backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return s.baseDelay
	}
	if retryCount > maxBackoffShift {
		return s.interval
	}

	delay := s.baseDelay * time.Duration(1<<retryCount)
	if delay <= 0 || delay > s.interval {
		return s.interval
	}

	return delay
}
