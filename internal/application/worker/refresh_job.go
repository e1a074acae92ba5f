// Package worker runs the periodic forced refresh of exchange rates.
package worker

import (
	"context"
	"fmt"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/damon-houk/fx-rates-sync/internal/domain/repository"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
)

// Outcome tells the scheduler what to do after a run
type Outcome int

const (
	// OutcomeSuccess means the refresh was dispatched (or completed when waiting)
	OutcomeSuccess Outcome = iota
	// OutcomeRetry means the run should be attempted again soon
	OutcomeRetry
	// OutcomeFailure means the run failed and should not be retried
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeFailure:
		return "failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RepositoryProvider resolves the repository a job refreshes.
// It may fail while the application is still wiring its dependencies.
type RepositoryProvider func(ctx context.Context) (repository.CurrencyRepository, error)

// Job is a unit of work the Scheduler runs
type Job interface {
	Run(ctx context.Context) Outcome
}

// RefreshJob forces a remote rate refresh through the repository
type RefreshJob struct {
	provider RepositoryProvider
	wait     bool
	logger   logger.Logger
}

// RefreshJobOption configures a RefreshJob
type RefreshJobOption func(*RefreshJob)

// WithWait makes Run block until the refreshed snapshot is delivered.
// A missing snapshot then yields OutcomeRetry.
func WithWait() RefreshJobOption {
	return func(j *RefreshJob) {
		j.wait = true
	}
}

// WithLogger sets the job logger
func WithLogger(log logger.Logger) RefreshJobOption {
	return func(j *RefreshJob) {
		if log != nil {
			j.logger = log
		}
	}
}

// NewRefreshJob creates a refresh job
func NewRefreshJob(provider RepositoryProvider, opts ...RefreshJobOption) *RefreshJob {
	job := &RefreshJob{
		provider: provider,
		logger:   logger.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(job)
	}
	job.logger = job.logger.WithField("component", "refresh_job")
	return job
}

// StaticProvider always resolves to repo
func StaticProvider(repo repository.CurrencyRepository) RepositoryProvider {
	return func(ctx context.Context) (repository.CurrencyRepository, error) {
		return repo, nil
	}
}

// Run performs one forced refresh. It never panics.
func (j *RefreshJob) Run(ctx context.Context) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("Refresh job panicked", map[string]interface{}{
				"panic": fmt.Sprintf("%v", r),
			})
			outcome = OutcomeFailure
		}
	}()

	if j.provider == nil {
		j.logger.Warn("No repository provider configured", nil)
		return OutcomeRetry
	}

	repo, err := j.provider(ctx)
	if err != nil || repo == nil {
		fields := map[string]interface{}{}
		if err != nil {
			fields["error"] = err.Error()
		}
		j.logger.Warn("Repository not available yet", fields)
		return OutcomeRetry
	}

	if !j.wait {
		repo.LoadRates(ctx, true, nil)
		j.logger.Debug("Forced rate refresh dispatched", nil)
		return OutcomeSuccess
	}

	delivered := make(chan *entity.RateSnapshot, 1)
	repo.LoadRates(ctx, true, func(snapshot *entity.RateSnapshot) {
		delivered <- snapshot
	})

	select {
	case snapshot := <-delivered:
		if snapshot == nil {
			j.logger.Warn("Forced rate refresh returned no data", nil)
			return OutcomeRetry
		}
		j.logger.Info("Forced rate refresh completed", map[string]interface{}{
			"base":      snapshot.BaseCode,
			"timestamp": snapshot.Timestamp,
			"quotes":    len(snapshot.Rates),
		})
		return OutcomeSuccess
	case <-ctx.Done():
		j.logger.Warn("Gave up waiting for rate refresh", map[string]interface{}{
			"error": ctx.Err().Error(),
		})
		return OutcomeRetry
	}
}
