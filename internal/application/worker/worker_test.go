package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/damon-houk/fx-rates-sync/internal/domain/repository"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
	"github.com/damon-houk/fx-rates-sync/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRefreshJob_Run(t *testing.T) {
	ctx := context.Background()
	nop := WithLogger(logger.NewNopLogger())

	t.Run("Dispatches a forced refresh", func(t *testing.T) {
		repo := new(mocks.MockCurrencyRepository)
		repo.On("LoadRates", ctx, true, mock.Anything).Return(nil).Once()

		job := NewRefreshJob(StaticProvider(repo), nop)

		assert.Equal(t, OutcomeSuccess, job.Run(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("Retries while the repository is unavailable", func(t *testing.T) {
		job := NewRefreshJob(func(ctx context.Context) (repository.CurrencyRepository, error) {
			return nil, errors.New("not wired")
		}, nop)
		assert.Equal(t, OutcomeRetry, job.Run(ctx))

		assert.Equal(t, OutcomeRetry, NewRefreshJob(nil, nop).Run(ctx))
	})

	t.Run("Panics become failures", func(t *testing.T) {
		job := NewRefreshJob(func(ctx context.Context) (repository.CurrencyRepository, error) {
			panic("boom")
		}, nop)
		assert.Equal(t, OutcomeFailure, job.Run(ctx))
	})

	t.Run("Waits for the snapshot", func(t *testing.T) {
		repo := new(mocks.MockCurrencyRepository)
		repo.On("LoadRates", ctx, true, mock.Anything).Return(&entity.RateSnapshot{
			BaseCode: "USD",
			Rates:    map[string]float64{"USDUSD": 1},
		}).Once()

		job := NewRefreshJob(StaticProvider(repo), WithWait(), nop)
		assert.Equal(t, OutcomeSuccess, job.Run(ctx))
	})

	t.Run("Missing snapshot when waiting is a retry", func(t *testing.T) {
		repo := new(mocks.MockCurrencyRepository)
		repo.On("LoadRates", ctx, true, mock.Anything).Return(nil).Once()

		job := NewRefreshJob(StaticProvider(repo), WithWait(), nop)
		assert.Equal(t, OutcomeRetry, job.Run(ctx))
	})
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "retry", OutcomeRetry.String())
	assert.Equal(t, "failure", OutcomeFailure.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}

// scriptedJob returns the scripted outcomes in order, then OutcomeSuccess
type scriptedJob struct {
	mu       sync.Mutex
	outcomes []Outcome
	runs     []time.Time
}

func (j *scriptedJob) Run(ctx context.Context) Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.runs = append(j.runs, time.Now())
	if len(j.outcomes) == 0 {
		return OutcomeSuccess
	}
	next := j.outcomes[0]
	j.outcomes = j.outcomes[1:]
	return next
}

func (j *scriptedJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.runs)
}

func TestScheduler_Start(t *testing.T) {
	t.Run("Runs every interval until cancelled", func(t *testing.T) {
		job := &scriptedJob{}
		scheduler := NewScheduler(job, SchedulerOptions{
			Interval: 10 * time.Millisecond,
			Logger:   logger.NewNopLogger(),
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			scheduler.Start(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool { return job.count() >= 3 }, 2*time.Second, 5*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	})

	t.Run("Retries sooner than the interval", func(t *testing.T) {
		job := &scriptedJob{outcomes: []Outcome{OutcomeRetry, OutcomeRetry, OutcomeFailure}}
		scheduler := NewScheduler(job, SchedulerOptions{
			Interval:  50 * time.Millisecond,
			BaseDelay: time.Millisecond,
			Logger:    logger.NewNopLogger(),
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go scheduler.Start(ctx)

		require.Eventually(t, func() bool { return job.count() >= 3 }, 2*time.Second, time.Millisecond)

		job.mu.Lock()
		retryGap := job.runs[2].Sub(job.runs[1])
		job.mu.Unlock()
		assert.Less(t, retryGap, 50*time.Millisecond)
	})
}

func TestScheduler_Backoff(t *testing.T) {
	scheduler := NewScheduler(&scriptedJob{}, SchedulerOptions{
		Interval:  10 * time.Second,
		BaseDelay: time.Second,
		Logger:    logger.NewNopLogger(),
	})

	assert.Equal(t, time.Second, scheduler.backoff(-1))
	assert.Equal(t, time.Second, scheduler.backoff(0))
	assert.Equal(t, 2*time.Second, scheduler.backoff(1))
	assert.Equal(t, 8*time.Second, scheduler.backoff(3))
	assert.Equal(t, 10*time.Second, scheduler.backoff(4))
	assert.Equal(t, 10*time.Second, scheduler.backoff(100))
}
