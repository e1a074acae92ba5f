// Package db internal/infrastructure/db/currency_repository.go
package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/damon-houk/fx-rates-sync/internal/domain/repository"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
)

var _ repository.CurrencyRepository = (*CachedCurrencyRepository)(nil)

// refreshSubscription is compared by pointer so a stale unregister cannot clear a newer one
type refreshSubscription struct {
	callback repository.RatesCallback
}

// CachedCurrencyRepository implements the CurrencyRepository interface.
// Reads are served from the store and fall back to the rate source on a miss
// or when a remote load is forced. Concurrent forced refreshes are not
// deduplicated and the last cache write wins.
type CachedCurrencyRepository struct {
	store  repository.CurrencyStore
	source repository.RateSource
	logger logger.Logger

	mu      sync.Mutex
	refresh *refreshSubscription

	wg sync.WaitGroup
}

// NewCachedCurrencyRepository creates a new cache-or-remote repository
func NewCachedCurrencyRepository(store repository.CurrencyStore, source repository.RateSource, log logger.Logger) *CachedCurrencyRepository {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &CachedCurrencyRepository{
		store:  store,
		source: source,
		logger: log.WithField("component", "currency_repository"),
	}
}

// LoadCurrencies returns the currency catalog.
//
// With forceRemote the rate source is always asked and a transport failure is
// returned to the caller. Without it the cache is returned when non-empty;
// otherwise the rate source is asked and any failure yields an empty list.
func (r *CachedCurrencyRepository) LoadCurrencies(ctx context.Context, forceRemote bool) ([]entity.Currency, error) {
	if forceRemote {
		currencies, err := r.loadRemoteCurrencies(ctx)
		if errors.Is(err, entity.ErrEmptyResult) {
			return []entity.Currency{}, nil
		}
		if err != nil {
			return nil, err
		}
		return currencies, nil
	}

	if cached := r.loadCachedCurrencies(ctx); len(cached) > 0 {
		r.logger.Debug("Currencies served from cache", map[string]interface{}{
			"count": len(cached),
		})
		return cached, nil
	}

	currencies, err := r.loadRemoteCurrencies(ctx)
	if err != nil {
		r.logger.Warn("Remote currencies unavailable after cache miss", map[string]interface{}{
			"error": err.Error(),
		})
		return []entity.Currency{}, nil
	}

	return currencies, nil
}

// LoadRates resolves the rate snapshot on a background goroutine and invokes
// callback exactly once with the result, or with nil when no rates could be
// obtained. The work is not cancelled when ctx is.
func (r *CachedCurrencyRepository) LoadRates(ctx context.Context, forceRemote bool, callback repository.RatesCallback) {
	ctx = context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		delivered := false
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Rate load panicked", map[string]interface{}{
					"panic":        fmt.Sprint(rec),
					"force_remote": forceRemote,
				})
				if !delivered && callback != nil {
					delivered = true
					r.invoke(callback, nil)
				}
			}
		}()

		snapshot, err := r.FetchRates(ctx, forceRemote)
		if err != nil {
			r.logger.Warn("Rate load failed", map[string]interface{}{
				"force_remote": forceRemote,
				"error":        err.Error(),
			})
		}

		if callback != nil {
			delivered = true
			callback(snapshot)
		}
	}()
}

// FetchRates resolves the rate snapshot on the calling goroutine.
// A forced fetch also notifies the refresh subscriber, with nil on failure.
func (r *CachedCurrencyRepository) FetchRates(ctx context.Context, forceRemote bool) (*entity.RateSnapshot, error) {
	if !forceRemote {
		if cached := r.loadCachedRates(ctx); cached != nil {
			r.logger.Debug("Rates served from cache", map[string]interface{}{
				"base":      cached.BaseCode,
				"timestamp": cached.Timestamp,
			})
			return cached, nil
		}
		return r.loadRemoteRates(ctx)
	}

	snapshot, err := r.loadRemoteRates(ctx)
	r.notifyRefresh(snapshot)
	return snapshot, err
}

// RegisterRefreshCallback replaces the refresh subscriber.
// The returned func removes the subscription if it is still the active one.
func (r *CachedCurrencyRepository) RegisterRefreshCallback(callback repository.RatesCallback) func() {
	sub := &refreshSubscription{callback: callback}

	r.mu.Lock()
	r.refresh = sub
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.refresh == sub {
			r.refresh = nil
		}
	}
}

// Wait blocks until every background rate load has delivered its result
func (r *CachedCurrencyRepository) Wait() {
	r.wg.Wait()
}

func (r *CachedCurrencyRepository) notifyRefresh(snapshot *entity.RateSnapshot) {
	r.mu.Lock()
	sub := r.refresh
	r.mu.Unlock()

	if sub == nil || sub.callback == nil {
		return
	}
	r.invoke(sub.callback, snapshot)
}

// invoke shields the repository from a panicking subscriber
func (r *CachedCurrencyRepository) invoke(callback repository.RatesCallback, snapshot *entity.RateSnapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Rates callback panicked", map[string]interface{}{
				"panic": fmt.Sprint(rec),
			})
		}
	}()
	callback(snapshot)
}

func (r *CachedCurrencyRepository) loadCachedCurrencies(ctx context.Context) []entity.Currency {
	currencies, err := r.store.LoadCurrencies(ctx)
	if err != nil {
		r.logger.Warn("Failed to read cached currencies", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return currencies
}

func (r *CachedCurrencyRepository) loadRemoteCurrencies(ctx context.Context) ([]entity.Currency, error) {
	start := time.Now()

	catalog, err := r.source.FetchCurrencies(ctx)
	if err != nil {
		if errors.Is(err, entity.ErrEmptyResult) {
			return nil, fmt.Errorf("failed to fetch currencies: %w", err)
		}
		r.logger.Error("Failed to fetch currencies", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, remoteError("failed to fetch currencies", err)
	}

	if catalog == nil || !catalog.Success || len(catalog.Currencies) == 0 {
		return nil, fmt.Errorf("failed to fetch currencies: %w", entity.ErrEmptyResult)
	}

	currencies := catalog.ToCurrencies()
	r.replaceCachedCurrencies(ctx, currencies)

	r.logger.Info("Currencies fetched from remote", map[string]interface{}{
		"count":       len(currencies),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return currencies, nil
}

func (r *CachedCurrencyRepository) replaceCachedCurrencies(ctx context.Context, currencies []entity.Currency) {
	removed, err := r.store.ClearCurrencies(ctx)
	if err != nil {
		r.logger.Error("Failed to clear cached currencies", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if err := r.store.SaveCurrencies(ctx, currencies); err != nil {
		r.logger.Error("Failed to cache currencies", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	r.logger.Debug("Currency cache replaced", map[string]interface{}{
		"removed":  removed,
		"inserted": len(currencies),
	})
}

func (r *CachedCurrencyRepository) loadCachedRates(ctx context.Context) *entity.RateSnapshot {
	snapshot, err := r.store.LoadRateSnapshot(ctx)
	if err != nil {
		r.logger.Warn("Failed to read cached rates", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	if snapshot.IsEmpty() {
		return nil
	}
	return snapshot
}

func (r *CachedCurrencyRepository) loadRemoteRates(ctx context.Context) (*entity.RateSnapshot, error) {
	start := time.Now()

	snapshot, err := r.source.FetchRateSnapshot(ctx)
	if err != nil {
		if errors.Is(err, entity.ErrEmptyResult) {
			return nil, fmt.Errorf("failed to fetch rates: %w", err)
		}
		r.logger.Error("Failed to fetch rates", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, remoteError("failed to fetch rates", err)
	}

	if snapshot.IsEmpty() {
		return nil, fmt.Errorf("failed to fetch rates: %w", entity.ErrEmptyResult)
	}

	r.replaceCachedRates(ctx, snapshot)

	r.logger.Info("Rates fetched from remote", map[string]interface{}{
		"base":        snapshot.BaseCode,
		"timestamp":   snapshot.Timestamp,
		"quotes":      len(snapshot.Rates),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return snapshot, nil
}

func (r *CachedCurrencyRepository) replaceCachedRates(ctx context.Context, snapshot *entity.RateSnapshot) {
	if _, err := r.store.ClearRateSnapshot(ctx); err != nil {
		r.logger.Error("Failed to clear cached rates", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if err := r.store.SaveRateSnapshot(ctx, snapshot); err != nil {
		r.logger.Error("Failed to cache rates", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// remoteError tags err as ErrRemoteUnavailable unless the source already did
func remoteError(op string, err error) error {
	if errors.Is(err, entity.ErrRemoteUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, entity.ErrRemoteUnavailable, err)
}
