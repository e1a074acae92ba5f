// Package service internal/application/service/rates_coordinator.go
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/damon-houk/fx-rates-sync/internal/application/resource"
	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/damon-houk/fx-rates-sync/internal/domain/repository"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
)

const (
	// MessageEmptyData is reported when the repository returns nothing usable
	MessageEmptyData = "Server returned empty data"

	// MessageCalculationFailed is reported when amounts cannot be computed
	MessageCalculationFailed = "unable to calculate exchange rates"
)

// RatesCoordinator turns repository and calculator outcomes into three observable resources:
// the currency catalog, the current rate snapshot and the last computed amounts.
type RatesCoordinator struct {
	repo   repository.CurrencyRepository
	logger logger.Logger

	catalog *resource.Observable[[]entity.Currency]
	rates   *resource.Observable[*entity.RateSnapshot]
	amounts *resource.Observable[[]entity.ConvertedAmount]

	calculator atomic.Pointer[ExchangeRateCalculator]
	currencies atomic.Pointer[[]entity.Currency]

	mu         sync.Mutex
	unregister func()
}

// NewRatesCoordinator creates a coordinator over the repository
func NewRatesCoordinator(repo repository.CurrencyRepository, log logger.Logger) *RatesCoordinator {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RatesCoordinator{
		repo:    repo,
		logger:  log.WithField("component", "rates_coordinator"),
		catalog: resource.NewObservable[[]entity.Currency](),
		rates:   resource.NewObservable[*entity.RateSnapshot](),
		amounts: resource.NewObservable[[]entity.ConvertedAmount](),
	}
}

// Init loads the catalog and, only once it succeeds, subscribes to rate refreshes
// and starts loading the rate snapshot. The rate result arrives asynchronously.
func (c *RatesCoordinator) Init(ctx context.Context) {
	previous, _ := c.catalog.Get()
	fallback := previous.Data
	if fallback == nil {
		fallback = []entity.Currency{}
	}

	c.catalog.Set(resource.Loading(previous.Data, previous.HasData))

	currencies, err := c.repo.LoadCurrencies(ctx, false)
	if err != nil {
		c.logger.Error("Failed to load currencies", map[string]interface{}{
			"error": err.Error(),
		})
		c.catalog.Set(resource.Error(fallback, true, err.Error()))
		return
	}

	if len(currencies) == 0 {
		c.logger.Warn("Currency catalog is empty", nil)
		c.catalog.Set(resource.Error(fallback, true, MessageEmptyData))
		return
	}

	c.currencies.Store(&currencies)
	c.catalog.Set(resource.Success(currencies))

	c.logger.Info("Currency catalog loaded", map[string]interface{}{
		"count": len(currencies),
	})

	c.subscribe()

	previousRates, _ := c.rates.Get()
	c.rates.Set(resource.Loading(previousRates.Data, previousRates.HasData))
	c.repo.LoadRates(ctx, false, c.onRates)
}

// Refresh forces a remote rate fetch; the outcome reaches the rates resource
// through the refresh subscription
func (c *RatesCoordinator) Refresh(ctx context.Context) {
	c.logger.Info("Forcing rate refresh", nil)
	c.repo.LoadRates(ctx, true, nil)
}

// Calculate converts amount in source into every quoted currency.
// The result is published on the amounts resource.
func (c *RatesCoordinator) Calculate(amount float64, source entity.Currency) {
	calc := c.calculator.Load()
	if calc == nil {
		c.logger.Warn("Calculation requested before rates were loaded", map[string]interface{}{
			"currency": source.Code,
		})
		c.amounts.Set(resource.Error[[]entity.ConvertedAmount](nil, false, MessageCalculationFailed))
		return
	}

	c.amounts.Set(resource.Loading[[]entity.ConvertedAmount](nil, false))

	go func() {
		amounts, err := calc.Calculate(amount, source)
		if err != nil {
			fields := map[string]interface{}{
				"currency": source.Code,
				"amount":   amount,
				"error":    err.Error(),
			}
			if errors.Is(err, entity.ErrRateNotFound) {
				c.logger.Warn("No rate for requested currency", fields)
			} else {
				c.logger.Error("Calculation failed", fields)
			}
			c.amounts.Set(resource.Error[[]entity.ConvertedAmount](nil, false, MessageCalculationFailed))
			return
		}

		c.amounts.Set(resource.Success(amounts))
	}()
}

// onRates receives both the initial load result and every forced refresh
func (c *RatesCoordinator) onRates(snapshot *entity.RateSnapshot) {
	if snapshot == nil {
		previous, _ := c.rates.Get()
		c.logger.Warn("Rate snapshot unavailable", map[string]interface{}{
			"has_previous": previous.HasData,
		})
		c.rates.Set(resource.Error(previous.Data, previous.HasData, MessageEmptyData))
		return
	}

	var currencies []entity.Currency
	if stored := c.currencies.Load(); stored != nil {
		currencies = *stored
	}

	c.calculator.Store(NewExchangeRateCalculator(snapshot, currencies))
	c.rates.Set(resource.Success(snapshot))

	c.logger.Info("Rate snapshot updated", map[string]interface{}{
		"base":      snapshot.BaseCode,
		"timestamp": snapshot.Timestamp,
		"quotes":    len(snapshot.Rates),
	})
}

func (c *RatesCoordinator) subscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unregister != nil {
		c.unregister()
	}
	c.unregister = c.repo.RegisterRefreshCallback(c.onRates)
}

// Close releases the refresh subscription. Callbacks already in flight still
// update the resources.
func (c *RatesCoordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unregister != nil {
		c.unregister()
		c.unregister = nil
	}
}

// Currencies returns the catalog resource
func (c *RatesCoordinator) Currencies() *resource.Observable[[]entity.Currency] {
	return c.catalog
}

// ExchangeRates returns the rate snapshot resource
func (c *RatesCoordinator) ExchangeRates() *resource.Observable[*entity.RateSnapshot] {
	return c.rates
}

// Amounts returns the computed amounts resource
func (c *RatesCoordinator) Amounts() *resource.Observable[[]entity.ConvertedAmount] {
	return c.amounts
}

// Calculator returns the current calculator, or nil before rates are loaded
func (c *RatesCoordinator) Calculator() *ExchangeRateCalculator {
	return c.calculator.Load()
}
