// Package repository internal/domain/repository/currency_repository.go
package repository

import (
	"context"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
)

// RatesCallback receives the outcome of an asynchronous rate load.
// A nil snapshot means no rates could be obtained.
type RatesCallback func(snapshot *entity.RateSnapshot)

// CurrencyStore defines the interface for the durable local cache
type CurrencyStore interface {
	// LoadCurrencies returns every cached currency, or an empty list
	LoadCurrencies(ctx context.Context) ([]entity.Currency, error)

	// SaveCurrencies inserts the currencies, replacing entries with the same code and name
	SaveCurrencies(ctx context.Context, currencies []entity.Currency) error

	// ClearCurrencies removes every cached currency and returns how many were removed
	ClearCurrencies(ctx context.Context) (int, error)

	// LoadRateSnapshot returns the cached snapshot, or nil when none is cached
	LoadRateSnapshot(ctx context.Context) (*entity.RateSnapshot, error)

	// SaveRateSnapshot stores the snapshot
	SaveRateSnapshot(ctx context.Context, snapshot *entity.RateSnapshot) error

	// ClearRateSnapshot removes the cached snapshot and returns how many rows were removed
	ClearRateSnapshot(ctx context.Context) (int, error)
}

// RateSource defines the interface for the remote provider of currencies and rates
type RateSource interface {
	// FetchCurrencies retrieves the currency catalog
	FetchCurrencies(ctx context.Context) (*entity.CurrencyCatalog, error)

	// FetchRateSnapshot retrieves the latest rates against the source's base currency
	FetchRateSnapshot(ctx context.Context) (*entity.RateSnapshot, error)
}

// CurrencyRepository defines the cache-or-remote access to currencies and rates
type CurrencyRepository interface {
	// LoadCurrencies returns the currency catalog, from the cache unless forceRemote is set
	LoadCurrencies(ctx context.Context, forceRemote bool) ([]entity.Currency, error)

	// LoadRates resolves the rate snapshot in the background and hands it to callback
	LoadRates(ctx context.Context, forceRemote bool, callback RatesCallback)

	// FetchRates resolves the rate snapshot on the calling goroutine
	FetchRates(ctx context.Context, forceRemote bool) (*entity.RateSnapshot, error)

	// RegisterRefreshCallback subscribes to forced rate refreshes.
	// Only one subscription is active; the returned func cancels it.
	RegisterRefreshCallback(callback RatesCallback) (unregister func())
}
