// internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/damon-houk/fx-rates-sync/internal/domain/repository"
	"github.com/stretchr/testify/mock"
)

// MockCurrencyStore mocks the CurrencyStore interface
type MockCurrencyStore struct {
	mock.Mock
}

func (m *MockCurrencyStore) LoadCurrencies(ctx context.Context) ([]entity.Currency, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Currency), args.Error(1)
}

func (m *MockCurrencyStore) SaveCurrencies(ctx context.Context, currencies []entity.Currency) error {
	args := m.Called(ctx, currencies)
	return args.Error(0)
}

func (m *MockCurrencyStore) ClearCurrencies(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockCurrencyStore) LoadRateSnapshot(ctx context.Context) (*entity.RateSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RateSnapshot), args.Error(1)
}

func (m *MockCurrencyStore) SaveRateSnapshot(ctx context.Context, snapshot *entity.RateSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockCurrencyStore) ClearRateSnapshot(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockRateSource mocks the RateSource interface
type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) FetchCurrencies(ctx context.Context) (*entity.CurrencyCatalog, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.CurrencyCatalog), args.Error(1)
}

func (m *MockRateSource) FetchRateSnapshot(ctx context.Context) (*entity.RateSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RateSnapshot), args.Error(1)
}

// MockCurrencyRepository mocks the CurrencyRepository interface.
// LoadRates records the call and then delivers the configured snapshot
// synchronously to the callback.
type MockCurrencyRepository struct {
	mock.Mock
}

func (m *MockCurrencyRepository) LoadCurrencies(ctx context.Context, forceRemote bool) ([]entity.Currency, error) {
	args := m.Called(ctx, forceRemote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Currency), args.Error(1)
}

func (m *MockCurrencyRepository) LoadRates(ctx context.Context, forceRemote bool, callback repository.RatesCallback) {
	args := m.Called(ctx, forceRemote, callback)
	if callback == nil {
		return
	}
	if snapshot, ok := args.Get(0).(*entity.RateSnapshot); ok {
		callback(snapshot)
		return
	}
	callback(nil)
}

func (m *MockCurrencyRepository) FetchRates(ctx context.Context, forceRemote bool) (*entity.RateSnapshot, error) {
	args := m.Called(ctx, forceRemote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RateSnapshot), args.Error(1)
}

func (m *MockCurrencyRepository) RegisterRefreshCallback(callback repository.RatesCallback) func() {
	args := m.Called(callback)
	if fn, ok := args.Get(0).(func()); ok {
		return fn
	}
	return func() {}
}
