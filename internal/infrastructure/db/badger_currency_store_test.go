package db

import (
	"context"
	"os"
	"testing"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB opens a BadgerDB in a temporary directory that is removed when the test ends
func openTestDB(t *testing.T) *badger.DB {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "badger-store-test")
	require.NoError(t, err)

	opts := badger.DefaultOptions(tempDir)
	opts.Logger = nil
	opts.SyncWrites = false

	badgerDB, err := badger.Open(opts)
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	t.Cleanup(func() {
		badgerDB.Close()
		os.RemoveAll(tempDir)
	})

	return badgerDB
}

func TestBadgerCurrencyStore_Currencies(t *testing.T) {
	store := NewBadgerCurrencyStore(openTestDB(t))
	ctx := context.Background()

	t.Run("Empty store", func(t *testing.T) {
		currencies, err := store.LoadCurrencies(ctx)
		assert.NoError(t, err)
		assert.NotNil(t, currencies)
		assert.Empty(t, currencies)
	})

	t.Run("Save and load", func(t *testing.T) {
		err := store.SaveCurrencies(ctx, []entity.Currency{
			{Code: "USD", Name: "United States Dollar"},
			{Code: "GBP", Name: "British Pound Sterling"},
			{Code: "EUR", Name: "Euro"},
		})
		require.NoError(t, err)

		currencies, err := store.LoadCurrencies(ctx)
		assert.NoError(t, err)
		assert.ElementsMatch(t, []entity.Currency{
			{Code: "USD", Name: "United States Dollar"},
			{Code: "GBP", Name: "British Pound Sterling"},
			{Code: "EUR", Name: "Euro"},
		}, currencies)
	})

	t.Run("Same code and name is stored once", func(t *testing.T) {
		err := store.SaveCurrencies(ctx, []entity.Currency{
			{Code: "USD", Name: "United States Dollar"},
		})
		require.NoError(t, err)

		currencies, err := store.LoadCurrencies(ctx)
		assert.NoError(t, err)
		assert.Len(t, currencies, 3)
	})

	t.Run("Clear returns count", func(t *testing.T) {
		count, err := store.ClearCurrencies(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 3, count)

		currencies, err := store.LoadCurrencies(ctx)
		assert.NoError(t, err)
		assert.Empty(t, currencies)

		count, err = store.ClearCurrencies(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestBadgerCurrencyStore_RateSnapshot(t *testing.T) {
	store := NewBadgerCurrencyStore(openTestDB(t))
	ctx := context.Background()

	snapshot, err := store.LoadRateSnapshot(ctx)
	assert.NoError(t, err)
	assert.Nil(t, snapshot)

	saved := &entity.RateSnapshot{
		ID:        "snapshot-1",
		Timestamp: "1600000000",
		BaseCode:  "USD",
		Rates: map[string]float64{
			"USDUSD": 1.0,
			"USDGBP": 0.821959,
			"USDEUR": 0.917011,
			"USDJPY": 107.650385,
		},
	}
	require.NoError(t, store.SaveRateSnapshot(ctx, saved))

	loaded, err := store.LoadRateSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	// a newer snapshot replaces the single row
	newer := &entity.RateSnapshot{
		ID:        "snapshot-2",
		Timestamp: "1600003600",
		BaseCode:  "USD",
		Rates:     map[string]float64{"USDUSD": 1.0, "USDNGN": 390.503727},
	}
	require.NoError(t, store.SaveRateSnapshot(ctx, newer))

	loaded, err = store.LoadRateSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer, loaded)

	count, err := store.ClearRateSnapshot(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.ClearRateSnapshot(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, count)

	loaded, err = store.LoadRateSnapshot(ctx)
	assert.NoError(t, err)
	assert.Nil(t, loaded)

	assert.ErrorIs(t, store.SaveRateSnapshot(ctx, nil), entity.ErrEmptyResult)
}
