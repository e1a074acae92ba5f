package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
)

const (
	currencyKeyPrefix = "currency:"
	rateSnapshotKey   = "rates:snapshot"
)

// BadgerCurrencyStore implements the currency store interface using BadgerDB
type BadgerCurrencyStore struct {
	db *badger.DB
}

// NewBadgerCurrencyStore creates a new BadgerDB currency store
func NewBadgerCurrencyStore(db *badger.DB) *BadgerCurrencyStore {
	return &BadgerCurrencyStore{db: db}
}

// currencyKey is unique per (code, name) pair
func currencyKey(c entity.Currency) []byte {
	return []byte(currencyKeyPrefix + c.Code + ":" + c.Name)
}

// LoadCurrencies returns every cached currency ordered by code
func (s *BadgerCurrencyStore) LoadCurrencies(ctx context.Context) ([]entity.Currency, error) {
	currencies := []entity.Currency{}

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(currencyKeyPrefix)
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         prefix,
		})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c entity.Currency
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return err
			}
			currencies = append(currencies, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load currencies: %w", err)
	}

	return currencies, nil
}

// SaveCurrencies inserts all currencies in a single transaction
func (s *BadgerCurrencyStore) SaveCurrencies(ctx context.Context, currencies []entity.Currency) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, c := range currencies {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("failed to marshal currency %s: %w", c.Code, err)
			}
			if err := txn.Set(currencyKey(c), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save currencies: %w", err)
	}

	return nil
}

// ClearCurrencies deletes every cached currency and returns how many were deleted
func (s *BadgerCurrencyStore) ClearCurrencies(ctx context.Context) (int, error) {
	count := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(currencyKeyPrefix)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		count = len(keys)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear currencies: %w", err)
	}

	return count, nil
}

// LoadRateSnapshot returns the cached snapshot, or nil if there is none
func (s *BadgerCurrencyStore) LoadRateSnapshot(ctx context.Context) (*entity.RateSnapshot, error) {
	var snapshot entity.RateSnapshot

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(rateSnapshotKey))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snapshot)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load rate snapshot: %w", err)
	}

	return &snapshot, nil
}

// SaveRateSnapshot stores the snapshot in the single snapshot row
func (s *BadgerCurrencyStore) SaveRateSnapshot(ctx context.Context, snapshot *entity.RateSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("failed to save rate snapshot: %w", entity.ErrEmptyResult)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal rate snapshot: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(rateSnapshotKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save rate snapshot: %w", err)
	}

	return nil
}

// ClearRateSnapshot deletes the cached snapshot and returns 1 if one was present
func (s *BadgerCurrencyStore) ClearRateSnapshot(ctx context.Context) (int, error) {
	count := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(rateSnapshotKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		count = 1
		return txn.Delete([]byte(rateSnapshotKey))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear rate snapshot: %w", err)
	}

	return count, nil
}
