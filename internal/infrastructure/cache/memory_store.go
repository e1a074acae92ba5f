package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
)

// snapshotEntry records when the snapshot was written
type snapshotEntry struct {
	Snapshot entity.RateSnapshot
	StoredAt time.Time
}

// MemoryStore provides a thread-safe in-memory currency store.
// It backs tests and the "memory" store driver; contents are lost on restart.
type MemoryStore struct {
	currencies map[string]entity.Currency
	snapshot   *snapshotEntry
	mutex      sync.RWMutex
}

// NewMemoryStore creates a new empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		currencies: make(map[string]entity.Currency),
	}
}

// currencyKey is unique per (code, name) pair
func currencyKey(c entity.Currency) string {
	return c.Code + ":" + c.Name
}

// LoadCurrencies returns a copy of every stored currency ordered by code
func (s *MemoryStore) LoadCurrencies(ctx context.Context) ([]entity.Currency, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	list := make([]entity.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		list = append(list, c)
	}

	sort.Slice(list, func(i, j int) bool {
		return currencyKey(list[i]) < currencyKey(list[j])
	})

	return list, nil
}

// SaveCurrencies stores the currencies
func (s *MemoryStore) SaveCurrencies(ctx context.Context, currencies []entity.Currency) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, c := range currencies {
		s.currencies[currencyKey(c)] = c
	}

	return nil
}

// ClearCurrencies removes all currencies and returns how many were removed
func (s *MemoryStore) ClearCurrencies(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := len(s.currencies)
	s.currencies = make(map[string]entity.Currency)

	return count, nil
}

// LoadRateSnapshot returns a copy of the stored snapshot, or nil
func (s *MemoryStore) LoadRateSnapshot(ctx context.Context) (*entity.RateSnapshot, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.snapshot == nil {
		return nil, nil
	}

	return copySnapshot(&s.snapshot.Snapshot), nil
}

// SaveRateSnapshot stores a copy of the snapshot
func (s *MemoryStore) SaveRateSnapshot(ctx context.Context, snapshot *entity.RateSnapshot) error {
	if snapshot == nil {
		return entity.ErrEmptyResult
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.snapshot = &snapshotEntry{
		Snapshot: *copySnapshot(snapshot),
		StoredAt: time.Now(),
	}

	return nil
}

// ClearRateSnapshot removes the snapshot and returns 1 if one was stored
func (s *MemoryStore) ClearRateSnapshot(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.snapshot == nil {
		return 0, nil
	}
	s.snapshot = nil

	return 1, nil
}

// SnapshotAge returns how long ago the snapshot was stored
func (s *MemoryStore) SnapshotAge() (time.Duration, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.snapshot == nil {
		return 0, false
	}

	return time.Since(s.snapshot.StoredAt), true
}

// Size returns the number of stored currencies
func (s *MemoryStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.currencies)
}

// copySnapshot keeps callers from mutating stored rates
func copySnapshot(src *entity.RateSnapshot) *entity.RateSnapshot {
	dst := *src
	dst.Rates = make(map[string]float64, len(src.Rates))
	for k, v := range src.Rates {
		dst.Rates[k] = v
	}
	return &dst
}
