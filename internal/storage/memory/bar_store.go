package memory

import (
	"context"
	"sort"
	"sync"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu     sync.RWMutex
	series map[storage.SeriesKey]map[int64]*domain.Bar // keyed by series, then timestamp_ms
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		series: make(map[storage.SeriesKey]map[int64]*domain.Bar),
	}
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate.
func (s *BarStore) InsertBulk(_ context.Context, symbol, interval string, bars []*domain.Bar) error {
	if err := storage.ValidateInsert(symbol, interval, bars); err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.SeriesKey{Symbol: symbol, Interval: interval}
	existing := s.series[key]

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[int64]struct{}, len(bars))
	for _, b := range bars {
		if _, exists := existing[b.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[b.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[b.TimestampMs] = struct{}{}
	}

	// Second pass: insert all
	if existing == nil {
		existing = make(map[int64]*domain.Bar, len(bars))
		s.series[key] = existing
	}
	for _, b := range bars {
		barCopy := *b
		existing[b.TimestampMs] = &barCopy
	}

	return nil
}

// GetBySeries retrieves all bars of a series, ordered by timestamp ASC.
func (s *BarStore) GetBySeries(_ context.Context, symbol, interval string) ([]*domain.Bar, error) {
	return s.collect(symbol, interval, func(*domain.Bar) bool { return true }), nil
}

// GetByTimeRange retrieves bars within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(_ context.Context, symbol, interval string, start, end int64) ([]*domain.Bar, error) {
	return s.collect(symbol, interval, func(b *domain.Bar) bool {
		return b.TimestampMs >= start && b.TimestampMs <= end
	}), nil
}

// ListSeries returns every stored series, ordered by symbol then interval.
func (s *BarStore) ListSeries(_ context.Context) ([]storage.SeriesKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]storage.SeriesKey, 0, len(s.series))
	for k, bars := range s.series {
		if len(bars) > 0 {
			keys = append(keys, k)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Interval < keys[j].Interval
	})

	return keys, nil
}

// collect copies the matching bars of a series in timestamp order.
func (s *BarStore) collect(symbol, interval string, keep func(*domain.Bar) bool) []*domain.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.series[storage.SeriesKey{Symbol: symbol, Interval: interval}] {
		if keep(b) {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result
}

var _ storage.BarStore = (*BarStore)(nil)
