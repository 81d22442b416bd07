package storage

import (
	"context"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/observability"
)

// InstrumentedBarStore records query latency, errors and ingested bars for a backend.
type InstrumentedBarStore struct {
	backend string
	inner   BarStore
}

// Instrument wraps inner so every call is reported under backend.
func Instrument(backend string, inner BarStore) *InstrumentedBarStore {
	return &InstrumentedBarStore{backend: backend, inner: inner}
}

// Compile-time interface check.
var _ BarStore = (*InstrumentedBarStore)(nil)

// InsertBulk delegates and counts the bars written.
func (s *InstrumentedBarStore) InsertBulk(ctx context.Context, symbol, interval string, bars []*domain.Bar) error {
	start := time.Now()
	err := s.inner.InsertBulk(ctx, symbol, interval, bars)
	observability.RecordStoreQuery(s.backend, "insert_bulk", time.Since(start), err)
	if err == nil {
		observability.RecordBarsIngested(s.backend, len(bars))
	}
	return err
}

// GetBySeries delegates.
func (s *InstrumentedBarStore) GetBySeries(ctx context.Context, symbol, interval string) ([]*domain.Bar, error) {
	start := time.Now()
	bars, err := s.inner.GetBySeries(ctx, symbol, interval)
	observability.RecordStoreQuery(s.backend, "get_by_series", time.Since(start), err)
	return bars, err
}

// GetByTimeRange delegates.
func (s *InstrumentedBarStore) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]*domain.Bar, error) {
	began := time.Now()
	bars, err := s.inner.GetByTimeRange(ctx, symbol, interval, start, end)
	observability.RecordStoreQuery(s.backend, "get_by_time_range", time.Since(began), err)
	return bars, err
}

// ListSeries delegates.
func (s *InstrumentedBarStore) ListSeries(ctx context.Context) ([]SeriesKey, error) {
	start := time.Now()
	keys, err := s.inner.ListSeries(ctx)
	observability.RecordStoreQuery(s.backend, "list_series", time.Since(start), err)
	return keys, err
}
