package storage

import (
	"context"

	"signal-backtest-lab/internal/domain"
)

// SeriesKey identifies one bar series.
type SeriesKey struct {
	Symbol   string // instrument, e.g. "BTC-USD"
	Interval string // bar interval, e.g. "1d", "1h"
}

// BarStore provides access to OHLCV bar storage.
// Stores hold input market data only; simulation results are never persisted.
type BarStore interface {
	// InsertBulk adds bars to a series atomically.
	// Fails entire batch on a duplicate (symbol, interval, timestamp), including
	// duplicates inside the batch.
	InsertBulk(ctx context.Context, symbol, interval string, bars []*domain.Bar) error

	// GetBySeries retrieves all bars of a series, ordered by timestamp ASC.
	GetBySeries(ctx context.Context, symbol, interval string) ([]*domain.Bar, error)

	// GetByTimeRange retrieves bars of a series within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]*domain.Bar, error)

	// ListSeries returns every stored series, ordered by symbol then interval.
	ListSeries(ctx context.Context) ([]SeriesKey, error)
}

// ValidateInsert checks the arguments shared by every InsertBulk implementation.
func ValidateInsert(symbol, interval string, bars []*domain.Bar) error {
	if symbol == "" || interval == "" {
		return ErrInvalidInput
	}
	for _, b := range bars {
		if b == nil {
			return ErrInvalidInput
		}
	}
	return nil
}
