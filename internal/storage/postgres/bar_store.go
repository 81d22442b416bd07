package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// BarStore implements storage.BarStore using PostgreSQL.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

const insertBarQuery = `
	INSERT INTO bars (
		symbol, bar_interval, timestamp_ms, open, high, low, close, volume
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// InsertBulk adds multiple bars atomically. Fails entire batch on any duplicate.
func (s *BarStore) InsertBulk(ctx context.Context, symbol, interval string, bars []*domain.Bar) error {
	if err := storage.ValidateInsert(symbol, interval, bars); err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(insertBarQuery,
			symbol,
			interval,
			b.TimestampMs,
			b.Open,
			b.High,
			b.Low,
			b.Close,
			b.Volume,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range bars {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert bar in bulk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySeries retrieves all bars of a series, ordered by timestamp ASC.
func (s *BarStore) GetBySeries(ctx context.Context, symbol, interval string) ([]*domain.Bar, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE symbol = $1 AND bar_interval = $2
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("get bars by series: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars of a series within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]*domain.Bar, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE symbol = $1 AND bar_interval = $2 AND timestamp_ms >= $3 AND timestamp_ms <= $4
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("get bars by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// ListSeries returns every stored series, ordered by symbol then interval.
func (s *BarStore) ListSeries(ctx context.Context) ([]storage.SeriesKey, error) {
	query := `
		SELECT DISTINCT symbol, bar_interval
		FROM bars
		ORDER BY symbol ASC, bar_interval ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var keys []storage.SeriesKey
	for rows.Next() {
		var k storage.SeriesKey
		if err := rows.Scan(&k.Symbol, &k.Interval); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series rows: %w", err)
	}

	return keys, nil
}

// scanBars scans multiple rows into a slice of Bar.
func scanBars(rows pgx.Rows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar

		err := rows.Scan(
			&b.TimestampMs,
			&b.Open,
			&b.High,
			&b.Low,
			&b.Close,
			&b.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
