package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// BarStore implements storage.BarStore on a local SQLite file.
// Used for offline runs where no database server is available.
type BarStore struct {
	db *sql.DB
}

// NewBarStore creates a new BarStore. The schema must already be applied.
func NewBarStore(db *sql.DB) *BarStore {
	return &BarStore{db: db}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars in one transaction. Fails entire batch on any duplicate.
func (s *BarStore) InsertBulk(ctx context.Context, symbol, interval string, bars []*domain.Bar) error {
	if err := storage.ValidateInsert(symbol, interval, bars); err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, bar_interval, timestamp_ms, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, symbol, interval, b.TimestampMs, b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert bar in bulk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySeries retrieves all bars of a series, ordered by timestamp ASC.
func (s *BarStore) GetBySeries(ctx context.Context, symbol, interval string) ([]*domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND bar_interval = ?
		ORDER BY timestamp_ms ASC
	`, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars of a series within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]*domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND bar_interval = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`, symbol, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// ListSeries returns every stored series, ordered by symbol then interval.
func (s *BarStore) ListSeries(ctx context.Context) ([]storage.SeriesKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT symbol, bar_interval
		FROM bars
		ORDER BY symbol ASC, bar_interval ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query series: %w", err)
	}
	defer rows.Close()

	var keys []storage.SeriesKey
	for rows.Next() {
		var k storage.SeriesKey
		if err := rows.Scan(&k.Symbol, &k.Interval); err != nil {
			return nil, fmt.Errorf("sqlite scan series: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func scanBars(rows *sql.Rows) ([]*domain.Bar, error) {
	var bars []*domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.TimestampMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bar: %w", err)
		}
		bars = append(bars, &b)
	}
	return bars, rows.Err()
}
