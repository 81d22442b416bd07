package clickhouse

import (
	"context"
	"fmt"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, interval, timestamp_ms).
// MergeTree does not enforce keys, so duplicates are checked before the batch is sent.
func (s *BarStore) InsertBulk(ctx context.Context, symbol, interval string, bars []*domain.Bar) error {
	if err := storage.ValidateInsert(symbol, interval, bars); err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(bars))
	minTs, maxTs := bars[0].TimestampMs, bars[0].TimestampMs
	for _, b := range bars {
		if _, exists := seen[b.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[b.TimestampMs] = struct{}{}
		minTs = min(minTs, b.TimestampMs)
		maxTs = max(maxTs, b.TimestampMs)
	}

	// Check for duplicates against existing rows in the batch's time span
	existing, err := s.timestamps(ctx, symbol, interval, minTs, maxTs)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, ts := range existing {
		if _, clash := seen[ts]; clash {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			symbol, bar_interval, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			symbol, interval, b.TimestampMs,
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySeries retrieves all bars of a series, ordered by timestamp ASC.
// FINAL collapses rows not yet merged by ReplacingMergeTree.
func (s *BarStore) GetBySeries(ctx context.Context, symbol, interval string) ([]*domain.Bar, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars FINAL
		WHERE symbol = ? AND bar_interval = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("query by series: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetByTimeRange retrieves bars of a series within [start, end] (inclusive).
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]*domain.Bar, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars FINAL
		WHERE symbol = ? AND bar_interval = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
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

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
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

// timestamps returns the stored timestamps of a series within [start, end].
func (s *BarStore) timestamps(ctx context.Context, symbol, interval string, start, end int64) ([]int64, error) {
	query := `
		SELECT timestamp_ms FROM bars
		WHERE symbol = ? AND bar_interval = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar

		err := rows.Scan(
			&b.TimestampMs, &b.Open, &b.High,
			&b.Low, &b.Close, &b.Volume,
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
