package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
	"signal-backtest-lab/internal/storage/migrations"
)

func newTestStore(t *testing.T) *BarStore {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.RunSqliteMigrations(ctx, db))
	return NewBarStore(db)
}

func bar(ts int64, price float64) *domain.Bar {
	return &domain.Bar{TimestampMs: ts, Open: price, High: price * 1.01, Low: price * 0.99, Close: price, Volume: 7.5}
}

func TestBarStore_InsertAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "BTC-USD", "1d", []*domain.Bar{bar(3000, 30), bar(1000, 10), bar(2000, 20)}))

	got, err := store.GetBySeries(ctx, "BTC-USD", "1d")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, *bar(1000, 10), *got[0])
	assert.Equal(t, int64(3000), got[2].TimestampMs)

	ranged, err := store.GetByTimeRange(ctx, "BTC-USD", "1d", 1500, 3000)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, int64(2000), ranged[0].TimestampMs)
}

func TestBarStore_DuplicateRollsBackBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "BTC-USD", "1d", []*domain.Bar{bar(1000, 10)}))

	err := store.InsertBulk(ctx, "BTC-USD", "1d", []*domain.Bar{bar(2000, 20), bar(1000, 10)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, "BTC-USD", "1d", []*domain.Bar{bar(5000, 20), bar(5000, 21)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetBySeries(ctx, "BTC-USD", "1d")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBarStore_ListSeries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "ETH-USD", "1h", []*domain.Bar{bar(1, 1)}))
	require.NoError(t, store.InsertBulk(ctx, "BTC-USD", "1h", []*domain.Bar{bar(1, 1)}))

	keys, err := store.ListSeries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []storage.SeriesKey{
		{Symbol: "BTC-USD", Interval: "1h"},
		{Symbol: "ETH-USD", Interval: "1h"},
	}, keys)
}

func TestBarStore_InvalidInput(t *testing.T) {
	store := newTestStore(t)

	err := store.InsertBulk(context.Background(), "BTC-USD", "", []*domain.Bar{bar(1, 1)})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
