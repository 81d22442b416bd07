package memory

import (
	"context"
	"errors"
	"testing"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

func testBar(ts int64, close float64) *domain.Bar {
	return &domain.Bar{TimestampMs: ts, Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 10}
}

func TestBarStore_InsertBulkAndGet(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	// Inserted out of order on purpose
	bars := []*domain.Bar{testBar(3000, 12), testBar(1000, 10), testBar(2000, 11)}
	if err := store.InsertBulk(ctx, "BTC-USD", "1d", bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetBySeries(ctx, "BTC-USD", "1d")
	if err != nil {
		t.Fatalf("GetBySeries failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 bars, got %d", len(result))
	}
	for i, ts := range []int64{1000, 2000, 3000} {
		if result[i].TimestampMs != ts {
			t.Errorf("index %d: expected ts %d, got %d", i, ts, result[i].TimestampMs)
		}
	}

	other, _ := store.GetBySeries(ctx, "BTC-USD", "1h")
	if len(other) != 0 {
		t.Errorf("Expected no bars for other interval, got %d", len(other))
	}
}

func TestBarStore_DuplicateKey(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{testBar(1000, 10)}
	if err := store.InsertBulk(ctx, "BTC-USD", "1d", bars); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, "BTC-USD", "1d", bars)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same timestamp in another series is fine
	if err := store.InsertBulk(ctx, "ETH-USD", "1d", bars); err != nil {
		t.Errorf("Insert into other series failed: %v", err)
	}
}

func TestBarStore_IntraBatchDuplicate(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{testBar(1000, 10), testBar(1000, 11)}
	err := store.InsertBulk(ctx, "BTC-USD", "1d", bars)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	// Verify nothing was inserted
	result, _ := store.GetBySeries(ctx, "BTC-USD", "1d")
	if len(result) != 0 {
		t.Errorf("Expected 0 bars (rollback), got %d", len(result))
	}
}

func TestBarStore_InvalidInput(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, "", "1d", []*domain.Bar{testBar(1, 1)}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty symbol, got %v", err)
	}
	if err := store.InsertBulk(ctx, "BTC-USD", "1d", []*domain.Bar{nil}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil bar, got %v", err)
	}
}

func TestBarStore_GetByTimeRange(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{testBar(1000, 10), testBar(2000, 11), testBar(3000, 12), testBar(4000, 13)}
	_ = store.InsertBulk(ctx, "BTC-USD", "1d", bars)

	result, err := store.GetByTimeRange(ctx, "BTC-USD", "1d", 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 bars (inclusive range), got %d", len(result))
	}
	if result[0].TimestampMs != 2000 || result[1].TimestampMs != 3000 {
		t.Errorf("Unexpected range result %d..%d", result[0].TimestampMs, result[1].TimestampMs)
	}
}

func TestBarStore_ReturnsCopies(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	b := testBar(1000, 10)
	_ = store.InsertBulk(ctx, "BTC-USD", "1d", []*domain.Bar{b})
	b.Close = 999

	result, _ := store.GetBySeries(ctx, "BTC-USD", "1d")
	if result[0].Close != 10 {
		t.Errorf("Expected stored close 10, got %v", result[0].Close)
	}
	result[0].Close = 5

	again, _ := store.GetBySeries(ctx, "BTC-USD", "1d")
	if again[0].Close != 10 {
		t.Error("Mutating returned bar changed the store")
	}
}

func TestBarStore_ListSeries(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, "ETH-USD", "1d", []*domain.Bar{testBar(1000, 10)})
	_ = store.InsertBulk(ctx, "BTC-USD", "1h", []*domain.Bar{testBar(1000, 10)})
	_ = store.InsertBulk(ctx, "BTC-USD", "1d", []*domain.Bar{testBar(1000, 10)})

	keys, err := store.ListSeries(ctx)
	if err != nil {
		t.Fatalf("ListSeries failed: %v", err)
	}

	expected := []storage.SeriesKey{
		{Symbol: "BTC-USD", Interval: "1d"},
		{Symbol: "BTC-USD", Interval: "1h"},
		{Symbol: "ETH-USD", Interval: "1d"},
	}
	if len(keys) != len(expected) {
		t.Fatalf("Expected %d series, got %d", len(expected), len(keys))
	}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Errorf("index %d: expected %+v, got %+v", i, expected[i], keys[i])
		}
	}
}
