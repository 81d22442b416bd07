package backtest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage/memory"
)

func TestRunner_RunFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBarStore()
	bars := barsFromCloses(100, 101, 106, 106, 103)
	require.NoError(t, store.InsertBulk(ctx, "BTC-USD", "1m", bars))

	runner := NewRunner(RunnerOptions{Store: store, Logger: zerolog.Nop()})
	res, err := runner.Run(ctx, Request{
		Symbol:     "BTC-USD",
		Interval:   "1m",
		Config:     domain.DefaultBacktestConfig(),
		Indicators: static("fixture", votesAt(5, map[int]domain.Vote{0: domain.VoteBuy})),
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.ExitReasonTakeProfit, res.Trades[0].ExitReason)
	assert.Equal(t, 2, res.Trades[0].ExitIndex)
}

func TestRunner_TimeRange(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBarStore()
	require.NoError(t, store.InsertBulk(ctx, "BTC-USD", "1m", flatBars(10, 100)))

	runner := NewRunner(RunnerOptions{Store: store})
	bars, err := runner.LoadBars(ctx, "BTC-USD", "1m", 3*60_000, 5*60_000)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestRunner_MissingSeries(t *testing.T) {
	runner := NewRunner(RunnerOptions{Store: memory.NewBarStore()})
	_, err := runner.Run(context.Background(), Request{Symbol: "NONE", Interval: "1d", Config: domain.DefaultBacktestConfig()})
	assert.ErrorIs(t, err, domain.ErrDataShape)
}
