package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/indicator"
	"signal-backtest-lab/internal/storage"
)

// Runner executes backtests over bars loaded from a bar store.
type Runner struct {
	store  storage.BarStore
	logger zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Store  storage.BarStore
	Logger zerolog.Logger
}

// NewRunner creates a backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		store:  opts.Store,
		logger: opts.Logger,
	}
}

// Request selects a series and a time range to backtest.
// A zero StartMs and EndMs selects the whole series.
type Request struct {
	Symbol     string
	Interval   string
	StartMs    int64
	EndMs      int64
	Config     domain.BacktestConfig
	Indicators []indicator.Indicator
}

// Run executes a backtest for the requested series.
// Steps:
//  1. Load the bars (all I/O happens here, before the simulation)
//  2. Simulate
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	// 1. Load bars
	bars, err := r.LoadBars(ctx, req.Symbol, req.Interval, req.StartMs, req.EndMs)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().
		Str("symbol", req.Symbol).
		Str("interval", req.Interval).
		Int("bars", len(bars)).
		Msg("bars loaded")

	// 2. Simulate
	return Simulate(ctx, Input{
		Symbol:     req.Symbol,
		Interval:   req.Interval,
		Bars:       bars,
		Indicators: req.Indicators,
		Config:     req.Config,
	}, Options{Logger: r.logger})
}

// LoadBars reads a series from the store, restricted to [start, end] unless both are zero.
func (r *Runner) LoadBars(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]*domain.Bar, error) {
	var (
		bars []*domain.Bar
		err  error
	)
	if startMs == 0 && endMs == 0 {
		bars, err = r.store.GetBySeries(ctx, symbol, interval)
	} else {
		bars, err = r.store.GetByTimeRange(ctx, symbol, interval, startMs, endMs)
	}
	if err != nil {
		return nil, fmt.Errorf("load bars %s/%s: %w", symbol, interval, err)
	}
	return bars, nil
}
