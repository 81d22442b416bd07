// Package orchestrator runs backtests over every stored series.
// It coordinates: series discovery → simulation → summary
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/backtest"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/indicator"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/storage"
)

// KindBatch labels batch runs in metrics.
const KindBatch = "batch"

// Orchestrator coordinates one configuration over many series.
type Orchestrator struct {
	store  storage.BarStore
	runner *backtest.Runner

	config     domain.BacktestConfig
	indicators []indicator.Indicator

	symbols  map[string]struct{} // empty means all
	interval string              // empty means all

	logger zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	Store      storage.BarStore
	Config     domain.BacktestConfig
	Indicators []indicator.Indicator

	// Filters
	Symbols  []string // restrict to these symbols; empty selects all
	Interval string   // restrict to one interval; empty selects all

	Logger zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	symbols := make(map[string]struct{}, len(opts.Symbols))
	for _, s := range opts.Symbols {
		symbols[s] = struct{}{}
	}
	return &Orchestrator{
		store:      opts.Store,
		runner:     backtest.NewRunner(backtest.RunnerOptions{Store: opts.Store, Logger: opts.Logger}),
		config:     opts.Config,
		indicators: opts.Indicators,
		symbols:    symbols,
		interval:   opts.Interval,
		logger:     opts.Logger,
	}
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	SeriesProcessed int
	TradesCreated   int
	OpenPositions   int
	Results         []*backtest.Result // successful runs in series order
	Errors          []string
}

// Run backtests every selected series in ListSeries order.
// Phases:
//  1. Validate config (fails the whole batch)
//  2. List series
//  3. Simulate each series; per-series failures are collected, not returned
func (o *Orchestrator) Run(ctx context.Context) (res *RunResult, err error) {
	start := time.Now()
	defer func() { observability.RecordRun(KindBatch, err, time.Since(start)) }()

	// Phase 1: Validate once so a bad config is not reported per series
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	// Phase 2: List series
	series, err := o.selectSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	o.logger.Info().Int("series", len(series)).Msg("batch started")

	// Phase 3: Simulation
	res = &RunResult{}
	for _, key := range series {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := o.runner.Run(ctx, backtest.Request{
			Symbol:     key.Symbol,
			Interval:   key.Interval,
			Config:     o.config,
			Indicators: o.indicators,
		})
		if err != nil {
			o.logger.Warn().Err(err).
				Str("symbol", key.Symbol).
				Str("interval", key.Interval).
				Msg("series failed")
			res.Errors = append(res.Errors, fmt.Sprintf("backtest %s/%s: %v", key.Symbol, key.Interval, err))
			continue
		}

		res.SeriesProcessed++
		res.TradesCreated += len(r.Trades)
		if r.OpenPosition != nil {
			res.OpenPositions++
		}
		res.Results = append(res.Results, r)
	}

	o.logger.Info().
		Int("series", res.SeriesProcessed).
		Int("trades", res.TradesCreated).
		Int("errors", len(res.Errors)).
		Msg("batch completed")

	return res, nil
}

// selectSeries lists stored series and applies the symbol and interval filters.
func (o *Orchestrator) selectSeries(ctx context.Context) ([]storage.SeriesKey, error) {
	all, err := o.store.ListSeries(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]storage.SeriesKey, 0, len(all))
	for _, key := range all {
		if o.interval != "" && key.Interval != o.interval {
			continue
		}
		if len(o.symbols) > 0 {
			if _, ok := o.symbols[key.Symbol]; !ok {
				continue
			}
		}
		out = append(out, key)
	}
	return out, nil
}
