package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/idhash"
	"signal-backtest-lab/internal/indicator"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/signal"
)

// Run kinds reported to observability.
const (
	KindBacktest = "backtest"
)

// Input holds everything one simulation run depends on.
type Input struct {
	Symbol     string
	Interval   string
	Bars       []*domain.Bar
	Indicators []indicator.Indicator
	Config     domain.BacktestConfig
}

// Options carries run-scoped collaborators.
type Options struct {
	Logger zerolog.Logger
}

// Simulate runs one backtest over in.Bars.
// Steps:
//  1. Validate configuration before any bar is touched
//  2. Validate bars, compute indicator votes in parallel, aggregate
//  3. Derive the deterministic run ID
//  4. Step every bar through the position machine in order
//  5. Reduce the ledger to metrics
//
// The context is only consulted while votes are computed; once the
// sequential pass starts the run completes or fails as a whole.
func Simulate(ctx context.Context, in Input, opts Options) (res *Result, err error) {
	start := time.Now()
	defer func() { observability.RecordRun(KindBacktest, err, time.Since(start)) }()

	// 1. Configuration
	cfg := in.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 2. Votes
	voteStart := time.Now()
	analysis, err := signal.Analyze(ctx, in.Bars, in.Indicators)
	if err != nil {
		return nil, err
	}
	observability.RecordVoteComputation(strings.Join(indicator.Names(in.Indicators), ","), time.Since(voteStart))

	// 3. Identity
	runID := RunID(in.Symbol, in.Interval, cfg, in.Indicators, in.Bars)
	logger := opts.Logger.With().Str("run_id", idhash.ShortID(runID)).Str("symbol", in.Symbol).Logger()

	// 4-5. Sequential pass and metrics
	res, err = simulate(runID, analysis.Bars, analysis.Composite, cfg, logger)
	if err != nil {
		return nil, err
	}
	res.Symbol = in.Symbol
	res.Interval = in.Interval
	res.Votes = analysis.Votes

	logger.Info().
		Int("bars", len(in.Bars)).
		Int("trades", res.Metrics.TotalTrades).
		Float64("total_pnl", res.Metrics.TotalPnL).
		Float64("final_capital", res.FinalCapital).
		Bool("open_position", res.OpenPosition != nil).
		Msg("backtest complete")

	return res, nil
}

// SimulateSignals runs the sequential pass over a precomputed composite series.
// Used when one analysis is shared by many configurations.
func SimulateSignals(
	ctx context.Context,
	runID string,
	bars []*domain.Bar,
	composite []domain.Vote,
	cfg domain.BacktestConfig,
	opts Options,
) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}
	if err := indicator.CheckColumn("composite", composite, len(bars)); err != nil {
		return nil, err
	}

	return simulate(runID, bars, composite, cfg, opts.Logger)
}

// simulate is the single-threaded simulation loop over validated input.
func simulate(
	runID string,
	bars []*domain.Bar,
	composite []domain.Vote,
	cfg domain.BacktestConfig,
	logger zerolog.Logger,
) (*Result, error) {
	engine, err := NewEngine(cfg, runID, len(bars), logger)
	if err != nil {
		return nil, err
	}

	last := len(bars) - 1
	for i, bar := range bars {
		if err := engine.OnBar(i, bar, composite[i], i == last); err != nil {
			return nil, fmt.Errorf("bar %d (ts=%d): %w", i, bar.TimestampMs, err)
		}
	}
	observability.RecordBarsProcessed(len(bars))

	trades := engine.Trades()
	equity := engine.Equity()
	machine := engine.Machine()

	signals := make([]domain.Vote, len(composite))
	copy(signals, composite)

	return &Result{
		RunID:             runID,
		Config:            engine.Config(),
		Trades:            trades,
		Equity:            equity,
		Signals:           signals,
		Metrics:           metrics.Compute(trades, equity, cfg.InitialCapital, cfg.AnnualizationFactor),
		OpenPosition:      machine.Position(),
		FinalCapital:      machine.CapitalFloat(),
		FinalCapitalExact: machine.Capital(),
	}, nil
}

// RunID derives the deterministic run identifier for a series, configuration
// and indicator set.
func RunID(symbol, interval string, cfg domain.BacktestConfig, indicators []indicator.Indicator, bars []*domain.Bar) string {
	var first, last int64
	if len(bars) > 0 && bars[0] != nil && bars[len(bars)-1] != nil {
		first = bars[0].TimestampMs
		last = bars[len(bars)-1].TimestampMs
	}
	return idhash.ComputeRunID(symbol, interval, cfg.WithDefaults(), indicator.IDs(indicators), first, last, len(bars))
}
