// Package sweep runs one analyzed series through a grid of risk parameters.
// Votes do not depend on the risk parameters, so the analysis is computed
// once and only the sequential pass is repeated per configuration.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"signal-backtest-lab/internal/backtest"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/idhash"
	"signal-backtest-lab/internal/indicator"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/signal"
)

// KindSweep is the run kind reported to observability.
const KindSweep = "sweep"

// Ranking keys accepted by Best.
const (
	KeySharpe      = "sharpe"
	KeyTotalReturn = "total_return"
	KeyMaxDrawdown = "max_drawdown"
)

// ErrUnknownKey is returned by Best for an unsupported ranking key.
var ErrUnknownKey = errors.New("unknown ranking key")

// Grid lists the values tried on each axis. An empty axis keeps the base value.
type Grid struct {
	StopLosses    []float64
	TakeProfits   []float64
	PositionSizes []float64
}

// Size returns the number of configurations Expand produces.
func (g Grid) Size() int {
	return max(len(g.StopLosses), 1) * max(len(g.TakeProfits), 1) * max(len(g.PositionSizes), 1)
}

// Expand returns every combination in deterministic order:
// stop-loss outermost, then take-profit, then position size.
func (g Grid) Expand(base domain.BacktestConfig) []domain.BacktestConfig {
	sls := axis(g.StopLosses, base.StopLoss)
	tps := axis(g.TakeProfits, base.TakeProfit)
	sizes := axis(g.PositionSizes, base.PositionSize)

	configs := make([]domain.BacktestConfig, 0, g.Size())
	for _, sl := range sls {
		for _, tp := range tps {
			for _, size := range sizes {
				cfg := base
				cfg.StopLoss = sl
				cfg.TakeProfit = tp
				cfg.PositionSize = size
				configs = append(configs, cfg)
			}
		}
	}
	return configs
}

func axis(values []float64, fallback float64) []float64 {
	if len(values) == 0 {
		return []float64{fallback}
	}
	return values
}

// Outcome is the result of one grid configuration.
type Outcome struct {
	Index  int // position in Expand order
	Config domain.BacktestConfig
	Result *backtest.Result
}

// Options carries sweep-scoped collaborators.
type Options struct {
	Symbol     string
	Interval   string
	Indicators []indicator.Indicator // used only for run IDs
	Logger     zerolog.Logger
}

// Run simulates every configuration of grid over one analysis.
// At most parallelism simulations run at once; 0 uses GOMAXPROCS.
// Every configuration is validated before any simulation starts.
// Outcomes are returned in Expand order regardless of completion order.
func Run(
	ctx context.Context,
	analysis *signal.Analysis,
	base domain.BacktestConfig,
	grid Grid,
	parallelism int,
	opts Options,
) (outcomes []Outcome, err error) {
	start := time.Now()
	defer func() { observability.RecordRun(KindSweep, err, time.Since(start)) }()

	if analysis == nil {
		return nil, &domain.DataShapeError{Index: -1, Reason: "nil analysis"}
	}

	configs := grid.Expand(base)
	for i := range configs {
		configs[i] = configs[i].WithDefaults()
		if err := configs[i].Validate(); err != nil {
			return nil, fmt.Errorf("grid config %d: %w", i, err)
		}
	}

	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	outcomes = make([]Outcome, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, cfg := range configs {
		g.Go(func() error {
			observability.SweepStarted()
			defer observability.SweepFinished()

			runID := backtest.RunID(opts.Symbol, opts.Interval, cfg, opts.Indicators, analysis.Bars)
			res, err := backtest.SimulateSignals(gctx, runID, analysis.Bars, analysis.Composite, cfg, backtest.Options{
				Logger: opts.Logger.With().Str("run_id", idhash.ShortID(runID)).Logger(),
			})
			if err != nil {
				return fmt.Errorf("grid config %d: %w", i, err)
			}
			res.Symbol = opts.Symbol
			res.Interval = opts.Interval

			outcomes[i] = Outcome{Index: i, Config: cfg, Result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	opts.Logger.Info().
		Str("symbol", opts.Symbol).
		Int("configs", len(configs)).
		Int("parallelism", parallelism).
		Dur("elapsed", time.Since(start)).
		Msg("sweep complete")

	return outcomes, nil
}

// Best returns outcomes ranked best-first by key.
// Sharpe and total return rank descending; max drawdown ranks by the
// shallowest drawdown (closest to zero). Ties keep grid order.
func Best(outcomes []Outcome, key string) ([]Outcome, error) {
	var score func(*domain.PerformanceMetrics) float64
	switch key {
	case KeySharpe:
		score = func(m *domain.PerformanceMetrics) float64 { return m.SharpeRatio }
	case KeyTotalReturn:
		score = func(m *domain.PerformanceMetrics) float64 { return m.TotalReturn }
	case KeyMaxDrawdown:
		score = func(m *domain.PerformanceMetrics) float64 { return m.MaxDrawdown }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	ranked := make([]Outcome, len(outcomes))
	copy(ranked, outcomes)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i].Result.Metrics) > score(ranked[j].Result.Metrics)
	})
	return ranked, nil
}
