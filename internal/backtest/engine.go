package backtest

import (
	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/ledger"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/position"
)

// Engine drives one simulation run bar by bar.
// It owns the run's position machine and ledger; nothing else mutates them.
type Engine struct {
	cfg     domain.BacktestConfig
	runID   string
	machine *position.Machine
	ledger  *ledger.Ledger
	logger  zerolog.Logger
}

// NewEngine creates an engine for one run. sizeHint preallocates the equity curve.
func NewEngine(cfg domain.BacktestConfig, runID string, sizeHint int, logger zerolog.Logger) (*Engine, error) {
	cfg = cfg.WithDefaults()
	machine, err := position.NewMachine(cfg, runID)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:     cfg,
		runID:   runID,
		machine: machine,
		ledger:  ledger.New(sizeHint),
		logger:  logger,
	}, nil
}

// OnBar processes bar i with its composite signal.
// Steps:
//  1. Apply at most one position transition
//  2. On the final bar, apply the end-of-data policy if the step held
//  3. Record the equity point after the transition
func (e *Engine) OnBar(i int, bar *domain.Bar, signal domain.Vote, final bool) error {
	// 1. Transition
	trade, err := e.machine.Step(i, bar, signal)
	if err != nil {
		return err
	}

	// 2. End-of-data policy. A position opened on this bar cannot close on it.
	if trade == nil && final && e.cfg.EndOfData == domain.EndOfDataForceClose {
		if p := e.machine.Position(); p != nil && p.EntryTimeMs < bar.TimestampMs {
			trade, err = e.machine.ForceClose(i, bar, domain.ExitReasonEndOfData)
			if err != nil {
				return err
			}
		}
	}

	if trade != nil {
		if err := e.ledger.AppendTrade(trade); err != nil {
			return err
		}
		observability.RecordTradeClosed(trade.ExitReason)
		e.logger.Debug().
			Str("trade_id", trade.TradeID).
			Str("direction", trade.Direction.String()).
			Str("reason", trade.ExitReason).
			Float64("entry_price", trade.EntryPrice).
			Float64("exit_price", trade.ExitPrice).
			Float64("pnl", trade.PnL).
			Msg("trade closed")
	} else if p := e.machine.Position(); p != nil && p.EntryIndex == i {
		e.logger.Debug().
			Int("bar", i).
			Str("direction", p.Direction.String()).
			Float64("entry_price", p.EntryPrice).
			Float64("size", p.Size).
			Msg("position opened")
	}

	// 3. Equity after transition
	return e.ledger.RecordEquity(bar.TimestampMs, e.machine.CapitalFloat())
}

// Trades returns the closed trades so far.
func (e *Engine) Trades() []*domain.Trade {
	return e.ledger.Trades()
}

// Equity returns the equity curve so far.
func (e *Engine) Equity() []domain.EquityPoint {
	return e.ledger.Equity()
}

// Machine exposes the position machine for inspection.
func (e *Engine) Machine() *position.Machine {
	return e.machine
}

// Config returns the effective configuration.
func (e *Engine) Config() domain.BacktestConfig {
	return e.cfg
}
