package position

import (
	"fmt"

	"github.com/shopspring/decimal"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/idhash"
)

// Price operations reported in InvalidPriceError.
const (
	opOpen  = "open"
	opClose = "close"
)

// Machine owns the running capital and at most one open position.
// It is not safe for concurrent use; each simulation run owns its own Machine.
type Machine struct {
	cfg     domain.BacktestConfig
	runID   string
	capital decimal.Decimal
	pos     *domain.Position
}

// NewMachine creates a flat machine holding cfg.InitialCapital.
// Returns a *domain.ConfigurationError if cfg is out of range.
func NewMachine(cfg domain.BacktestConfig, runID string) (*Machine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Machine{
		cfg:     cfg,
		runID:   runID,
		capital: decimal.NewFromFloat(cfg.InitialCapital),
	}, nil
}

// State returns the current state.
func (m *Machine) State() State {
	if m.pos != nil {
		return StateInPosition
	}
	return StateFlat
}

// Position returns a copy of the open position, or nil when flat.
func (m *Machine) Position() *domain.Position {
	if m.pos == nil {
		return nil
	}
	p := *m.pos
	return &p
}

// Capital returns the exact running capital.
func (m *Machine) Capital() decimal.Decimal {
	return m.capital
}

// CapitalFloat returns the running capital as float64.
func (m *Machine) CapitalFloat() float64 {
	return m.capital.InexactFloat64()
}

// Step applies at most one transition for bar index i.
//
// In position, exits are evaluated in fixed priority order:
//  1. price_change < -stop_loss      -> stop_loss
//  2. price_change > take_profit     -> take_profit
//  3. signal == -direction           -> signal_reversal
//  4. otherwise hold
//
// When flat, a non-neutral signal opens a position in its direction.
// A bar that closes a position never also opens one.
// Returns the closed trade, or nil when no position was closed.
func (m *Machine) Step(i int, bar *domain.Bar, signal domain.Vote) (*domain.Trade, error) {
	if bar == nil {
		return nil, &domain.DataShapeError{Index: i, Reason: "nil bar"}
	}
	if !signal.IsValid() {
		return nil, &domain.DataShapeError{Index: i, Field: "signal", Reason: fmt.Sprintf("composite signal %d outside {-1, 0, 1}", int(signal))}
	}

	if m.pos != nil {
		reason, exit, err := m.exitReason(i, bar, signal)
		if err != nil || !exit {
			return nil, err
		}
		return m.close(i, bar, reason)
	}

	direction, ok := domain.DirectionFromVote(signal)
	if !ok {
		return nil, nil
	}
	return nil, m.open(i, bar, direction)
}

// ForceClose closes the open position at bar's close with the given reason.
// Returns nil, nil when flat.
func (m *Machine) ForceClose(i int, bar *domain.Bar, reason string) (*domain.Trade, error) {
	if m.pos == nil {
		return nil, nil
	}
	if bar == nil {
		return nil, &domain.DataShapeError{Index: i, Reason: "nil bar"}
	}
	if err := m.checkExitBar(i, bar); err != nil {
		return nil, err
	}
	return m.close(i, bar, reason)
}

// PriceChange returns the relative close-to-entry change used by the exit checks.
// In literal mode this is the raw change regardless of direction; in
// direction-adjusted mode it is the change seen by the position.
func (m *Machine) PriceChange(price float64) float64 {
	if m.pos == nil {
		return 0
	}
	change := (price - m.pos.EntryPrice) / m.pos.EntryPrice
	if m.cfg.ThresholdMode == domain.ThresholdModeDirectionAdjusted {
		change *= float64(m.pos.Direction)
	}
	return change
}

// exitReason decides whether the open position exits on this bar.
func (m *Machine) exitReason(i int, bar *domain.Bar, signal domain.Vote) (string, bool, error) {
	if err := m.checkExitBar(i, bar); err != nil {
		return "", false, err
	}

	change := m.PriceChange(bar.Close)

	switch {
	case change < -m.cfg.StopLoss:
		return domain.ExitReasonStopLoss, true, nil
	case change > m.cfg.TakeProfit:
		return domain.ExitReasonTakeProfit, true, nil
	case m.pos.Direction.Opposes(signal):
		return domain.ExitReasonSignalReversal, true, nil
	default:
		return "", false, nil
	}
}

// checkExitBar rejects a bar that cannot close the open position.
func (m *Machine) checkExitBar(i int, bar *domain.Bar) error {
	if !validPrice(bar.Close) {
		return &domain.InvalidPriceError{Index: i, TimestampMs: bar.TimestampMs, Price: bar.Close, Op: opClose}
	}
	if bar.TimestampMs <= m.pos.EntryTimeMs {
		return &domain.DataShapeError{
			Index:  i,
			Field:  domain.FieldTimestamp,
			Reason: fmt.Sprintf("timestamp %d not after entry %d", bar.TimestampMs, m.pos.EntryTimeMs),
		}
	}
	return nil
}

// open sizes and records a new position at bar's close.
// size = capital * position_size / close
func (m *Machine) open(i int, bar *domain.Bar, direction domain.Direction) error {
	if !validPrice(bar.Close) {
		return &domain.InvalidPriceError{Index: i, TimestampMs: bar.TimestampMs, Price: bar.Close, Op: opOpen}
	}
	if !m.capital.IsPositive() {
		return fmt.Errorf("%w: bar %d: capital %s", domain.ErrCapitalExhausted, i, m.capital.String())
	}

	size := m.capital.InexactFloat64() * m.cfg.PositionSize / bar.Close
	if !domain.IsFinite(size) || size <= 0 {
		return &domain.InvalidPriceError{Index: i, TimestampMs: bar.TimestampMs, Price: bar.Close, Op: opOpen}
	}

	m.pos = &domain.Position{
		EntryTimeMs: bar.TimestampMs,
		EntryIndex:  i,
		EntryPrice:  bar.Close,
		Size:        size,
		Direction:   direction,
	}
	return nil
}

// close realizes pnl, credits capital and returns the trade. The machine is flat afterwards.
func (m *Machine) close(i int, bar *domain.Bar, reason string) (*domain.Trade, error) {
	p := m.pos
	exitPrice := bar.Close

	var pnl float64
	if p.Direction == domain.DirectionLong {
		pnl = (exitPrice - p.EntryPrice) * p.Size
	} else {
		pnl = (p.EntryPrice - exitPrice) * p.Size
	}
	ret := pnl / (p.EntryPrice * p.Size)
	if !domain.IsFinite(pnl) || !domain.IsFinite(ret) {
		return nil, &domain.InvalidPriceError{Index: i, TimestampMs: bar.TimestampMs, Price: exitPrice, Op: opClose}
	}

	m.capital = m.capital.Add(decimal.NewFromFloat(pnl))
	m.pos = nil

	return &domain.Trade{
		TradeID:     idhash.ComputeTradeID(m.runID, p.EntryTimeMs, bar.TimestampMs),
		EntryTimeMs: p.EntryTimeMs,
		ExitTimeMs:  bar.TimestampMs,
		EntryIndex:  p.EntryIndex,
		ExitIndex:   i,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   exitPrice,
		Size:        p.Size,
		Direction:   p.Direction,
		PnL:         pnl,
		Return:      ret,
		ExitReason:  reason,
	}, nil
}

func validPrice(p float64) bool {
	return domain.IsFinite(p) && p > 0
}
