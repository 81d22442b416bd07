package ledger

import (
	"errors"
	"fmt"

	"signal-backtest-lab/internal/domain"
)

// Ledger errors
var (
	ErrTradeOrder  = errors.New("trade out of order")
	ErrEquityOrder = errors.New("equity point out of order")
	ErrNilTrade    = errors.New("nil trade")
	ErrBadCapital  = errors.New("non-finite capital")
)

// Ledger is the append-only record of closed trades and the equity curve of one run.
// Entries are copied in and out; nothing handed out aliases internal state.
type Ledger struct {
	trades []domain.Trade
	equity []domain.EquityPoint
}

// New creates an empty ledger. sizeHint preallocates the equity curve.
func New(sizeHint int) *Ledger {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Ledger{
		equity: make([]domain.EquityPoint, 0, sizeHint),
	}
}

// AppendTrade records a closed trade.
// Rejects a trade whose exit does not follow its entry, and a trade that
// enters before the previous trade exited.
func (l *Ledger) AppendTrade(t *domain.Trade) error {
	if t == nil {
		return ErrNilTrade
	}
	if t.EntryTimeMs >= t.ExitTimeMs {
		return fmt.Errorf("%w: entry %d not before exit %d", ErrTradeOrder, t.EntryTimeMs, t.ExitTimeMs)
	}
	if n := len(l.trades); n > 0 && t.EntryTimeMs < l.trades[n-1].ExitTimeMs {
		return fmt.Errorf("%w: entry %d before previous exit %d", ErrTradeOrder, t.EntryTimeMs, l.trades[n-1].ExitTimeMs)
	}

	l.trades = append(l.trades, *t)
	return nil
}

// RecordEquity appends a capital snapshot. Timestamps must strictly increase.
func (l *Ledger) RecordEquity(timestampMs int64, capital float64) error {
	if !domain.IsFinite(capital) {
		return fmt.Errorf("%w: %v at %d", ErrBadCapital, capital, timestampMs)
	}
	if n := len(l.equity); n > 0 && timestampMs <= l.equity[n-1].TimestampMs {
		return fmt.Errorf("%w: %d not after %d", ErrEquityOrder, timestampMs, l.equity[n-1].TimestampMs)
	}

	l.equity = append(l.equity, domain.EquityPoint{TimestampMs: timestampMs, Capital: capital})
	return nil
}

// Trades returns a copy of the trades in append order.
func (l *Ledger) Trades() []*domain.Trade {
	out := make([]*domain.Trade, len(l.trades))
	for i := range l.trades {
		t := l.trades[i]
		out[i] = &t
	}
	return out
}

// Equity returns a copy of the equity curve.
func (l *Ledger) Equity() []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(l.equity))
	copy(out, l.equity)
	return out
}

// Len returns the number of recorded trades.
func (l *Ledger) Len() int {
	return len(l.trades)
}
