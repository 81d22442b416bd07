package domain

// Position is an open exposure. At most one is alive per simulation.
type Position struct {
	EntryTimeMs int64     // bar timestamp at entry (ms)
	EntryIndex  int       // bar index at entry
	EntryPrice  float64   // close of the entry bar
	Size        float64   // units of the underlying asset, > 0
	Direction   Direction // long or short
}

// Trade is a closed position with realized profit and loss.
// Immutable once appended to the ledger.
type Trade struct {
	TradeID     string // deterministic UUID
	EntryTimeMs int64  // entry bar timestamp (ms)
	ExitTimeMs  int64  // exit bar timestamp (ms), > EntryTimeMs
	EntryIndex  int    // entry bar index
	ExitIndex   int    // exit bar index

	EntryPrice float64
	ExitPrice  float64
	Size       float64
	Direction  Direction

	PnL        float64 // realized profit in quote currency
	Return     float64 // pnl / (entry_price * size)
	ExitReason string  // one of ExitReason*
}

// IsWin reports whether the trade realized a positive pnl.
func (t *Trade) IsWin() bool { return t.PnL > 0 }

// IsLoss reports whether the trade realized a negative pnl.
func (t *Trade) IsLoss() bool { return t.PnL < 0 }

// Exit reason codes
const (
	ExitReasonStopLoss       = "stop_loss"
	ExitReasonTakeProfit     = "take_profit"
	ExitReasonSignalReversal = "signal_reversal"
	ExitReasonEndOfData      = "end_of_data"
)

// ExitReasons lists every exit reason in evaluation order.
var ExitReasons = []string{
	ExitReasonStopLoss,
	ExitReasonTakeProfit,
	ExitReasonSignalReversal,
	ExitReasonEndOfData,
}

// EquityPoint is a capital snapshot taken after a bar is processed.
type EquityPoint struct {
	TimestampMs int64
	Capital     float64
}
