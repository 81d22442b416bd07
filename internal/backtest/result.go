package backtest

import (
	"github.com/shopspring/decimal"

	"signal-backtest-lab/internal/domain"
)

// Result holds the output of one simulation run.
type Result struct {
	RunID    string
	Symbol   string
	Interval string
	Config   domain.BacktestConfig

	Trades  []*domain.Trade
	Equity  []domain.EquityPoint
	Signals []domain.Vote            // composite signal per bar
	Votes   map[string][]domain.Vote // per-indicator votes; nil when simulated from signals

	Metrics *domain.PerformanceMetrics

	// OpenPosition is the position still open after the final bar, excluded
	// from Trades and Metrics. Nil when flat at the end.
	OpenPosition *domain.Position

	FinalCapital      float64
	FinalCapitalExact decimal.Decimal
}

// BarCount returns the number of processed bars.
func (r *Result) BarCount() int {
	return len(r.Equity)
}
