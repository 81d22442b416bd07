package domain

// PerformanceMetrics summarizes one simulation run.
// When Empty is true the ledger had no trades and every trade statistic is zero.
type PerformanceMetrics struct {
	Empty bool // no closed trades

	// Counts
	TotalTrades   int
	WinningTrades int // pnl > 0
	LosingTrades  int // pnl < 0; pnl == 0 is counted in neither
	WinRate       float64

	// P&L
	TotalPnL     float64
	TotalReturn  float64 // total_pnl / initial_capital
	AvgWin       float64 // mean pnl of winning trades
	AvgLoss      float64 // mean pnl of losing trades (negative)
	ProfitFactor float64 // gross profit / gross loss; 0 without losses

	// Return distribution (population statistics over per-trade return)
	AvgReturn    float64
	ReturnStd    float64
	MedianReturn float64
	BestReturn   float64
	WorstReturn  float64
	SharpeRatio  float64 // avg/std * sqrt(annualization); 0 when std == 0

	// Drawdown
	MaxDrawdown          float64 // most negative (equity - running max) / running max; <= 0
	MaxConsecutiveLosses int
}
