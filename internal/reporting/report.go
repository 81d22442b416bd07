package reporting

import (
	"time"

	"signal-backtest-lab/internal/domain"
)

// Report represents the printed summary of one backtest run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	ShortID     string
	Symbol      string
	Interval    string
	Config      domain.BacktestConfig

	// Data Summary
	DataSummary DataSummary

	// Performance
	Metrics     *domain.PerformanceMetrics
	ExitReasons []ExitReasonRow // in domain.ExitReasons order, zero counts included

	// Trade log (entry order)
	Trades []*domain.Trade

	// OpenPosition is set when a position was left open at the end of data.
	OpenPosition *domain.Position

	InitialCapital float64
	FinalCapital   float64
}

// DataSummary describes the simulated input.
type DataSummary struct {
	Bars           int
	DateRangeStart int64 // Unix ms
	DateRangeEnd   int64 // Unix ms
	Indicators     []string
	LongSignals    int // bars with composite +1
	ShortSignals   int // bars with composite -1
}

// ExitReasonRow is one row of the exit-reason breakdown.
type ExitReasonRow struct {
	Reason string
	Count  int
	Share  float64 // count / total trades, 0 without trades
}

// SweepReport ranks the outcomes of a parameter sweep.
type SweepReport struct {
	GeneratedAt time.Time
	Symbol      string
	Interval    string
	RankedBy    string
	Rows        []SweepRow // best first
}

// SweepRow represents one configuration in the sweep table.
type SweepRow struct {
	Rank         int
	StopLoss     float64
	TakeProfit   float64
	PositionSize float64
	TotalTrades  int
	WinRate      float64
	TotalReturn  float64
	SharpeRatio  float64
	MaxDrawdown  float64
	FinalCapital float64
	ShortID      string
}
