package reporting

import (
	"time"

	"signal-backtest-lab/internal/backtest"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/idhash"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/sweep"
)

// Generator produces reports from simulation results.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for one run. indicators names the active vote columns.
func (g *Generator) Generate(res *backtest.Result, indicators []string) *Report {
	return &Report{
		GeneratedAt:    g.now(),
		RunID:          res.RunID,
		ShortID:        idhash.ShortID(res.RunID),
		Symbol:         res.Symbol,
		Interval:       res.Interval,
		Config:         res.Config,
		DataSummary:    g.generateDataSummary(res, indicators),
		Metrics:        res.Metrics,
		ExitReasons:    g.generateExitReasons(res.Trades),
		Trades:         res.Trades,
		OpenPosition:   res.OpenPosition,
		InitialCapital: res.Config.InitialCapital,
		FinalCapital:   res.FinalCapital,
	}
}

// GenerateSweep builds the sweep table from outcomes already ranked best first.
func (g *Generator) GenerateSweep(symbol, interval, rankedBy string, ranked []sweep.Outcome) *SweepReport {
	rows := make([]SweepRow, len(ranked))
	for i, o := range ranked {
		m := o.Result.Metrics
		rows[i] = SweepRow{
			Rank:         i + 1,
			StopLoss:     o.Config.StopLoss,
			TakeProfit:   o.Config.TakeProfit,
			PositionSize: o.Config.PositionSize,
			TotalTrades:  m.TotalTrades,
			WinRate:      m.WinRate,
			TotalReturn:  m.TotalReturn,
			SharpeRatio:  m.SharpeRatio,
			MaxDrawdown:  m.MaxDrawdown,
			FinalCapital: o.Result.FinalCapital,
			ShortID:      idhash.ShortID(o.Result.RunID),
		}
	}

	return &SweepReport{
		GeneratedAt: g.now(),
		Symbol:      symbol,
		Interval:    interval,
		RankedBy:    rankedBy,
		Rows:        rows,
	}
}

// generateDataSummary describes the bars and signals behind a run.
func (g *Generator) generateDataSummary(res *backtest.Result, indicators []string) DataSummary {
	summary := DataSummary{
		Bars:       res.BarCount(),
		Indicators: indicators,
	}

	if n := len(res.Equity); n > 0 {
		summary.DateRangeStart = res.Equity[0].TimestampMs
		summary.DateRangeEnd = res.Equity[n-1].TimestampMs
	}

	for _, s := range res.Signals {
		switch s {
		case domain.VoteBuy:
			summary.LongSignals++
		case domain.VoteSell:
			summary.ShortSignals++
		}
	}

	return summary
}

// generateExitReasons counts trades per exit reason in fixed order.
func (g *Generator) generateExitReasons(trades []*domain.Trade) []ExitReasonRow {
	counts := metrics.ExitReasonCounts(trades)

	rows := make([]ExitReasonRow, len(domain.ExitReasons))
	for i, reason := range domain.ExitReasons {
		rows[i] = ExitReasonRow{Reason: reason, Count: counts[reason]}
		if len(trades) > 0 {
			rows[i].Share = float64(counts[reason]) / float64(len(trades))
		}
	}
	return rows
}
