package reporting

import (
	"fmt"
	"strings"
	"time"

	"signal-backtest-lab/internal/verification"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest Report: %s %s\n\n", r.Symbol, r.Interval))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` (%s)\n\n", r.ShortID, r.RunID))

	// Configuration
	c := r.Config
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", c.InitialCapital))
	sb.WriteString(fmt.Sprintf("| Position Size | %.4f |\n", c.PositionSize))
	sb.WriteString(fmt.Sprintf("| Stop Loss | %.4f |\n", c.StopLoss))
	sb.WriteString(fmt.Sprintf("| Take Profit | %.4f |\n", c.TakeProfit))
	sb.WriteString(fmt.Sprintf("| Threshold Mode | %s |\n", c.ThresholdMode))
	sb.WriteString(fmt.Sprintf("| End Of Data | %s |\n", c.EndOfData))
	sb.WriteString(fmt.Sprintf("| Annualization | %g |\n", c.AnnualizationFactor))
	sb.WriteString("\n")

	// Data Summary
	d := r.DataSummary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Bars | %d |\n", d.Bars))
	sb.WriteString(fmt.Sprintf("| Date Range Start | %s |\n", formatMs(d.DateRangeStart)))
	sb.WriteString(fmt.Sprintf("| Date Range End | %s |\n", formatMs(d.DateRangeEnd)))
	sb.WriteString(fmt.Sprintf("| Indicators | %s |\n", strings.Join(d.Indicators, ", ")))
	sb.WriteString(fmt.Sprintf("| Long Signals | %d |\n", d.LongSignals))
	sb.WriteString(fmt.Sprintf("| Short Signals | %d |\n", d.ShortSignals))
	sb.WriteString("\n")

	// Performance
	sb.WriteString("## Performance\n\n")
	m := r.Metrics
	if m == nil || m.Empty {
		sb.WriteString("No closed trades; trade metrics are not available.\n\n")
	} else {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", m.TotalTrades))
		sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", m.WinRate*100))
		sb.WriteString(fmt.Sprintf("| Total PnL | %.2f |\n", m.TotalPnL))
		sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", m.TotalReturn*100))
		sb.WriteString(fmt.Sprintf("| Avg Win | %.2f |\n", m.AvgWin))
		sb.WriteString(fmt.Sprintf("| Avg Loss | %.2f |\n", m.AvgLoss))
		sb.WriteString(fmt.Sprintf("| Profit Factor | %.4f |\n", m.ProfitFactor))
		sb.WriteString(fmt.Sprintf("| Avg Return | %.4f |\n", m.AvgReturn))
		sb.WriteString(fmt.Sprintf("| Median Return | %.4f |\n", m.MedianReturn))
		sb.WriteString(fmt.Sprintf("| Return Std | %.4f |\n", m.ReturnStd))
		sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f |\n", m.SharpeRatio))
		sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", m.MaxDrawdown*100))
		sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", m.MaxConsecutiveLosses))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Final capital: %.2f (initial %.2f)\n\n", r.FinalCapital, r.InitialCapital))

	// Exit reasons
	sb.WriteString("## Exit Reasons\n\n")
	sb.WriteString("| Reason | Count | Share |\n")
	sb.WriteString("|--------|-------|-------|\n")
	for _, e := range r.ExitReasons {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.2f%% |\n", e.Reason, e.Count, e.Share*100))
	}
	sb.WriteString("\n")

	// Open position
	if p := r.OpenPosition; p != nil {
		sb.WriteString("## Open Position\n\n")
		sb.WriteString(fmt.Sprintf("%s %.6f @ %.4f since %s (excluded from metrics)\n\n",
			p.Direction, p.Size, p.EntryPrice, formatMs(p.EntryTimeMs)))
	}

	// Trade log
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| # | Direction | Entry | Exit | Entry Price | Exit Price | PnL | Return | Reason |\n")
		sb.WriteString("|---|-----------|-------|------|-------------|------------|-----|--------|--------|\n")
		for i, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %.4f | %.4f | %.2f | %.2f%% | %s |\n",
				i+1, t.Direction, formatMs(t.EntryTimeMs), formatMs(t.ExitTimeMs),
				t.EntryPrice, t.ExitPrice, t.PnL, t.Return*100, t.ExitReason))
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderSweepMarkdown renders a ranked sweep table.
func RenderSweepMarkdown(r *SweepReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Parameter Sweep: %s %s\n\n", r.Symbol, r.Interval))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Configurations: %d | Ranked by: %s\n\n", len(r.Rows), r.RankedBy))

	if len(r.Rows) == 0 {
		sb.WriteString("No configurations evaluated.\n")
		return sb.String()
	}

	sb.WriteString("| Rank | StopLoss | TakeProfit | Size | Trades | WinRate | Return | Sharpe | MaxDD | Final | Run |\n")
	sb.WriteString("|------|----------|------------|------|--------|---------|--------|--------|-------|-------|-----|\n")
	for _, row := range r.Rows {
		sb.WriteString(fmt.Sprintf("| %d | %.4f | %.4f | %.4f | %d | %.4f | %.4f | %.4f | %.4f | %.2f | %s |\n",
			row.Rank, row.StopLoss, row.TakeProfit, row.PositionSize,
			row.TotalTrades, row.WinRate, row.TotalReturn, row.SharpeRatio, row.MaxDrawdown,
			row.FinalCapital, row.ShortID))
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderVerificationMarkdown renders a determinism check.
func RenderVerificationMarkdown(r *verification.VerificationReport) string {
	var sb strings.Builder

	sb.WriteString("# Determinism Verification\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Runs: %d | Matched: %d | Divergent: %d\n\n", r.TotalRuns, r.MatchedRuns, r.DivergentRuns))

	if r.Passed() {
		sb.WriteString("**PASS**: every run was identical to the reference run.\n")
		return sb.String()
	}

	sb.WriteString("**FAIL**\n\n")
	sb.WriteString("| Run | Field | Expected | Actual |\n")
	sb.WriteString("|-----|-------|----------|--------|\n")
	for _, res := range r.Results {
		for _, d := range res.Divergences {
			sb.WriteString(fmt.Sprintf("| %d | %s | %v | %v |\n", res.Run, d.Field, d.Expected, d.Actual))
		}
	}
	sb.WriteString("\n")

	return sb.String()
}

// formatMs renders Unix milliseconds as RFC 3339 UTC.
func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
