package reporting

import (
	"fmt"
	"strings"

	"signal-backtest-lab/internal/domain"
)

// RenderTradesCSV renders the trade log as CSV string.
func RenderTradesCSV(trades []*domain.Trade) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,direction,entry_time_ms,exit_time_ms,entry_index,exit_index,")
	sb.WriteString("entry_price,exit_price,size,pnl,return,exit_reason\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%.8f,%.8f,%.8f,%.8f,%.8f,%s\n",
			t.TradeID,
			t.Direction,
			t.EntryTimeMs,
			t.ExitTimeMs,
			t.EntryIndex,
			t.ExitIndex,
			t.EntryPrice,
			t.ExitPrice,
			t.Size,
			t.PnL,
			t.Return,
			t.ExitReason,
		))
	}

	return sb.String()
}

// RenderEquityCSV renders the equity curve as CSV string.
func RenderEquityCSV(equity []domain.EquityPoint) string {
	var sb strings.Builder

	sb.WriteString("timestamp_ms,capital\n")
	for _, p := range equity {
		sb.WriteString(fmt.Sprintf("%d,%.8f\n", p.TimestampMs, p.Capital))
	}

	return sb.String()
}
