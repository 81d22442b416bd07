package metrics

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"signal-backtest-lab/internal/domain"
)

func makeTrade(pnl, ret float64, reason string) *domain.Trade {
	return &domain.Trade{PnL: pnl, Return: ret, ExitReason: reason}
}

func curve(values ...float64) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		out[i] = domain.EquityPoint{TimestampMs: int64(i+1) * 1000, Capital: v}
	}
	return out
}

func TestCompute_Empty(t *testing.T) {
	m := Compute(nil, curve(100, 100, 100), 100, 252)

	if !m.Empty {
		t.Error("expected Empty for no trades")
	}
	if m.TotalTrades != 0 || m.SharpeRatio != 0 || m.TotalPnL != 0 || m.MaxDrawdown != 0 {
		t.Errorf("expected zeroed metrics, got %+v", m)
	}
	if math.IsNaN(m.AvgReturn) || math.IsNaN(m.ReturnStd) {
		t.Error("empty metrics must not hold NaN")
	}
}

func TestCompute_Counts(t *testing.T) {
	trades := []*domain.Trade{
		makeTrade(50, 0.05, domain.ExitReasonTakeProfit),
		makeTrade(-30, -0.03, domain.ExitReasonStopLoss),
		makeTrade(0, 0, domain.ExitReasonSignalReversal),
		makeTrade(20, 0.02, domain.ExitReasonEndOfData),
	}

	m := Compute(trades, nil, 1000, 252)

	if m.Empty {
		t.Fatal("expected non-empty metrics")
	}
	if m.TotalTrades != 4 {
		t.Errorf("expected 4 trades, got %d", m.TotalTrades)
	}
	if m.WinningTrades != 2 {
		t.Errorf("expected 2 wins, got %d", m.WinningTrades)
	}
	if m.LosingTrades != 1 {
		t.Errorf("expected 1 loss (zero pnl in neither bucket), got %d", m.LosingTrades)
	}
	if m.WinRate != 0.5 {
		t.Errorf("expected win rate 0.5, got %f", m.WinRate)
	}
	if m.TotalPnL != 40 {
		t.Errorf("expected total pnl 40, got %f", m.TotalPnL)
	}
	if m.TotalReturn != 0.04 {
		t.Errorf("expected total return 0.04, got %f", m.TotalReturn)
	}
	if m.AvgWin != 35 || m.AvgLoss != -30 {
		t.Errorf("expected avg win 35 and avg loss -30, got %f/%f", m.AvgWin, m.AvgLoss)
	}
	if math.Abs(m.ProfitFactor-70.0/30.0) > 1e-12 {
		t.Errorf("expected profit factor 2.333, got %f", m.ProfitFactor)
	}
	if m.BestReturn != 0.05 || m.WorstReturn != -0.03 {
		t.Errorf("expected best 0.05 and worst -0.03, got %f/%f", m.BestReturn, m.WorstReturn)
	}
}

func TestCompute_PopulationStatistics(t *testing.T) {
	// returns 0.1 and -0.1: mean 0, population std 0.1 (sample std would be 0.1414)
	trades := []*domain.Trade{
		makeTrade(10, 0.1, domain.ExitReasonTakeProfit),
		makeTrade(-10, -0.1, domain.ExitReasonStopLoss),
	}

	m := Compute(trades, nil, 1000, 252)

	if math.Abs(m.AvgReturn) > 1e-15 {
		t.Errorf("expected mean 0, got %v", m.AvgReturn)
	}
	if math.Abs(m.ReturnStd-0.1) > 1e-12 {
		t.Errorf("expected population std 0.1, got %v", m.ReturnStd)
	}
}

func TestCompute_Sharpe(t *testing.T) {
	// returns 0.02, 0.04: mean 0.03, std 0.01
	trades := []*domain.Trade{
		makeTrade(2, 0.02, domain.ExitReasonTakeProfit),
		makeTrade(4, 0.04, domain.ExitReasonTakeProfit),
	}

	m := Compute(trades, nil, 100, 252)
	expected := 3 * math.Sqrt(252)
	if math.Abs(m.SharpeRatio-expected) > 1e-9 {
		t.Errorf("expected sharpe %f, got %f", expected, m.SharpeRatio)
	}

	m = Compute(trades, nil, 100, 365)
	expected = 3 * math.Sqrt(365)
	if math.Abs(m.SharpeRatio-expected) > 1e-9 {
		t.Errorf("expected sharpe %f with 365 periods, got %f", expected, m.SharpeRatio)
	}
}

func TestCompute_SharpeZeroStd(t *testing.T) {
	trades := []*domain.Trade{
		makeTrade(5, 0.05, domain.ExitReasonTakeProfit),
		makeTrade(5, 0.05, domain.ExitReasonTakeProfit),
	}

	m := Compute(trades, nil, 100, 252)
	if m.SharpeRatio != 0 {
		t.Errorf("expected sharpe 0 for constant returns, got %f", m.SharpeRatio)
	}
	if m.ProfitFactor != 0 {
		t.Errorf("expected profit factor 0 without losses, got %f", m.ProfitFactor)
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name     string
		equity   []domain.EquityPoint
		expected float64
	}{
		{"empty", nil, 0},
		{"flat", curve(100, 100, 100), 0},
		{"non-decreasing", curve(100, 101, 101, 150), 0},
		{"single dip", curve(100, 90, 110), -0.1},
		{"deepest after new peak", curve(100, 90, 200, 150, 210), -0.25},
		{"ends in drawdown", curve(100, 120, 60), -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.equity)
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
			if got > 0 {
				t.Errorf("drawdown must be <= 0, got %f", got)
			}
		})
	}
}

func TestMaxConsecutiveLosses(t *testing.T) {
	trades := []*domain.Trade{
		makeTrade(-1, 0, ""),
		makeTrade(-1, 0, ""),
		makeTrade(0, 0, ""),
		makeTrade(-1, 0, ""),
		makeTrade(-1, 0, ""),
		makeTrade(-1, 0, ""),
		makeTrade(2, 0, ""),
	}

	if got := MaxConsecutiveLosses(trades); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestTotalPnL_Exact(t *testing.T) {
	trades := []*domain.Trade{
		makeTrade(0.1, 0, ""),
		makeTrade(0.2, 0, ""),
		makeTrade(-0.3, 0, ""),
	}

	if got := TotalPnL(trades); !got.Equal(decimal.Zero) {
		t.Errorf("expected exact zero, got %s", got)
	}
}

func TestExitReasonCounts(t *testing.T) {
	trades := []*domain.Trade{
		makeTrade(1, 0, domain.ExitReasonTakeProfit),
		makeTrade(1, 0, domain.ExitReasonTakeProfit),
		makeTrade(-1, 0, domain.ExitReasonStopLoss),
	}

	counts := ExitReasonCounts(trades)
	if counts[domain.ExitReasonTakeProfit] != 2 || counts[domain.ExitReasonStopLoss] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
	if _, ok := counts[domain.ExitReasonEndOfData]; !ok {
		t.Error("expected every known reason present")
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	if got := computePercentile(sorted, 0.5); got != 2.5 {
		t.Errorf("expected median 2.5, got %f", got)
	}
	if got := computePercentile([]float64{7}, 0.9); got != 7 {
		t.Errorf("expected 7, got %f", got)
	}
}
