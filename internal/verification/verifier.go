// Package verification checks that simulation runs are reproducible.
// Two runs over the same bars, indicators and configuration must produce
// identical trades, equity and metrics.
package verification

import (
	"context"
	"fmt"
	"math"

	"signal-backtest-lab/internal/backtest"
	"signal-backtest-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
// Runs are expected to be bit-identical, so the default is exact.
const FloatTolerance = 0.0

// FieldDivergence represents a mismatch between expected and actual values.
type FieldDivergence struct {
	Field    string // field path, e.g. "trades[2].ExitPrice"
	Expected any
	Actual   any
}

// String formats the divergence for logs and reports.
func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s: expected %v, got %v", d.Field, d.Expected, d.Actual)
}

// VerificationResult contains the comparison of one repeated run against the reference run.
type VerificationResult struct {
	Run               int               // 1-based index of the repeated run
	RunID             string            // run ID of the repeated run
	Match             bool              // true if all fields match
	Divergences       []FieldDivergence // list of divergent fields
	ExpectedFinalCash float64           // final capital of the reference run
	ActualFinalCash   float64           // final capital of the repeated run
}

// VerificationReport contains results for a determinism check.
type VerificationReport struct {
	RunID         string               // run ID of the reference run
	TotalRuns     int                  // runs compared against the reference
	MatchedRuns   int                  // runs identical to the reference
	DivergentRuns int                  // runs with divergences
	Results       []VerificationResult // individual results
}

// Passed reports whether every run matched.
func (r *VerificationReport) Passed() bool {
	return r.DivergentRuns == 0
}

// CompareResults compares two full simulation results.
func CompareResults(expected, actual *backtest.Result) []FieldDivergence {
	var divergences []FieldDivergence

	if expected.RunID != actual.RunID {
		divergences = append(divergences, FieldDivergence{Field: "RunID", Expected: expected.RunID, Actual: actual.RunID})
	}
	if !expected.FinalCapitalExact.Equal(actual.FinalCapitalExact) {
		divergences = append(divergences, FieldDivergence{
			Field:    "FinalCapital",
			Expected: expected.FinalCapitalExact.String(),
			Actual:   actual.FinalCapitalExact.String(),
		})
	}

	divergences = append(divergences, CompareSignals(expected.Signals, actual.Signals)...)
	divergences = append(divergences, CompareTrades(expected.Trades, actual.Trades)...)
	divergences = append(divergences, CompareEquity(expected.Equity, actual.Equity)...)
	divergences = append(divergences, ComparePositions(expected.OpenPosition, actual.OpenPosition)...)
	divergences = append(divergences, CompareMetrics(expected.Metrics, actual.Metrics)...)

	return divergences
}

// CompareTrades compares two trade ledgers and returns divergences.
// A length mismatch is reported once; the common prefix is still compared.
func CompareTrades(expected, actual []*domain.Trade) []FieldDivergence {
	var divergences []FieldDivergence

	if len(expected) != len(actual) {
		divergences = append(divergences, FieldDivergence{Field: "trades.len", Expected: len(expected), Actual: len(actual)})
	}

	for i := range min(len(expected), len(actual)) {
		divergences = append(divergences, CompareTrade(fmt.Sprintf("trades[%d]", i), expected[i], actual[i])...)
	}

	return divergences
}

// CompareTrade compares two trades field by field. Uses FloatTolerance for float64 fields.
func CompareTrade(prefix string, expected, actual *domain.Trade) []FieldDivergence {
	d := differ{prefix: prefix}

	d.str("TradeID", expected.TradeID, actual.TradeID)
	d.integer("EntryTimeMs", expected.EntryTimeMs, actual.EntryTimeMs)
	d.integer("ExitTimeMs", expected.ExitTimeMs, actual.ExitTimeMs)
	d.integer("EntryIndex", int64(expected.EntryIndex), int64(actual.EntryIndex))
	d.integer("ExitIndex", int64(expected.ExitIndex), int64(actual.ExitIndex))
	d.float("EntryPrice", expected.EntryPrice, actual.EntryPrice)
	d.float("ExitPrice", expected.ExitPrice, actual.ExitPrice)
	d.float("Size", expected.Size, actual.Size)
	d.str("Direction", expected.Direction.String(), actual.Direction.String())
	d.float("PnL", expected.PnL, actual.PnL)
	d.float("Return", expected.Return, actual.Return)
	d.str("ExitReason", expected.ExitReason, actual.ExitReason)

	return d.out
}

// CompareEquity compares two equity curves.
func CompareEquity(expected, actual []domain.EquityPoint) []FieldDivergence {
	d := differ{prefix: "equity"}

	d.integer("len", int64(len(expected)), int64(len(actual)))
	for i := range min(len(expected), len(actual)) {
		d.integer(fmt.Sprintf("[%d].TimestampMs", i), expected[i].TimestampMs, actual[i].TimestampMs)
		d.float(fmt.Sprintf("[%d].Capital", i), expected[i].Capital, actual[i].Capital)
	}

	return d.out
}

// CompareSignals compares two composite signal series.
func CompareSignals(expected, actual []domain.Vote) []FieldDivergence {
	d := differ{prefix: "signals"}

	d.integer("len", int64(len(expected)), int64(len(actual)))
	for i := range min(len(expected), len(actual)) {
		d.integer(fmt.Sprintf("[%d]", i), int64(expected[i]), int64(actual[i]))
	}

	return d.out
}

// ComparePositions compares the positions left open at the end of two runs.
func ComparePositions(expected, actual *domain.Position) []FieldDivergence {
	if expected == nil && actual == nil {
		return nil
	}
	if expected == nil || actual == nil {
		return []FieldDivergence{{Field: "OpenPosition", Expected: expected, Actual: actual}}
	}

	d := differ{prefix: "OpenPosition"}
	d.integer("EntryTimeMs", expected.EntryTimeMs, actual.EntryTimeMs)
	d.integer("EntryIndex", int64(expected.EntryIndex), int64(actual.EntryIndex))
	d.float("EntryPrice", expected.EntryPrice, actual.EntryPrice)
	d.float("Size", expected.Size, actual.Size)
	d.str("Direction", expected.Direction.String(), actual.Direction.String())
	return d.out
}

// CompareMetrics compares two metric summaries.
func CompareMetrics(expected, actual *domain.PerformanceMetrics) []FieldDivergence {
	if expected == nil || actual == nil {
		if expected == actual {
			return nil
		}
		return []FieldDivergence{{Field: "metrics", Expected: expected, Actual: actual}}
	}

	d := differ{prefix: "metrics"}

	if expected.Empty != actual.Empty {
		d.add("Empty", expected.Empty, actual.Empty)
	}
	d.integer("TotalTrades", int64(expected.TotalTrades), int64(actual.TotalTrades))
	d.integer("WinningTrades", int64(expected.WinningTrades), int64(actual.WinningTrades))
	d.integer("LosingTrades", int64(expected.LosingTrades), int64(actual.LosingTrades))
	d.float("WinRate", expected.WinRate, actual.WinRate)
	d.float("TotalPnL", expected.TotalPnL, actual.TotalPnL)
	d.float("TotalReturn", expected.TotalReturn, actual.TotalReturn)
	d.float("AvgWin", expected.AvgWin, actual.AvgWin)
	d.float("AvgLoss", expected.AvgLoss, actual.AvgLoss)
	d.float("ProfitFactor", expected.ProfitFactor, actual.ProfitFactor)
	d.float("AvgReturn", expected.AvgReturn, actual.AvgReturn)
	d.float("ReturnStd", expected.ReturnStd, actual.ReturnStd)
	d.float("MedianReturn", expected.MedianReturn, actual.MedianReturn)
	d.float("BestReturn", expected.BestReturn, actual.BestReturn)
	d.float("WorstReturn", expected.WorstReturn, actual.WorstReturn)
	d.float("SharpeRatio", expected.SharpeRatio, actual.SharpeRatio)
	d.float("MaxDrawdown", expected.MaxDrawdown, actual.MaxDrawdown)
	d.integer("MaxConsecutiveLosses", int64(expected.MaxConsecutiveLosses), int64(actual.MaxConsecutiveLosses))

	return d.out
}

// VerifyDeterminism runs Simulate runs+1 times over input and compares every
// repeat against the first run. runs < 1 is treated as 1.
func VerifyDeterminism(ctx context.Context, input backtest.Input, runs int, opts backtest.Options) (*VerificationReport, error) {
	if runs < 1 {
		runs = 1
	}

	reference, err := backtest.Simulate(ctx, input, opts)
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}

	report := &VerificationReport{
		RunID:     reference.RunID,
		TotalRuns: runs,
		Results:   make([]VerificationResult, 0, runs),
	}

	for i := 1; i <= runs; i++ {
		repeat, err := backtest.Simulate(ctx, input, opts)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}

		divergences := CompareResults(reference, repeat)
		result := VerificationResult{
			Run:               i,
			RunID:             repeat.RunID,
			Match:             len(divergences) == 0,
			Divergences:       divergences,
			ExpectedFinalCash: reference.FinalCapital,
			ActualFinalCash:   repeat.FinalCapital,
		}

		report.Results = append(report.Results, result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

// differ accumulates divergences under a common field prefix.
type differ struct {
	prefix string
	out    []FieldDivergence
}

func (d *differ) add(field string, expected, actual any) {
	name := field
	if d.prefix != "" {
		if field != "" && field[0] == '[' {
			name = d.prefix + field
		} else {
			name = d.prefix + "." + field
		}
	}
	d.out = append(d.out, FieldDivergence{Field: name, Expected: expected, Actual: actual})
}

func (d *differ) float(field string, expected, actual float64) {
	if !floatEquals(expected, actual) {
		d.add(field, expected, actual)
	}
}

func (d *differ) integer(field string, expected, actual int64) {
	if expected != actual {
		d.add(field, expected, actual)
	}
}

func (d *differ) str(field, expected, actual string) {
	if expected != actual {
		d.add(field, expected, actual)
	}
}

// floatEquals compares two float64 values within FloatTolerance.
// NaN equals NaN so that undefined statistics compare as identical.
func floatEquals(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b || math.Abs(a-b) <= FloatTolerance
}
