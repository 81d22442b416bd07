package metrics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"signal-backtest-lab/internal/domain"
)

// Compute reduces a run's ledger to summary statistics.
// Pure function of its inputs. Trades must be in ledger (chronological) order.
// An empty trade list yields Empty=true with every trade statistic zero.
func Compute(
	trades []*domain.Trade,
	equity []domain.EquityPoint,
	initialCapital float64,
	annualization float64,
) *domain.PerformanceMetrics {
	n := len(trades)
	if n == 0 {
		return &domain.PerformanceMetrics{
			Empty:       true,
			MaxDrawdown: MaxDrawdown(equity),
		}
	}

	wins, losses := 0, 0
	grossProfit, grossLoss := 0.0, 0.0
	returns := make([]float64, n)
	for i, t := range trades {
		returns[i] = t.Return
		switch {
		case t.IsWin():
			wins++
			grossProfit += t.PnL
		case t.IsLoss():
			losses++
			grossLoss += t.PnL
		}
	}

	sortedReturns := make([]float64, n)
	copy(sortedReturns, returns)
	sort.Float64s(sortedReturns)

	mean := computeMean(returns)
	std := computePopulationStddev(returns, mean)
	totalPnL := TotalPnL(trades).InexactFloat64()

	return &domain.PerformanceMetrics{
		// Counts
		TotalTrades:   n,
		WinningTrades: wins,
		LosingTrades:  losses,
		WinRate:       computeRate(wins, n),

		// P&L
		TotalPnL:     totalPnL,
		TotalReturn:  totalPnL / initialCapital,
		AvgWin:       computeRatio(grossProfit, wins),
		AvgLoss:      computeRatio(grossLoss, losses),
		ProfitFactor: computeProfitFactor(grossProfit, grossLoss),

		// Return distribution
		AvgReturn:    mean,
		ReturnStd:    std,
		MedianReturn: computePercentile(sortedReturns, 0.50),
		BestReturn:   sortedReturns[n-1],
		WorstReturn:  sortedReturns[0],
		SharpeRatio:  sharpe(mean, std, annualization),

		// Drawdown
		MaxDrawdown:          MaxDrawdown(equity),
		MaxConsecutiveLosses: MaxConsecutiveLosses(trades),
	}
}

// TotalPnL sums trade pnl exactly. Capital is credited with the same decimal
// values, so the result equals final capital minus initial capital.
func TotalPnL(trades []*domain.Trade) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range trades {
		sum = sum.Add(decimal.NewFromFloat(t.PnL))
	}
	return sum
}

// Sharpe returns avg/std * sqrt(annualization) over per-trade returns,
// or 0 when there are no returns or they do not vary.
func Sharpe(returns []float64, annualization float64) float64 {
	mean := computeMean(returns)
	return sharpe(mean, computePopulationStddev(returns, mean), annualization)
}

func sharpe(mean, std, annualization float64) float64 {
	if std <= 0 {
		return 0
	}
	return mean / std * math.Sqrt(annualization)
}

// MaxDrawdown returns the most negative (equity - running_max) / running_max
// over the curve, or 0 when equity never falls below a previous peak.
func MaxDrawdown(equity []domain.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0].Capital
	maxDrawdown := 0.0

	for _, p := range equity {
		if p.Capital > peak {
			peak = p.Capital
		}
		if peak <= 0 {
			continue
		}
		drawdown := (p.Capital - peak) / peak
		if drawdown < maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// MaxConsecutiveLosses finds the longest streak of trades with pnl < 0.
// Trades must be in chronological order.
func MaxConsecutiveLosses(trades []*domain.Trade) int {
	maxStreak := 0
	currentStreak := 0

	for _, t := range trades {
		if t.IsLoss() {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}

// ExitReasonCounts counts trades per exit reason. Every known reason is present.
func ExitReasonCounts(trades []*domain.Trade) map[string]int {
	counts := make(map[string]int, len(domain.ExitReasons))
	for _, r := range domain.ExitReasons {
		counts[r] = 0
	}
	for _, t := range trades {
		counts[t.ExitReason]++
	}
	return counts
}

// computeRate calculates part / total, 0 when total is 0.
func computeRate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// computeRatio calculates sum / count, 0 when count is 0.
func computeRatio(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// computeProfitFactor calculates gross profit / |gross loss|, 0 without losses.
func computeProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		return 0
	}
	return grossProfit / math.Abs(grossLoss)
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computePopulationStddev calculates population standard deviation (n denominator).
func computePopulationStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
