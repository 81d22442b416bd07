package indicator

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"signal-backtest-lab/internal/domain"
)

// RSI defaults
const (
	DefaultRSIPeriod     = 14
	DefaultRSIOverbought = 70.0
	DefaultRSIOversold   = 30.0
)

// RSI votes buy when the relative strength index is oversold and sell when overbought.
// Gains and losses are averaged with a simple rolling mean over Period deltas,
// so the first bar with a value is index Period.
type RSI struct {
	name       string
	Period     int
	Overbought float64
	Oversold   float64
}

// NewRSI creates an RSI indicator.
func NewRSI(name string, period int, overbought, oversold float64) *RSI {
	return &RSI{
		name:       name,
		Period:     period,
		Overbought: overbought,
		Oversold:   oversold,
	}
}

// Name returns the vote column name.
func (r *RSI) Name() string { return r.name }

// ID returns the indicator identifier including parameters.
func (r *RSI) ID() string {
	return fmt.Sprintf("RSI_%d_%g_%g", r.Period, r.Overbought, r.Oversold)
}

// Values returns the RSI series. Bars without a value hold NaN.
func (r *RSI) Values(bars []*domain.Bar) []float64 {
	n := len(bars)
	out := nanSeries(n)
	if n <= r.Period {
		return out
	}

	gains := make([]float64, n-1)
	losses := make([]float64, n-1)
	for i := 1; i < n; i++ {
		delta := bars[i].Close - bars[i-1].Close
		if delta > 0 {
			gains[i-1] = delta
		} else {
			losses[i-1] = -delta
		}
	}

	// avg[j] covers deltas ending at bar j+1
	avgGain := talib.Sma(gains, r.Period)
	avgLoss := talib.Sma(losses, r.Period)

	for i := r.Period; i < n; i++ {
		g := clampZero(avgGain[i-1])
		l := clampZero(avgLoss[i-1])
		switch {
		case l == 0 && g == 0:
			// flat window: undefined
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}

	return out
}

// ComputeVotes implements Indicator.
func (r *RSI) ComputeVotes(bars []*domain.Bar) ([]domain.Vote, error) {
	votes := neutral(len(bars))
	for i, v := range r.Values(bars) {
		switch {
		case !domain.IsFinite(v):
		case v < r.Oversold:
			votes[i] = domain.VoteBuy
		case v > r.Overbought:
			votes[i] = domain.VoteSell
		}
	}
	return votes, nil
}

// Ensure RSI implements Indicator
var _ Indicator = (*RSI)(nil)
