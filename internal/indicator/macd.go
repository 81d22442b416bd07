package indicator

import (
	"fmt"

	"signal-backtest-lab/internal/domain"
)

// MACD defaults
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// MACD votes buy while the MACD line is above its signal line and sell while below.
type MACD struct {
	name         string
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// NewMACD creates a MACD indicator.
func NewMACD(name string, fast, slow, signal int) *MACD {
	return &MACD{
		name:         name,
		FastPeriod:   fast,
		SlowPeriod:   slow,
		SignalPeriod: signal,
	}
}

// Name returns the vote column name.
func (m *MACD) Name() string { return m.name }

// ID returns the indicator identifier including parameters.
func (m *MACD) ID() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.FastPeriod, m.SlowPeriod, m.SignalPeriod)
}

// Lines returns the MACD and signal lines. Both EMAs start at the first close
// and the signal line starts at the first MACD value, so every bar has a value.
func (m *MACD) Lines(bars []*domain.Bar) (line, signal []float64) {
	closes := domain.Closes(bars)
	fast := ema(closes, m.FastPeriod)
	slow := ema(closes, m.SlowPeriod)

	line = make([]float64, len(closes))
	for i := range line {
		line[i] = fast[i] - slow[i]
	}
	return line, ema(line, m.SignalPeriod)
}

// ema is a recursive exponential average with alpha = 2/(span+1), seeded with
// the first value.
func ema(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2 / (float64(span) + 1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (1-alpha)*out[i-1] + alpha*values[i]
	}
	return out
}

// ComputeVotes implements Indicator.
func (m *MACD) ComputeVotes(bars []*domain.Bar) ([]domain.Vote, error) {
	votes := neutral(len(bars))
	line, signal := m.Lines(bars)
	for i := range votes {
		if !domain.IsFinite(line[i]) || !domain.IsFinite(signal[i]) {
			continue
		}
		if line[i] > signal[i] {
			votes[i] = domain.VoteBuy
		} else if line[i] < signal[i] {
			votes[i] = domain.VoteSell
		}
	}
	return votes, nil
}

// Ensure MACD implements Indicator
var _ Indicator = (*MACD)(nil)
