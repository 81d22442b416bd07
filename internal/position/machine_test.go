package position

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-backtest-lab/internal/domain"
)

func newBar(ts int64, price float64) *domain.Bar {
	return &domain.Bar{TimestampMs: ts, Open: price, High: price, Low: price, Close: price, Volume: 1}
}

func newMachine(t *testing.T, mutate func(*domain.BacktestConfig)) *Machine {
	t.Helper()
	cfg := domain.DefaultBacktestConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewMachine(cfg, "run-test")
	require.NoError(t, err)
	return m
}

func TestNewMachine_InvalidConfig(t *testing.T) {
	cfg := domain.DefaultBacktestConfig()
	cfg.PositionSize = 0

	_, err := NewMachine(cfg, "run")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestStep_FlatNeutralStaysFlat(t *testing.T) {
	m := newMachine(t, nil)

	trade, err := m.Step(0, newBar(1000, 100), domain.VoteNeutral)
	require.NoError(t, err)
	assert.Nil(t, trade)
	assert.Equal(t, StateFlat, m.State())
}

func TestStep_OpenSizing(t *testing.T) {
	m := newMachine(t, nil)

	trade, err := m.Step(0, newBar(1000, 100), domain.VoteBuy)
	require.NoError(t, err)
	assert.Nil(t, trade)
	require.Equal(t, StateInPosition, m.State())

	p := m.Position()
	assert.Equal(t, int64(1000), p.EntryTimeMs)
	assert.Equal(t, 100.0, p.EntryPrice)
	assert.Equal(t, 10.0, p.Size) // 10000 * 0.1 / 100
	assert.Equal(t, domain.DirectionLong, p.Direction)

	m2 := newMachine(t, nil)
	_, err = m2.Step(0, newBar(1000, 50), domain.VoteSell)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionShort, m2.Position().Direction)
	assert.Equal(t, 20.0, m2.Position().Size)
}

func TestStep_StopLoss(t *testing.T) {
	m := newMachine(t, nil)
	_, err := m.Step(0, newBar(1000, 100), domain.VoteBuy)
	require.NoError(t, err)

	trade, err := m.Step(1, newBar(2000, 97), domain.VoteNeutral)
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, domain.ExitReasonStopLoss, trade.ExitReason)
	assert.InDelta(t, -30.0, trade.PnL, 1e-9) // (97-100)*10
	assert.InDelta(t, -0.03, trade.Return, 1e-12)
	assert.Equal(t, StateFlat, m.State())
	assert.InDelta(t, 9970.0, m.CapitalFloat(), 1e-9)
}

func TestStep_TakeProfit(t *testing.T) {
	m := newMachine(t, nil)
	_, _ = m.Step(0, newBar(1000, 100), domain.VoteBuy)

	trade, err := m.Step(1, newBar(2000, 105), domain.VoteNeutral)
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, domain.ExitReasonTakeProfit, trade.ExitReason)
	assert.InDelta(t, 50.0, trade.PnL, 1e-9)
	assert.True(t, trade.IsWin())
	assert.InDelta(t, 10050.0, m.CapitalFloat(), 1e-9)
}

func TestStep_SignalReversalDoesNotReopen(t *testing.T) {
	m := newMachine(t, nil)
	_, _ = m.Step(0, newBar(1000, 100), domain.VoteBuy)

	trade, err := m.Step(1, newBar(2000, 101), domain.VoteSell)
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, domain.ExitReasonSignalReversal, trade.ExitReason)
	assert.Equal(t, StateFlat, m.State(), "closing bar must not open a new position")
	assert.Nil(t, m.Position())

	// The next bar may open
	_, err = m.Step(2, newBar(3000, 101), domain.VoteSell)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionShort, m.Position().Direction)
}

func TestStep_HoldOnSameDirectionSignal(t *testing.T) {
	m := newMachine(t, nil)
	_, _ = m.Step(0, newBar(1000, 100), domain.VoteBuy)
	before := m.Position()

	trade, err := m.Step(1, newBar(2000, 101), domain.VoteBuy)
	require.NoError(t, err)
	assert.Nil(t, trade)
	assert.Equal(t, before, m.Position(), "a second buy must not add a position")
}

func TestStep_StopLossBeatsReversal(t *testing.T) {
	m := newMachine(t, nil)
	_, _ = m.Step(0, newBar(1000, 100), domain.VoteBuy)

	trade, err := m.Step(1, newBar(2000, 90), domain.VoteSell)
	require.NoError(t, err)
	assert.Equal(t, domain.ExitReasonStopLoss, trade.ExitReason)
}

func TestStep_ThresholdBoundariesHold(t *testing.T) {
	m := newMachine(t, func(c *domain.BacktestConfig) {
		c.StopLoss = 0.5
		c.TakeProfit = 0.5
	})
	_, _ = m.Step(0, newBar(1000, 100), domain.VoteBuy)

	// Exactly -50% and +50% are not strictly beyond the thresholds
	trade, err := m.Step(1, newBar(2000, 50), domain.VoteNeutral)
	require.NoError(t, err)
	assert.Nil(t, trade)

	trade, err = m.Step(2, newBar(3000, 150), domain.VoteNeutral)
	require.NoError(t, err)
	assert.Nil(t, trade)
}

func TestStep_ShortLiteralThresholds(t *testing.T) {
	m := newMachine(t, nil)
	_, _ = m.Step(0, newBar(1000, 100), domain.VoteSell)

	// Price falls 3%: literal mode reads this as a stop-loss even though the short gained.
	trade, err := m.Step(1, newBar(2000, 97), domain.VoteNeutral)
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, domain.ExitReasonStopLoss, trade.ExitReason)
	assert.InDelta(t, 30.0, trade.PnL, 1e-9) // (100-97)*10
	assert.InDelta(t, 0.03, trade.Return, 1e-12)
}

func TestStep_ShortDirectionAdjustedThresholds(t *testing.T) {
	m := newMachine(t, func(c *domain.BacktestConfig) {
		c.ThresholdMode = domain.ThresholdModeDirectionAdjusted
	})
	_, _ = m.Step(0, newBar(1000, 100), domain.VoteSell)

	trade, err := m.Step(1, newBar(2000, 97), domain.VoteNeutral)
	require.NoError(t, err)
	assert.Nil(t, trade, "a 3% drop is a 3% gain for the short, below take-profit")

	trade, err = m.Step(2, newBar(3000, 103), domain.VoteNeutral)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitReasonStopLoss, trade.ExitReason)
	assert.InDelta(t, -30.0, trade.PnL, 1e-9)

	m2 := newMachine(t, func(c *domain.BacktestConfig) {
		c.ThresholdMode = domain.ThresholdModeDirectionAdjusted
	})
	_, _ = m2.Step(0, newBar(1000, 100), domain.VoteSell)
	trade, err = m2.Step(1, newBar(2000, 95), domain.VoteNeutral)
	require.NoError(t, err)
	assert.Equal(t, domain.ExitReasonTakeProfit, trade.ExitReason)
	assert.InDelta(t, 50.0, trade.PnL, 1e-9)
}

func TestStep_InvalidPrice(t *testing.T) {
	m := newMachine(t, nil)

	_, err := m.Step(3, newBar(1000, 0), domain.VoteBuy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidPrice))

	var priceErr *domain.InvalidPriceError
	require.True(t, errors.As(err, &priceErr))
	assert.Equal(t, 3, priceErr.Index)
	assert.Equal(t, "open", priceErr.Op)
	assert.Equal(t, StateFlat, m.State())

	_, err = m.Step(4, newBar(2000, math.NaN()), domain.VoteBuy)
	assert.True(t, errors.Is(err, domain.ErrInvalidPrice))

	_, _ = m.Step(5, newBar(3000, 100), domain.VoteBuy)
	_, err = m.Step(6, newBar(4000, -1), domain.VoteNeutral)
	require.True(t, errors.As(err, &priceErr))
	assert.Equal(t, "close", priceErr.Op)
	assert.Equal(t, StateInPosition, m.State())
}

func TestStep_InvalidSignal(t *testing.T) {
	m := newMachine(t, nil)
	_, err := m.Step(0, newBar(1000, 100), domain.Vote(2))
	assert.True(t, errors.Is(err, domain.ErrDataShape))
}

func TestStep_NonIncreasingTimestamp(t *testing.T) {
	m := newMachine(t, nil)
	_, _ = m.Step(0, newBar(1000, 100), domain.VoteBuy)

	_, err := m.Step(1, newBar(1000, 90), domain.VoteNeutral)
	assert.True(t, errors.Is(err, domain.ErrDataShape))
}

func TestStep_CapitalExhausted(t *testing.T) {
	m := newMachine(t, func(c *domain.BacktestConfig) {
		c.InitialCapital = 100
		c.PositionSize = 1
	})
	_, _ = m.Step(0, newBar(1000, 10), domain.VoteSell)

	// Literal mode: +150% reads as take-profit while the short loses 150
	trade, err := m.Step(1, newBar(2000, 25), domain.VoteNeutral)
	require.NoError(t, err)
	assert.Equal(t, domain.ExitReasonTakeProfit, trade.ExitReason)
	assert.InDelta(t, -150.0, trade.PnL, 1e-9)
	assert.True(t, m.Capital().IsNegative())

	_, err = m.Step(2, newBar(3000, 25), domain.VoteBuy)
	assert.True(t, errors.Is(err, domain.ErrCapitalExhausted))
}

func TestForceClose(t *testing.T) {
	m := newMachine(t, nil)

	trade, err := m.ForceClose(0, newBar(1000, 100), domain.ExitReasonEndOfData)
	require.NoError(t, err)
	assert.Nil(t, trade, "flat machine has nothing to close")

	_, _ = m.Step(0, newBar(1000, 100), domain.VoteBuy)
	trade, err = m.ForceClose(1, newBar(2000, 101), domain.ExitReasonEndOfData)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitReasonEndOfData, trade.ExitReason)
	assert.InDelta(t, 10.0, trade.PnL, 1e-9)
	assert.Equal(t, StateFlat, m.State())
}

func TestMachine_CapitalConservation(t *testing.T) {
	m := newMachine(t, func(c *domain.BacktestConfig) {
		c.InitialCapital = 12345.67
		c.PositionSize = 0.37
	})

	prices := []float64{100.3, 97.1, 99.9, 104.8, 101.2, 96.7, 98.8, 103.33, 99.01, 92.5}
	signals := []domain.Vote{1, 0, -1, 0, 1, -1, -1, 0, 1, 0}

	sum := decimal.Zero
	for i := range prices {
		trade, err := m.Step(i, newBar(int64(i+1)*1000, prices[i]), signals[i])
		require.NoError(t, err)
		if trade != nil {
			sum = sum.Add(decimal.NewFromFloat(trade.PnL))
		}
	}

	initial := decimal.NewFromFloat(12345.67)
	assert.True(t, m.Capital().Sub(initial).Equal(sum), "final-initial=%s sum=%s", m.Capital().Sub(initial), sum)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "flat", StateFlat.String())
	assert.Equal(t, "in_position", StateInPosition.String())
}
