package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"signal-backtest-lab/internal/domain"
)

// CUSUM defaults
const (
	DefaultCUSUMThreshold = 1.0
	DefaultCUSUMDrift     = 0.0
)

// CUSUM is a two-sided cumulative sum change-point detector over close-to-close returns.
type CUSUM struct {
	name      string
	Threshold float64
	Drift     float64
}

// NewCUSUM creates a CUSUM indicator.
func NewCUSUM(name string, threshold, drift float64) *CUSUM {
	return &CUSUM{
		name:      name,
		Threshold: threshold,
		Drift:     drift,
	}
}

// Name returns the vote column name.
func (c *CUSUM) Name() string { return c.name }

// ID returns the indicator identifier including parameters.
func (c *CUSUM) ID() string {
	return fmt.Sprintf("CUSUM_%g_%g", c.Threshold, c.Drift)
}

// Sums returns the positive and negative cumulative sums. Both start at zero on bar 0.
func (c *CUSUM) Sums(bars []*domain.Bar) (pos, neg []float64) {
	n := len(bars)
	pos, neg = make([]float64, n), make([]float64, n)
	if n < 2 {
		return pos, neg
	}

	returns := talib.Rocp(domain.Closes(bars), 1)
	for i := 1; i < n; i++ {
		pos[i] = math.Max(0, pos[i-1]+returns[i]-c.Drift)
		neg[i] = math.Min(0, neg[i-1]+returns[i]+c.Drift)
	}
	return pos, neg
}

// ComputeVotes implements Indicator.
// A bar crossing both thresholds votes sell.
func (c *CUSUM) ComputeVotes(bars []*domain.Bar) ([]domain.Vote, error) {
	votes := neutral(len(bars))
	pos, neg := c.Sums(bars)
	for i := range votes {
		if pos[i] > c.Threshold {
			votes[i] = domain.VoteBuy
		}
		if neg[i] < -c.Threshold {
			votes[i] = domain.VoteSell
		}
	}
	return votes, nil
}

// Ensure CUSUM implements Indicator
var _ Indicator = (*CUSUM)(nil)
