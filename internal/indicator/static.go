package indicator

import (
	"fmt"

	"signal-backtest-lab/internal/domain"
)

// Static replays a precomputed vote column.
// Used for externally produced signals and for deterministic fixtures.
type Static struct {
	name  string
	votes []domain.Vote
}

// NewStatic creates a Static indicator. The votes slice is copied.
func NewStatic(name string, votes []domain.Vote) *Static {
	v := make([]domain.Vote, len(votes))
	copy(v, votes)
	return &Static{name: name, votes: v}
}

// Name returns the vote column name.
func (s *Static) Name() string { return s.name }

// ComputeVotes returns a copy of the stored column.
// Fails if the column does not match the bar series length.
func (s *Static) ComputeVotes(bars []*domain.Bar) ([]domain.Vote, error) {
	if len(s.votes) != len(bars) {
		return nil, &domain.DataShapeError{
			Index:  -1,
			Field:  SignalColumn(s.name),
			Reason: fmt.Sprintf("vote column has %d values for %d bars", len(s.votes), len(bars)),
		}
	}
	out := make([]domain.Vote, len(s.votes))
	copy(out, s.votes)
	return out, nil
}

// Ensure Static implements Indicator
var _ Indicator = (*Static)(nil)
