package indicator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"signal-backtest-lab/internal/domain"
)

// ComputeAll runs every indicator over the whole series, one goroutine per indicator.
// Returns vote columns keyed by indicator name. Every column is checked for
// length and value range; a malformed column fails the whole call.
func ComputeAll(ctx context.Context, bars []*domain.Bar, indicators []Indicator) (map[string][]domain.Vote, error) {
	if err := checkNames(indicators); err != nil {
		return nil, err
	}

	columns := make([][]domain.Vote, len(indicators))
	g, gctx := errgroup.WithContext(ctx)

	for i, ind := range indicators {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			votes, err := ind.ComputeVotes(bars)
			if err != nil {
				return fmt.Errorf("indicator %s: %w", ind.Name(), err)
			}
			if err := CheckColumn(ind.Name(), votes, len(bars)); err != nil {
				return err
			}
			columns[i] = votes
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]domain.Vote, len(indicators))
	for i, ind := range indicators {
		out[ind.Name()] = columns[i]
	}
	return out, nil
}

// CheckColumn verifies that a vote column has n entries, each in {-1, 0, +1}.
func CheckColumn(name string, votes []domain.Vote, n int) error {
	if len(votes) != n {
		return &domain.DataShapeError{
			Index:  -1,
			Field:  SignalColumn(name),
			Reason: fmt.Sprintf("vote column has %d values for %d bars", len(votes), n),
		}
	}
	for i, v := range votes {
		if !v.IsValid() {
			return &domain.DataShapeError{
				Index:  i,
				Field:  SignalColumn(name),
				Reason: fmt.Sprintf("vote %d outside {-1, 0, 1}", int(v)),
			}
		}
	}
	return nil
}
