package signal

import (
	"context"
	"fmt"
	"sort"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/indicator"
)

// Composite merges one bar's votes into a single signal by unweighted majority.
// The sign of the vote sum wins; ties and an empty vote set give neutral.
func Composite(votes map[string]domain.Vote) domain.Vote {
	sum := 0
	for _, v := range votes {
		sum += int(v)
	}
	return sign(sum)
}

// Aggregate computes the composite signal for every bar of an n-bar series.
// Every column must hold exactly n votes in {-1, 0, +1}. A bar where an
// indicator has no opinion carries a neutral vote and still counts.
func Aggregate(n int, columns map[string][]domain.Vote) ([]domain.Vote, error) {
	// Validate in name order so the reported column is stable
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := indicator.CheckColumn(name, columns[name], n); err != nil {
			return nil, err
		}
	}

	out := make([]domain.Vote, n)
	for i := 0; i < n; i++ {
		sum := 0
		for _, col := range columns {
			sum += int(col[i])
		}
		out[i] = sign(sum)
	}
	return out, nil
}

// VotesAt returns the per-indicator votes for bar i.
func VotesAt(columns map[string][]domain.Vote, i int) map[string]domain.Vote {
	out := make(map[string]domain.Vote, len(columns))
	for name, col := range columns {
		if i < len(col) {
			out[name] = col[i]
		}
	}
	return out
}

// Analysis is the synchronization point between vote production and simulation.
type Analysis struct {
	Bars      []*domain.Bar
	Votes     map[string][]domain.Vote // keyed by indicator name
	Composite []domain.Vote
}

// Analyze validates the bar series, computes every indicator's votes in
// parallel and aggregates them into one composite signal per bar.
// The bars are checked before any indicator runs.
func Analyze(ctx context.Context, bars []*domain.Bar, indicators []indicator.Indicator) (*Analysis, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}

	columns, err := indicator.ComputeAll(ctx, bars, indicators)
	if err != nil {
		return nil, fmt.Errorf("compute votes: %w", err)
	}

	composite, err := Aggregate(len(bars), columns)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		Bars:      bars,
		Votes:     columns,
		Composite: composite,
	}, nil
}

func sign(sum int) domain.Vote {
	switch {
	case sum > 0:
		return domain.VoteBuy
	case sum < 0:
		return domain.VoteSell
	default:
		return domain.VoteNeutral
	}
}
