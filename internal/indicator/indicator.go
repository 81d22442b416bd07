package indicator

import (
	"signal-backtest-lab/internal/domain"
)

// Indicator turns a bar series into a per-bar vote series.
// Implementations only read the bars and hold no per-run state, so one value
// may serve concurrent runs.
type Indicator interface {
	// Name returns the stable key of the indicator's vote column.
	Name() string

	// ComputeVotes returns exactly len(bars) votes in {-1, 0, +1}.
	// Bars without enough history vote neutral.
	ComputeVotes(bars []*domain.Bar) ([]domain.Vote, error)
}

// identified is implemented by indicators whose identity includes parameters.
type identified interface {
	ID() string
}

// ID returns the parameterized identifier of ind, or its name when it has none.
func ID(ind Indicator) string {
	if v, ok := ind.(identified); ok {
		return v.ID()
	}
	return ind.Name()
}

// SignalColumn returns the vote column key for an indicator name.
func SignalColumn(name string) string {
	return name + "_signal"
}

// Names returns the names of indicators in order.
func Names(indicators []Indicator) []string {
	names := make([]string, len(indicators))
	for i, ind := range indicators {
		names[i] = ind.Name()
	}
	return names
}

// IDs returns the parameterized identifiers of indicators in order.
func IDs(indicators []Indicator) []string {
	ids := make([]string, len(indicators))
	for i, ind := range indicators {
		ids[i] = ID(ind)
	}
	return ids
}

// neutral allocates an all-neutral vote series.
func neutral(n int) []domain.Vote {
	return make([]domain.Vote, n)
}
