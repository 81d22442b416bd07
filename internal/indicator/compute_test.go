package indicator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-backtest-lab/internal/domain"
)

type fixedIndicator struct {
	name  string
	votes []domain.Vote
	err   error
}

func (f *fixedIndicator) Name() string { return f.name }

func (f *fixedIndicator) ComputeVotes(_ []*domain.Bar) ([]domain.Vote, error) {
	return f.votes, f.err
}

func TestComputeAll(t *testing.T) {
	bars := barsFromCloses(100, 101, 102)
	inds := []Indicator{
		NewStatic("a", []domain.Vote{1, 0, -1}),
		NewStatic("b", []domain.Vote{0, 0, 1}),
		NewCUSUM("cusum", 1, 0),
	}

	columns, err := ComputeAll(context.Background(), bars, inds)
	require.NoError(t, err)
	require.Len(t, columns, 3)

	assert.Equal(t, []domain.Vote{1, 0, -1}, columns["a"])
	assert.Equal(t, []domain.Vote{0, 0, 1}, columns["b"])
	assert.Equal(t, []domain.Vote{0, 0, 0}, columns["cusum"])
}

func TestComputeAll_RejectsOutOfRangeVote(t *testing.T) {
	bars := barsFromCloses(100, 101)
	inds := []Indicator{&fixedIndicator{name: "bad", votes: []domain.Vote{0, 2}}}

	_, err := ComputeAll(context.Background(), bars, inds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataShape))

	var shapeErr *domain.DataShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 1, shapeErr.Index)
	assert.Equal(t, "bad_signal", shapeErr.Field)
}

func TestComputeAll_RejectsShortColumn(t *testing.T) {
	bars := barsFromCloses(100, 101, 102)
	inds := []Indicator{&fixedIndicator{name: "short", votes: []domain.Vote{0}}}

	_, err := ComputeAll(context.Background(), bars, inds)
	assert.True(t, errors.Is(err, domain.ErrDataShape))
}

func TestComputeAll_PropagatesIndicatorError(t *testing.T) {
	boom := errors.New("boom")
	inds := []Indicator{
		NewStatic("ok", []domain.Vote{0}),
		&fixedIndicator{name: "broken", err: boom},
	}

	_, err := ComputeAll(context.Background(), barsFromCloses(1), inds)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
}

func TestComputeAll_DuplicateNames(t *testing.T) {
	inds := []Indicator{
		NewStatic("x", []domain.Vote{0}),
		NewStatic("x", []domain.Vote{1}),
	}

	_, err := ComputeAll(context.Background(), barsFromCloses(1), inds)
	assert.ErrorIs(t, err, ErrDuplicateIndicator)
}

func TestComputeAll_NoIndicators(t *testing.T) {
	columns, err := ComputeAll(context.Background(), barsFromCloses(1, 2), nil)
	require.NoError(t, err)
	assert.Empty(t, columns)
}
