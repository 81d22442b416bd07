package backtest

import (
	"math"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/indicator"
)

func flatBars(n int, price float64) []*domain.Bar {
	bars := make([]*domain.Bar, n)
	for i := range bars {
		bars[i] = &domain.Bar{
			TimestampMs: int64(i+1) * 60_000,
			Open:        price,
			High:        price,
			Low:         price,
			Close:       price,
			Volume:      1,
		}
	}
	return bars
}

func barsFromCloses(closes ...float64) []*domain.Bar {
	bars := make([]*domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = &domain.Bar{
			TimestampMs: int64(i+1) * 60_000,
			Open:        c,
			High:        c,
			Low:         c,
			Close:       c,
			Volume:      1,
		}
	}
	return bars
}

// wavyBars produces a deterministic oscillating series large enough for every default indicator.
func wavyBars(n int) []*domain.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 8*math.Sin(float64(i)/5) + 3*math.Cos(float64(i)/2.3) + float64(i)*0.05
	}
	return barsFromCloses(closes...)
}

func votesAt(n int, at map[int]domain.Vote) []domain.Vote {
	v := make([]domain.Vote, n)
	for i, vote := range at {
		v[i] = vote
	}
	return v
}

func static(name string, votes []domain.Vote) []indicator.Indicator {
	return []indicator.Indicator{indicator.NewStatic(name, votes)}
}
