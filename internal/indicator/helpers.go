package indicator

import "math"

// nanSeries allocates a series with every value undefined.
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// clampZero removes negative rounding residue from rolling sums.
func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
