package domain

import (
	"fmt"
	"math"
)

// Bar represents one OHLCV sample for a fixed time interval.
// Immutable once produced by a market data source.
type Bar struct {
	TimestampMs int64   // interval open time, Unix milliseconds
	Open        float64 // first price in interval
	High        float64 // highest price in interval
	Low         float64 // lowest price in interval
	Close       float64 // last price in interval
	Volume      float64 // traded volume in interval
}

// Bar field names used in error reports.
const (
	FieldTimestamp = "timestamp"
	FieldOpen      = "open"
	FieldHigh      = "high"
	FieldLow       = "low"
	FieldClose     = "close"
	FieldVolume    = "volume"
)

// ValidateBars checks that a series can be simulated: non-empty, every field
// finite, close positive, volume non-negative and timestamps strictly increasing.
func ValidateBars(bars []*Bar) error {
	if len(bars) == 0 {
		return &DataShapeError{Index: -1, Reason: "empty bar series"}
	}

	for i, b := range bars {
		if b == nil {
			return &DataShapeError{Index: i, Reason: "nil bar"}
		}
		if err := validateBarFields(i, b); err != nil {
			return err
		}
		if i > 0 && b.TimestampMs <= bars[i-1].TimestampMs {
			return &DataShapeError{
				Index:  i,
				Field:  FieldTimestamp,
				Reason: fmt.Sprintf("timestamp %d not after previous %d", b.TimestampMs, bars[i-1].TimestampMs),
			}
		}
	}

	return nil
}

func validateBarFields(i int, b *Bar) error {
	fields := []struct {
		name  string
		value float64
	}{
		{FieldOpen, b.Open},
		{FieldHigh, b.High},
		{FieldLow, b.Low},
		{FieldClose, b.Close},
		{FieldVolume, b.Volume},
	}
	for _, f := range fields {
		if !IsFinite(f.value) {
			return &DataShapeError{Index: i, Field: f.name, Reason: fmt.Sprintf("non-finite value %v", f.value)}
		}
	}
	if b.Close <= 0 {
		return &DataShapeError{Index: i, Field: FieldClose, Reason: fmt.Sprintf("close must be positive, got %v", b.Close)}
	}
	if b.Volume < 0 {
		return &DataShapeError{Index: i, Field: FieldVolume, Reason: fmt.Sprintf("volume must be non-negative, got %v", b.Volume)}
	}
	return nil
}

// Closes extracts close prices in series order.
func Closes(bars []*Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
