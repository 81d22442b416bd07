package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataShape indicates an input series that cannot be simulated.
	ErrDataShape = errors.New("data shape error")

	// ErrInvalidPrice indicates a non-positive or non-finite price at open or close.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrConfiguration indicates an out-of-range configuration value.
	ErrConfiguration = errors.New("configuration error")

	// ErrCapitalExhausted indicates an entry attempted with no capital left.
	ErrCapitalExhausted = errors.New("capital exhausted")
)

// DataShapeError reports a malformed bar series or vote column.
// Index is -1 when the problem concerns the whole series.
type DataShapeError struct {
	Index  int
	Field  string
	Reason string
}

func (e *DataShapeError) Error() string {
	switch {
	case e.Index < 0 && e.Field == "":
		return fmt.Sprintf("%s: %s", ErrDataShape, e.Reason)
	case e.Index < 0:
		return fmt.Sprintf("%s: field %q: %s", ErrDataShape, e.Field, e.Reason)
	case e.Field == "":
		return fmt.Sprintf("%s: bar %d: %s", ErrDataShape, e.Index, e.Reason)
	default:
		return fmt.Sprintf("%s: bar %d field %q: %s", ErrDataShape, e.Index, e.Field, e.Reason)
	}
}

func (e *DataShapeError) Unwrap() error { return ErrDataShape }

// InvalidPriceError reports the bar whose price could not open or close a position.
type InvalidPriceError struct {
	Index       int
	TimestampMs int64
	Price       float64
	Op          string // "open" or "close"
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("%s: bar %d (ts=%d): cannot %s at price %v", ErrInvalidPrice, e.Index, e.TimestampMs, e.Op, e.Price)
}

func (e *InvalidPriceError) Unwrap() error { return ErrInvalidPrice }

// ConfigurationError reports the offending configuration field.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrConfiguration, e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }
