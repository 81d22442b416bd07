package domain

import (
	"math"
)

// ThresholdMode selects how price_change is compared against stop-loss and take-profit.
type ThresholdMode string

// Threshold modes
const (
	// ThresholdModeLiteral compares the raw close-to-entry change regardless of direction.
	ThresholdModeLiteral ThresholdMode = "literal"
	// ThresholdModeDirectionAdjusted multiplies the change by the position direction first.
	ThresholdModeDirectionAdjusted ThresholdMode = "direction_adjusted"
)

// EndOfDataPolicy selects what happens to a position still open after the final bar.
type EndOfDataPolicy string

// End-of-data policies
const (
	// EndOfDataForceClose closes the position at the final close with reason end_of_data.
	EndOfDataForceClose EndOfDataPolicy = "force_close"
	// EndOfDataLeaveOpen excludes the position from trades and metrics.
	EndOfDataLeaveOpen EndOfDataPolicy = "leave_open"
)

// Configuration defaults
const (
	DefaultInitialCapital      = 10000.0
	DefaultPositionSize        = 0.1
	DefaultStopLoss            = 0.02
	DefaultTakeProfit          = 0.04
	DefaultAnnualizationFactor = 252.0
)

// BacktestConfig holds every parameter of one simulation run.
// Constructed once per run and passed by value; there is no shared engine state.
type BacktestConfig struct {
	InitialCapital      float64         // starting capital, > 0
	PositionSize        float64         // fraction of capital committed per entry, (0, 1]
	StopLoss            float64         // fractional stop-loss threshold, > 0
	TakeProfit          float64         // fractional take-profit threshold, > 0
	ThresholdMode       ThresholdMode   // literal | direction_adjusted
	EndOfData           EndOfDataPolicy // force_close | leave_open
	AnnualizationFactor float64         // periods per year used for sharpe, > 0
}

// DefaultBacktestConfig returns the reference configuration.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:      DefaultInitialCapital,
		PositionSize:        DefaultPositionSize,
		StopLoss:            DefaultStopLoss,
		TakeProfit:          DefaultTakeProfit,
		ThresholdMode:       ThresholdModeLiteral,
		EndOfData:           EndOfDataForceClose,
		AnnualizationFactor: DefaultAnnualizationFactor,
	}
}

// WithDefaults fills unset policy fields and the annualization factor.
// Numeric risk parameters are left as given so that Validate can reject them.
func (c BacktestConfig) WithDefaults() BacktestConfig {
	if c.ThresholdMode == "" {
		c.ThresholdMode = ThresholdModeLiteral
	}
	if c.EndOfData == "" {
		c.EndOfData = EndOfDataForceClose
	}
	if c.AnnualizationFactor == 0 {
		c.AnnualizationFactor = DefaultAnnualizationFactor
	}
	return c
}

// Validate checks every field and returns a *ConfigurationError for the first bad one.
func (c BacktestConfig) Validate() error {
	if !IsFinite(c.InitialCapital) || c.InitialCapital <= 0 {
		return &ConfigurationError{Field: "initial_capital", Value: c.InitialCapital, Reason: "must be a finite value > 0"}
	}
	if math.IsNaN(c.PositionSize) || c.PositionSize <= 0 || c.PositionSize > 1 {
		return &ConfigurationError{Field: "position_size", Value: c.PositionSize, Reason: "must be in (0, 1]"}
	}
	if !IsFinite(c.StopLoss) || c.StopLoss <= 0 {
		return &ConfigurationError{Field: "stop_loss", Value: c.StopLoss, Reason: "must be a finite value > 0"}
	}
	if !IsFinite(c.TakeProfit) || c.TakeProfit <= 0 {
		return &ConfigurationError{Field: "take_profit", Value: c.TakeProfit, Reason: "must be a finite value > 0"}
	}
	switch c.ThresholdMode {
	case ThresholdModeLiteral, ThresholdModeDirectionAdjusted:
	default:
		return &ConfigurationError{Field: "threshold_mode", Value: c.ThresholdMode, Reason: "must be literal or direction_adjusted"}
	}
	switch c.EndOfData {
	case EndOfDataForceClose, EndOfDataLeaveOpen:
	default:
		return &ConfigurationError{Field: "end_of_data", Value: c.EndOfData, Reason: "must be force_close or leave_open"}
	}
	if !IsFinite(c.AnnualizationFactor) || c.AnnualizationFactor <= 0 {
		return &ConfigurationError{Field: "annualization_factor", Value: c.AnnualizationFactor, Reason: "must be a finite value > 0"}
	}
	return nil
}

// IndicatorConfig describes one indicator instance.
// Nil parameters take the indicator's defaults.
type IndicatorConfig struct {
	Type string // "RSI" | "MACD" | "CUSUM"
	Name string // vote column name; defaults to the lower-cased type

	// RSI parameters
	Period     *int
	Overbought *float64
	Oversold   *float64

	// MACD parameters
	FastPeriod   *int
	SlowPeriod   *int
	SignalPeriod *int

	// CUSUM parameters
	Threshold *float64
	Drift     *float64
}

// Indicator type constants
const (
	IndicatorTypeRSI   = "RSI"
	IndicatorTypeMACD  = "MACD"
	IndicatorTypeCUSUM = "CUSUM"
)

// DefaultIndicatorConfigs returns the default active set: RSI, MACD and CUSUM.
func DefaultIndicatorConfigs() []IndicatorConfig {
	return []IndicatorConfig{
		{Type: IndicatorTypeRSI},
		{Type: IndicatorTypeMACD},
		{Type: IndicatorTypeCUSUM},
	}
}
