package indicator

import (
	"errors"
	"fmt"
	"strings"

	"signal-backtest-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownIndicatorType = errors.New("unknown indicator type")
	ErrInvalidPeriod        = errors.New("invalid indicator period")
	ErrInvalidThreshold     = errors.New("invalid indicator threshold")
	ErrDuplicateIndicator   = errors.New("duplicate indicator name")
	ErrEmptyName            = errors.New("indicator name is empty")
)

// FromConfig creates an Indicator from domain.IndicatorConfig.
// Missing parameters take the indicator defaults; present ones are range checked.
func FromConfig(cfg domain.IndicatorConfig) (Indicator, error) {
	name := cfg.Name
	if name == "" {
		name = strings.ToLower(cfg.Type)
	}

	switch strings.ToUpper(cfg.Type) {
	case domain.IndicatorTypeRSI:
		return fromRSIConfig(name, cfg)
	case domain.IndicatorTypeMACD:
		return fromMACDConfig(name, cfg)
	case domain.IndicatorTypeCUSUM:
		return fromCUSUMConfig(name, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndicatorType, cfg.Type)
	}
}

// FromConfigs builds every configured indicator and rejects duplicate names.
func FromConfigs(cfgs []domain.IndicatorConfig) ([]Indicator, error) {
	out := make([]Indicator, 0, len(cfgs))
	for _, cfg := range cfgs {
		ind, err := FromConfig(cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, ind)
	}
	if err := checkNames(out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromRSIConfig creates RSI from config.
func fromRSIConfig(name string, cfg domain.IndicatorConfig) (*RSI, error) {
	period := intOr(cfg.Period, DefaultRSIPeriod)
	overbought := floatOr(cfg.Overbought, DefaultRSIOverbought)
	oversold := floatOr(cfg.Oversold, DefaultRSIOversold)

	if period < 2 {
		return nil, fmt.Errorf("%w: RSI period %d < 2", ErrInvalidPeriod, period)
	}
	if oversold < 0 || overbought > 100 || oversold >= overbought {
		return nil, fmt.Errorf("%w: RSI needs 0 <= oversold < overbought <= 100, got %g/%g", ErrInvalidThreshold, oversold, overbought)
	}

	return NewRSI(name, period, overbought, oversold), nil
}

// fromMACDConfig creates MACD from config.
func fromMACDConfig(name string, cfg domain.IndicatorConfig) (*MACD, error) {
	fast := intOr(cfg.FastPeriod, DefaultMACDFast)
	slow := intOr(cfg.SlowPeriod, DefaultMACDSlow)
	signal := intOr(cfg.SignalPeriod, DefaultMACDSignal)

	if fast < 2 || slow <= fast {
		return nil, fmt.Errorf("%w: MACD needs 2 <= fast < slow, got %d/%d", ErrInvalidPeriod, fast, slow)
	}
	if signal < 1 {
		return nil, fmt.Errorf("%w: MACD signal period %d < 1", ErrInvalidPeriod, signal)
	}

	return NewMACD(name, fast, slow, signal), nil
}

// fromCUSUMConfig creates CUSUM from config.
func fromCUSUMConfig(name string, cfg domain.IndicatorConfig) (*CUSUM, error) {
	threshold := floatOr(cfg.Threshold, DefaultCUSUMThreshold)
	drift := floatOr(cfg.Drift, DefaultCUSUMDrift)

	if !domain.IsFinite(threshold) || threshold <= 0 {
		return nil, fmt.Errorf("%w: CUSUM threshold %g must be > 0", ErrInvalidThreshold, threshold)
	}
	if !domain.IsFinite(drift) || drift < 0 {
		return nil, fmt.Errorf("%w: CUSUM drift %g must be >= 0", ErrInvalidThreshold, drift)
	}

	return NewCUSUM(name, threshold, drift), nil
}

// checkNames rejects empty and repeated indicator names.
func checkNames(indicators []Indicator) error {
	seen := make(map[string]struct{}, len(indicators))
	for _, ind := range indicators {
		name := ind.Name()
		if name == "" {
			return ErrEmptyName
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateIndicator, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
