package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/backtest"
	"signal-backtest-lab/internal/observability"
)

// KindVerify is the run kind reported to observability.
const KindVerify = "verify"

// ReplayVerifier checks determinism for series held in a bar store.
// Bars are loaded once so every replay sees the same input.
type ReplayVerifier struct {
	runner *backtest.Runner
	logger zerolog.Logger
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	Runner *backtest.Runner
	Logger zerolog.Logger
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		runner: opts.Runner,
		logger: opts.Logger,
	}
}

// VerifySeries loads the requested series and replays it runs times.
func (v *ReplayVerifier) VerifySeries(ctx context.Context, req backtest.Request, runs int) (report *VerificationReport, err error) {
	start := time.Now()
	defer func() { observability.RecordRun(KindVerify, err, time.Since(start)) }()

	// 1. Load bars once
	bars, err := v.runner.LoadBars(ctx, req.Symbol, req.Interval, req.StartMs, req.EndMs)
	if err != nil {
		return nil, err
	}

	// 2. Replay
	report, err = VerifyDeterminism(ctx, backtest.Input{
		Symbol:     req.Symbol,
		Interval:   req.Interval,
		Bars:       bars,
		Indicators: req.Indicators,
		Config:     req.Config,
	}, runs, backtest.Options{Logger: zerolog.Nop()})
	if err != nil {
		return nil, fmt.Errorf("verify %s/%s: %w", req.Symbol, req.Interval, err)
	}

	// 3. Log divergences
	for _, r := range report.Results {
		for _, d := range r.Divergences {
			v.logger.Warn().
				Int("run", r.Run).
				Str("field", d.Field).
				Interface("expected", d.Expected).
				Interface("actual", d.Actual).
				Msg("replay divergence")
		}
	}

	v.logger.Info().
		Str("symbol", req.Symbol).
		Str("interval", req.Interval).
		Int("runs", report.TotalRuns).
		Int("divergent", report.DivergentRuns).
		Bool("passed", report.Passed()).
		Msg("verification complete")

	return report, nil
}
