package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/backtest"
	"signal-backtest-lab/internal/bootstrap"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/indicator"
	"signal-backtest-lab/internal/marketdata"
	"signal-backtest-lab/internal/reporting"
	"signal-backtest-lab/internal/verification"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML config file (defaults + environment when empty)")
	symbol := flag.String("symbol", "", "Symbol to verify")
	interval := flag.String("interval", "", "Bar interval")
	csvPath := flag.String("csv", "", "Read bars from a CSV file instead of the store")
	runs := flag.Int("runs", 3, "Repeated runs compared against the reference run")
	backend := flag.String("backend", "", "Storage backend: memory, postgres, clickhouse, sqlite")
	logLevel := flag.String("log-level", "", "Log level")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[verify] load config: %v\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Storage.Backend = *backend
		case "log-level":
			cfg.App.LogLevel = *logLevel
		}
	})

	logger := bootstrap.Logger(cfg.App, "verify")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	indicators, err := indicator.FromConfigs(cfg.IndicatorConfigs())
	if err != nil {
		logger.Fatal().Err(err).Msg("build indicators")
	}

	ctx, cancel := bootstrap.SignalContext(logger)
	defer cancel()

	// Run verification: either a CSV file in memory or a stored series
	var report *verification.VerificationReport
	if *csvPath != "" {
		bars, err := marketdata.LoadCSVFile(*csvPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load csv")
		}
		report, err = verification.VerifyDeterminism(ctx, backtest.Input{
			Symbol:     *symbol,
			Interval:   *interval,
			Bars:       bootstrap.CleanBars(bars, *csvPath, logger),
			Indicators: indicators,
			Config:     cfg.BacktestConfig(),
		}, *runs, backtest.Options{Logger: zerolog.Nop()})
		if err != nil {
			logger.Fatal().Err(err).Msg("verification failed")
		}
	} else {
		if *symbol == "" || *interval == "" {
			logger.Fatal().Msg("--symbol and --interval are required without --csv")
		}

		store, closeStore, err := bootstrap.OpenBarStore(ctx, cfg.Storage, bootstrap.StoreOptions{Logger: logger})
		if err != nil {
			logger.Fatal().Err(err).Msg("open store")
		}

		verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
			Runner: backtest.NewRunner(backtest.RunnerOptions{Store: store, Logger: logger}),
			Logger: logger,
		})
		report, err = verifier.VerifySeries(ctx, backtest.Request{
			Symbol:     *symbol,
			Interval:   *interval,
			Config:     cfg.BacktestConfig(),
			Indicators: indicators,
		}, *runs)
		closeStore()
		if err != nil {
			logger.Fatal().Err(err).Msg("verification failed")
		}
	}

	// Output summary
	if *outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Print(reporting.RenderVerificationMarkdown(report))
	}

	if !report.Passed() {
		os.Exit(2)
	}
}
