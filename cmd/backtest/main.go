package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/backtest"
	"signal-backtest-lab/internal/bootstrap"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/indicator"
	"signal-backtest-lab/internal/marketdata"
	"signal-backtest-lab/internal/orchestrator"
	"signal-backtest-lab/internal/reporting"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML config file (defaults + environment when empty)")
	symbol := flag.String("symbol", "", "Symbol to backtest")
	interval := flag.String("interval", "", "Bar interval, e.g. 1m, 1h, 1d")
	csvPath := flag.String("csv", "", "Read bars from a CSV file instead of the store")
	fromTime := flag.String("from-time", "", "Start time (RFC3339), inclusive")
	toTime := flag.String("to-time", "", "End time (RFC3339), inclusive")
	all := flag.Bool("all", false, "Backtest every stored series (optionally filtered by --symbol/--interval)")

	// Backtest parameters
	capital := flag.Float64("capital", 0, "Initial capital")
	size := flag.Float64("position-size", 0, "Fraction of capital per entry, (0, 1]")
	stopLoss := flag.Float64("stop-loss", 0, "Fractional stop-loss threshold")
	takeProfit := flag.Float64("take-profit", 0, "Fractional take-profit threshold")
	thresholdMode := flag.String("threshold-mode", "", "literal or direction_adjusted")
	endOfData := flag.String("end-of-data", "", "force_close or leave_open")

	// Infrastructure
	backend := flag.String("backend", "", "Storage backend: memory, postgres, clickhouse, sqlite")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	logLevel := flag.String("log-level", "", "Log level")

	// Output
	format := flag.String("format", "markdown", "Output format: markdown or json")
	tradesCSV := flag.String("trades-csv", "", "Write the trade log to this CSV file")
	equityCSV := flag.String("equity-csv", "", "Write the equity curve to this CSV file")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[backtest] load config: %v\n", err)
		os.Exit(1)
	}

	// Flags override file and environment values
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "capital":
			cfg.Backtest.InitialCapital = *capital
		case "position-size":
			cfg.Backtest.PositionSize = *size
		case "stop-loss":
			cfg.Backtest.StopLoss = *stopLoss
		case "take-profit":
			cfg.Backtest.TakeProfit = *takeProfit
		case "threshold-mode":
			cfg.Backtest.ThresholdMode = *thresholdMode
		case "end-of-data":
			cfg.Backtest.EndOfData = *endOfData
		case "backend":
			cfg.Storage.Backend = *backend
		case "metrics-addr":
			cfg.App.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.App.LogLevel = *logLevel
		}
	})

	logger := bootstrap.Logger(cfg.App, "backtest")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if *format != "markdown" && *format != "json" {
		logger.Fatal().Str("format", *format).Msg("format must be markdown or json")
	}

	indicators, err := indicator.FromConfigs(cfg.IndicatorConfigs())
	if err != nil {
		logger.Fatal().Err(err).Msg("build indicators")
	}

	ctx, cancel := bootstrap.SignalContext(logger)
	defer cancel()
	bootstrap.StartMetricsServer(ctx, cfg.App.MetricsAddr, logger)

	// Batch mode
	if *all {
		if err := runAll(ctx, cfg, indicators, *symbol, *interval, *format, logger); err != nil {
			logger.Fatal().Err(err).Msg("batch failed")
		}
		return
	}

	var res *backtest.Result
	if *csvPath != "" {
		res, err = runCSV(ctx, cfg, indicators, *csvPath, *symbol, *interval, logger)
	} else {
		res, err = runStore(ctx, cfg, indicators, *symbol, *interval, *fromTime, *toTime, logger)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("backtest failed")
	}

	report := reporting.NewGenerator().Generate(res, indicator.Names(indicators))
	if *format == "json" {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Print(reporting.RenderMarkdown(report))
	}

	if *tradesCSV != "" {
		if err := os.WriteFile(*tradesCSV, []byte(reporting.RenderTradesCSV(res.Trades)), 0o644); err != nil {
			logger.Fatal().Err(err).Msg("write trades csv")
		}
	}
	if *equityCSV != "" {
		if err := os.WriteFile(*equityCSV, []byte(reporting.RenderEquityCSV(res.Equity)), 0o644); err != nil {
			logger.Fatal().Err(err).Msg("write equity csv")
		}
	}
}

// runCSV backtests a cleaned CSV file without touching the store.
func runCSV(
	ctx context.Context,
	cfg *config.Config,
	indicators []indicator.Indicator,
	path, symbol, interval string,
	logger zerolog.Logger,
) (*backtest.Result, error) {
	bars, err := marketdata.LoadCSVFile(path)
	if err != nil {
		return nil, err
	}
	bars = bootstrap.CleanBars(bars, path, logger)

	if symbol == "" {
		symbol = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	logger.Info().Str("file", path).Int("bars", len(bars)).Msg("running backtest")
	return backtest.Simulate(ctx, backtest.Input{
		Symbol:     symbol,
		Interval:   interval,
		Bars:       bars,
		Indicators: indicators,
		Config:     cfg.BacktestConfig(),
	}, backtest.Options{Logger: logger})
}

// runStore backtests one stored series.
func runStore(
	ctx context.Context,
	cfg *config.Config,
	indicators []indicator.Indicator,
	symbol, interval, fromTime, toTime string,
	logger zerolog.Logger,
) (*backtest.Result, error) {
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("--symbol and --interval are required without --csv or --all")
	}

	startMs, endMs, err := parseRange(fromTime, toTime)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := bootstrap.OpenBarStore(ctx, cfg.Storage, bootstrap.StoreOptions{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	logger.Info().Str("symbol", symbol).Str("interval", interval).Msg("running backtest")
	runner := backtest.NewRunner(backtest.RunnerOptions{Store: store, Logger: logger})
	return runner.Run(ctx, backtest.Request{
		Symbol:     symbol,
		Interval:   interval,
		StartMs:    startMs,
		EndMs:      endMs,
		Config:     cfg.BacktestConfig(),
		Indicators: indicators,
	})
}

// runAll backtests every stored series and prints one summary row per series.
func runAll(
	ctx context.Context,
	cfg *config.Config,
	indicators []indicator.Indicator,
	symbol, interval, format string,
	logger zerolog.Logger,
) error {
	store, closeStore, err := bootstrap.OpenBarStore(ctx, cfg.Storage, bootstrap.StoreOptions{Logger: logger})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	var symbols []string
	if symbol != "" {
		symbols = strings.Split(symbol, ",")
	}

	result, err := orchestrator.New(orchestrator.Options{
		Store:      store,
		Config:     cfg.BacktestConfig(),
		Indicators: indicators,
		Symbols:    symbols,
		Interval:   interval,
		Logger:     logger,
	}).Run(ctx)
	if err != nil {
		return err
	}

	if format == "json" {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println()
	fmt.Println("=== Batch Summary ===")
	fmt.Printf("Series Processed:  %d\n", result.SeriesProcessed)
	fmt.Printf("Trades Created:    %d\n", result.TradesCreated)
	fmt.Printf("Open Positions:    %d\n", result.OpenPositions)
	fmt.Printf("Errors:            %d\n", len(result.Errors))
	fmt.Println()

	fmt.Printf("%-12s %-8s %7s %9s %10s %9s %10s\n", "SYMBOL", "INTERVAL", "TRADES", "WIN RATE", "RETURN", "SHARPE", "MAX DD")
	for _, r := range result.Results {
		m := r.Metrics
		fmt.Printf("%-12s %-8s %7d %8.2f%% %9.2f%% %9.4f %9.2f%%\n",
			r.Symbol, r.Interval, m.TotalTrades, m.WinRate*100, m.TotalReturn*100, m.SharpeRatio, m.MaxDrawdown*100)
	}
	for _, e := range result.Errors {
		fmt.Printf("ERROR: %s\n", e)
	}
	return nil
}

// parseRange converts optional RFC3339 bounds to Unix ms. Both or neither must be set.
func parseRange(fromTime, toTime string) (int64, int64, error) {
	if fromTime == "" && toTime == "" {
		return 0, 0, nil
	}
	if fromTime == "" || toTime == "" {
		return 0, 0, fmt.Errorf("--from-time and --to-time must be specified together")
	}

	from, err := time.Parse(time.RFC3339, fromTime)
	if err != nil {
		return 0, 0, fmt.Errorf("parse from-time: %w", err)
	}
	to, err := time.Parse(time.RFC3339, toTime)
	if err != nil {
		return 0, 0, fmt.Errorf("parse to-time: %w", err)
	}
	if to.Before(from) {
		return 0, 0, fmt.Errorf("to-time %s is before from-time %s", toTime, fromTime)
	}
	return from.UnixMilli(), to.UnixMilli(), nil
}
