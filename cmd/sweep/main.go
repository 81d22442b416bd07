package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/backtest"
	"signal-backtest-lab/internal/bootstrap"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/indicator"
	"signal-backtest-lab/internal/marketdata"
	"signal-backtest-lab/internal/reporting"
	"signal-backtest-lab/internal/signal"
	"signal-backtest-lab/internal/sweep"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML config file (defaults + environment when empty)")
	symbol := flag.String("symbol", "", "Symbol to sweep")
	interval := flag.String("interval", "", "Bar interval")
	csvPath := flag.String("csv", "", "Read bars from a CSV file instead of the store")

	// Grid
	stopLosses := flag.String("stop-losses", "", "Comma-separated stop-loss values")
	takeProfits := flag.String("take-profits", "", "Comma-separated take-profit values")
	sizes := flag.String("position-sizes", "", "Comma-separated position sizes")
	parallelism := flag.Int("parallelism", 0, "Concurrent simulations (0 = GOMAXPROCS)")
	rankBy := flag.String("rank-by", "", "Ranking key: sharpe, total_return, max_drawdown")
	top := flag.Int("top", 0, "Print only the best N configurations (0 = all)")

	// Infrastructure
	backend := flag.String("backend", "", "Storage backend: memory, postgres, clickhouse, sqlite")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	logLevel := flag.String("log-level", "", "Log level")
	format := flag.String("format", "markdown", "Output format: markdown or json")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[sweep] load config: %v\n", err)
		os.Exit(1)
	}

	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		var err error
		switch f.Name {
		case "stop-losses":
			cfg.Sweep.StopLosses, err = parseFloats(*stopLosses)
		case "take-profits":
			cfg.Sweep.TakeProfits, err = parseFloats(*takeProfits)
		case "position-sizes":
			cfg.Sweep.PositionSizes, err = parseFloats(*sizes)
		case "parallelism":
			cfg.Sweep.Parallelism = *parallelism
		case "rank-by":
			cfg.Sweep.RankBy = *rankBy
		case "backend":
			cfg.Storage.Backend = *backend
		case "metrics-addr":
			cfg.App.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.App.LogLevel = *logLevel
		}
		if err != nil && flagErr == nil {
			flagErr = fmt.Errorf("--%s: %w", f.Name, err)
		}
	})

	logger := bootstrap.Logger(cfg.App, "sweep")

	if flagErr != nil {
		logger.Fatal().Err(flagErr).Msg("invalid flag")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if *symbol == "" && *csvPath == "" {
		logger.Fatal().Msg("--symbol or --csv is required")
	}
	rank := cfg.Sweep.RankBy
	if rank == "" {
		rank = sweep.KeySharpe
	}

	indicators, err := indicator.FromConfigs(cfg.IndicatorConfigs())
	if err != nil {
		logger.Fatal().Err(err).Msg("build indicators")
	}

	ctx, cancel := bootstrap.SignalContext(logger)
	defer cancel()
	bootstrap.StartMetricsServer(ctx, cfg.App.MetricsAddr, logger)

	bars, err := loadBars(ctx, cfg, *csvPath, *symbol, *interval, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("load bars")
	}

	// Indicators run once; every grid point reuses the composite signal.
	analysis, err := signal.Analyze(ctx, bars, indicators)
	if err != nil {
		logger.Fatal().Err(err).Msg("analyze bars")
	}

	grid := cfg.SweepGrid()
	logger.Info().Int("configs", grid.Size()).Int("bars", len(bars)).Msg("sweep started")

	outcomes, err := sweep.Run(ctx, analysis, cfg.BacktestConfig(), grid, cfg.Sweep.Parallelism, sweep.Options{
		Symbol:     *symbol,
		Interval:   *interval,
		Indicators: indicators,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("sweep failed")
	}

	ranked, err := sweep.Best(outcomes, rank)
	if err != nil {
		logger.Fatal().Err(err).Msg("rank outcomes")
	}
	if *top > 0 && *top < len(ranked) {
		ranked = ranked[:*top]
	}

	report := reporting.NewGenerator().GenerateSweep(*symbol, *interval, rank, ranked)
	if *format == "json" {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Print(reporting.RenderSweepMarkdown(report))
	}
}

// loadBars reads a cleaned CSV file, or the whole stored series when csvPath is empty.
func loadBars(ctx context.Context, cfg *config.Config, csvPath, symbol, interval string, logger zerolog.Logger) ([]*domain.Bar, error) {
	if csvPath != "" {
		bars, err := marketdata.LoadCSVFile(csvPath)
		if err != nil {
			return nil, err
		}
		return bootstrap.CleanBars(bars, csvPath, logger), nil
	}

	store, closeStore, err := bootstrap.OpenBarStore(ctx, cfg.Storage, bootstrap.StoreOptions{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	runner := backtest.NewRunner(backtest.RunnerOptions{Store: store, Logger: logger})
	return runner.LoadBars(ctx, symbol, interval, 0, 0)
}

// parseFloats parses a comma-separated list of numbers.
func parseFloats(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
