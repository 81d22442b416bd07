package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/bootstrap"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/marketdata"
	"signal-backtest-lab/internal/storage"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML config file (defaults + environment when empty)")
	csvPath := flag.String("csv", "", "CSV file with OHLCV bars (required)")
	symbol := flag.String("symbol", "", "Symbol to store the bars under (required)")
	interval := flag.String("interval", "", "Interval of the bars in the file (required)")
	resample := flag.String("resample", "", "Aggregate to a coarser interval before storing, e.g. 1h")
	skipExisting := flag.Bool("skip-existing", false, "Drop bars whose timestamp is already stored instead of failing")
	migrate := flag.Bool("migrate", false, "Apply database migrations before ingesting")
	backend := flag.String("backend", "", "Storage backend: memory, postgres, clickhouse, sqlite")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	logLevel := flag.String("log-level", "", "Log level")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ingest] load config: %v\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Storage.Backend = *backend
		case "metrics-addr":
			cfg.App.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.App.LogLevel = *logLevel
		}
	})

	logger := bootstrap.Logger(cfg.App, "ingest")

	// Validate required flags
	if *csvPath == "" || *symbol == "" || *interval == "" {
		logger.Fatal().Msg("--csv, --symbol and --interval are required")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.Storage.Backend == config.BackendMemory {
		logger.Warn().Msg("memory backend selected; ingested bars are lost on exit")
	}

	ctx, cancel := bootstrap.SignalContext(logger)
	defer cancel()
	bootstrap.StartMetricsServer(ctx, cfg.App.MetricsAddr, logger)

	store, closeStore, err := bootstrap.OpenBarStore(ctx, cfg.Storage, bootstrap.StoreOptions{
		Migrate: *migrate,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}

	n, err := run(ctx, store, *csvPath, *symbol, *interval, *resample, *skipExisting, logger)
	closeStore()
	if err != nil {
		logger.Fatal().Err(err).Msg("ingest failed")
	}

	logger.Info().Int("bars", n).Msg("ingest complete")
}

// run loads, cleans, optionally resamples and stores one CSV file.
// Returns the number of bars written.
func run(
	ctx context.Context,
	store storage.BarStore,
	path, symbol, interval, resample string,
	skipExisting bool,
	logger zerolog.Logger,
) (int, error) {
	raw, err := marketdata.LoadCSVFile(path)
	if err != nil {
		return 0, err
	}
	bars := bootstrap.CleanBars(raw, path, logger)
	logger.Info().
		Str("file", path).
		Int("rows", len(raw)).
		Int("clean", len(bars)).
		Msg("bars loaded")

	if resample != "" {
		step, err := marketdata.ParseInterval(resample)
		if err != nil {
			return 0, err
		}
		bars, err = marketdata.Resample(bars, step)
		if err != nil {
			return 0, fmt.Errorf("resample to %s: %w", resample, err)
		}
		interval = resample
		logger.Info().Str("interval", interval).Int("bars", len(bars)).Msg("bars resampled")
	}

	if err := domain.ValidateBars(bars); err != nil {
		return 0, err
	}

	if skipExisting {
		bars, err = dropExisting(ctx, store, symbol, interval, bars)
		if err != nil {
			return 0, err
		}
	}
	if len(bars) == 0 {
		logger.Info().Msg("nothing to ingest")
		return 0, nil
	}

	if err := store.InsertBulk(ctx, symbol, interval, bars); err != nil {
		return 0, fmt.Errorf("insert %s/%s: %w", symbol, interval, err)
	}
	return len(bars), nil
}

// dropExisting removes bars whose timestamp is already stored for the series.
func dropExisting(ctx context.Context, store storage.BarStore, symbol, interval string, bars []*domain.Bar) ([]*domain.Bar, error) {
	if len(bars) == 0 {
		return bars, nil
	}

	existing, err := store.GetByTimeRange(ctx, symbol, interval, bars[0].TimestampMs, bars[len(bars)-1].TimestampMs)
	if err != nil {
		return nil, fmt.Errorf("read existing bars: %w", err)
	}
	seen := make(map[int64]struct{}, len(existing))
	for _, b := range existing {
		seen[b.TimestampMs] = struct{}{}
	}

	out := bars[:0:0]
	for _, b := range bars {
		if _, ok := seen[b.TimestampMs]; !ok {
			out = append(out, b)
		}
	}
	return out, nil
}
