// Package bootstrap wires configuration into the stores, logger and
// metrics endpoint shared by the command-line tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/logging"
	"signal-backtest-lab/internal/marketdata"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/storage"
	chstore "signal-backtest-lab/internal/storage/clickhouse"
	"signal-backtest-lab/internal/storage/memory"
	"signal-backtest-lab/internal/storage/migrations"
	pgstore "signal-backtest-lab/internal/storage/postgres"
	rediscache "signal-backtest-lab/internal/storage/redis"
	sqlitestore "signal-backtest-lab/internal/storage/sqlite"
)

// CleanBars runs marketdata.CleanReport and warns when rows were discarded.
// Each dropped row is logged at debug level with its input position.
func CleanBars(bars []*domain.Bar, source string, logger zerolog.Logger) []*domain.Bar {
	clean, dropped := marketdata.CleanReport(bars)
	if len(dropped) == 0 {
		return clean
	}

	byReason := zerolog.Dict()
	counts := make(map[string]int, 3)
	for _, d := range dropped {
		counts[d.Reason]++
		logger.Debug().
			Str("source", source).
			Int("row", d.Index).
			Int64("timestamp_ms", d.TimestampMs).
			Str("field", d.Field).
			Str("reason", d.Reason).
			Msg("bar dropped")
	}
	for _, reason := range []string{marketdata.DropNilRow, marketdata.DropNonFinite, marketdata.DropDuplicateTime} {
		if n := counts[reason]; n > 0 {
			byReason.Int(reason, n)
		}
	}

	first := dropped[0]
	logger.Warn().
		Str("source", source).
		Int("rows", len(bars)).
		Int("dropped", len(dropped)).
		Dict("reasons", byReason).
		Int("first_row", first.Index).
		Str("first_reason", first.Reason).
		Msg("bars dropped while cleaning")
	return clean
}

// Logger builds the process logger from the app section and tags it with the tool name.
func Logger(app config.App, component string) zerolog.Logger {
	return logging.New(app.LogFormat, app.LogLevel).With().Str("component", component).Logger()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// MetricsMux serves Prometheus metrics and a health check.
func MetricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// StartMetricsServer serves MetricsMux on addr until ctx is done.
// Returns nil without starting anything when addr is empty.
func StartMetricsServer(ctx context.Context, addr string, logger zerolog.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           MetricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv
}

// StoreOptions controls OpenBarStore.
type StoreOptions struct {
	Migrate bool // apply embedded migrations for postgres and clickhouse; sqlite is always migrated
	Logger  zerolog.Logger
}

// OpenBarStore opens the configured backend, wraps it with query metrics and,
// when a Redis address is configured, a read-through cache. The returned
// closer releases every connection and is safe to call once.
func OpenBarStore(ctx context.Context, cfg config.Storage, opts StoreOptions) (storage.BarStore, func(), error) {
	var (
		inner   storage.BarStore
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Backend {
	case config.BackendMemory:
		inner = memory.NewBarStore()

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		if opts.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		inner = pgstore.NewBarStore(pool)

	case config.BackendClickHouse:
		var (
			conn *chstore.Conn
			err  error
		)
		if opts.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
		}
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { conn.Close() })
		inner = chstore.NewBarStore(conn)

	case config.BackendSQLite:
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		if err := migrations.RunSqliteMigrations(ctx, db); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("sqlite migrations: %w", err)
		}
		inner = sqlitestore.NewBarStore(db)

	default:
		return nil, nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.Backend)
	}

	var store storage.BarStore = storage.Instrument(cfg.Backend, inner)

	if cfg.Redis.Addr != "" {
		rcfg := rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		}
		client, err := rediscache.NewClient(ctx, rcfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { client.Close() })
		store = rediscache.NewCachedBarStore(client, store, rcfg, opts.Logger)
	}

	opts.Logger.Debug().
		Str("backend", cfg.Backend).
		Bool("cache", cfg.Redis.Addr != "").
		Msg("bar store opened")

	return store, closeAll, nil
}
