// Package config exposes the backtest lab configuration loaded from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/indicator"
	"signal-backtest-lab/internal/sweep"
)

// Storage backends
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
	BackendSQLite     = "sqlite"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// App captures process-wide runtime settings.
type App struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json | console
	MetricsAddr string `yaml:"metrics_addr"`
}

// Redis configures the optional bar cache. Disabled when Addr is empty.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// Storage selects and configures the bar store.
type Storage struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
	Redis         Redis  `yaml:"redis"`
}

// Backtest mirrors domain.BacktestConfig with YAML keys.
type Backtest struct {
	InitialCapital      float64 `yaml:"initial_capital"`
	PositionSize        float64 `yaml:"position_size"`
	StopLoss            float64 `yaml:"stop_loss"`
	TakeProfit          float64 `yaml:"take_profit"`
	ThresholdMode       string  `yaml:"threshold_mode"`
	EndOfData           string  `yaml:"end_of_data"`
	AnnualizationFactor float64 `yaml:"annualization_factor"`
}

// Indicator describes one active indicator. Omitted parameters take the indicator's defaults.
type Indicator struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`

	Period     *int     `yaml:"period"`
	Overbought *float64 `yaml:"overbought"`
	Oversold   *float64 `yaml:"oversold"`

	FastPeriod   *int `yaml:"fast_period"`
	SlowPeriod   *int `yaml:"slow_period"`
	SignalPeriod *int `yaml:"signal_period"`

	Threshold *float64 `yaml:"threshold"`
	Drift     *float64 `yaml:"drift"`
}

// Sweep holds the parameter grid and ranking settings.
type Sweep struct {
	StopLosses    []float64 `yaml:"stop_losses"`
	TakeProfits   []float64 `yaml:"take_profits"`
	PositionSizes []float64 `yaml:"position_sizes"`
	Parallelism   int       `yaml:"parallelism"`
	RankBy        string    `yaml:"rank_by"`
}

// Config collects every configuration leaf.
type Config struct {
	App        App         `yaml:"app"`
	Storage    Storage     `yaml:"storage"`
	Backtest   Backtest    `yaml:"backtest"`
	Indicators []Indicator `yaml:"indicators"`
	Sweep      Sweep       `yaml:"sweep"`
}

// Default returns the reference configuration: in-memory storage, default risk
// parameters and the RSI + MACD + CUSUM indicator set.
func Default() *Config {
	bt := domain.DefaultBacktestConfig()
	return &Config{
		App: App{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Storage: Storage{
			Backend:    BackendMemory,
			SQLitePath: "data/bars.db",
			Redis: Redis{
				Prefix: "sbl:",
				TTL:    time.Hour,
			},
		},
		Backtest: Backtest{
			InitialCapital:      bt.InitialCapital,
			PositionSize:        bt.PositionSize,
			StopLoss:            bt.StopLoss,
			TakeProfit:          bt.TakeProfit,
			ThresholdMode:       string(bt.ThresholdMode),
			EndOfData:           string(bt.EndOfData),
			AnnualizationFactor: bt.AnnualizationFactor,
		},
		Indicators: []Indicator{
			{Type: domain.IndicatorTypeRSI},
			{Type: domain.IndicatorTypeMACD},
			{Type: domain.IndicatorTypeCUSUM},
		},
		Sweep: Sweep{
			RankBy: sweep.KeySharpe,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and environment overrides. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort

	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides connection and logging settings from the environment.
func (c *Config) applyEnv() error {
	c.App.LogLevel = getEnv("SBL_LOG_LEVEL", c.App.LogLevel)
	c.App.MetricsAddr = getEnv("SBL_METRICS_ADDR", c.App.MetricsAddr)
	c.Storage.Backend = getEnv("SBL_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.PostgresDSN = getEnv("POSTGRES_DSN", c.Storage.PostgresDSN)
	c.Storage.ClickHouseDSN = getEnv("CLICKHOUSE_DSN", c.Storage.ClickHouseDSN)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.Redis.Addr = getEnv("REDIS_ADDR", c.Storage.Redis.Addr)
	c.Storage.Redis.Password = getEnv("REDIS_PASSWORD", c.Storage.Redis.Password)

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse REDIS_DB: %w", err)
		}
		c.Storage.Redis.DB = db
	}
	return nil
}

// Validate checks storage settings, the backtest parameters and the indicator set.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres backend requires postgres_dsn", ErrInvalidConfig)
		}
	case BackendClickHouse:
		if c.Storage.ClickHouseDSN == "" {
			return fmt.Errorf("%w: clickhouse backend requires clickhouse_dsn", ErrInvalidConfig)
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite backend requires sqlite_path", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	if err := c.BacktestConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(c.Indicators) == 0 {
		return fmt.Errorf("%w: no indicators configured", ErrInvalidConfig)
	}
	if _, err := indicator.FromConfigs(c.IndicatorConfigs()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.Sweep.RankBy {
	case "", sweep.KeySharpe, sweep.KeyTotalReturn, sweep.KeyMaxDrawdown:
	default:
		return fmt.Errorf("%w: unknown sweep rank_by %q", ErrInvalidConfig, c.Sweep.RankBy)
	}
	if c.Sweep.Parallelism < 0 {
		return fmt.Errorf("%w: sweep parallelism %d < 0", ErrInvalidConfig, c.Sweep.Parallelism)
	}
	return nil
}

// BacktestConfig converts the backtest section, filling unset policies.
func (c *Config) BacktestConfig() domain.BacktestConfig {
	b := c.Backtest
	return domain.BacktestConfig{
		InitialCapital:      b.InitialCapital,
		PositionSize:        b.PositionSize,
		StopLoss:            b.StopLoss,
		TakeProfit:          b.TakeProfit,
		ThresholdMode:       domain.ThresholdMode(b.ThresholdMode),
		EndOfData:           domain.EndOfDataPolicy(b.EndOfData),
		AnnualizationFactor: b.AnnualizationFactor,
	}.WithDefaults()
}

// IndicatorConfigs converts the indicator list.
func (c *Config) IndicatorConfigs() []domain.IndicatorConfig {
	out := make([]domain.IndicatorConfig, len(c.Indicators))
	for i, ind := range c.Indicators {
		out[i] = domain.IndicatorConfig{
			Type:         ind.Type,
			Name:         ind.Name,
			Period:       ind.Period,
			Overbought:   ind.Overbought,
			Oversold:     ind.Oversold,
			FastPeriod:   ind.FastPeriod,
			SlowPeriod:   ind.SlowPeriod,
			SignalPeriod: ind.SignalPeriod,
			Threshold:    ind.Threshold,
			Drift:        ind.Drift,
		}
	}
	return out
}

// SweepGrid converts the sweep section into a grid.
func (c *Config) SweepGrid() sweep.Grid {
	return sweep.Grid{
		StopLosses:    c.Sweep.StopLosses,
		TakeProfits:   c.Sweep.TakeProfits,
		PositionSizes: c.Sweep.PositionSizes,
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
