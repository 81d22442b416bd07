package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/storage"
)

// DefaultTTL bounds how long a cached series read is kept.
const DefaultTTL = time.Hour

// Config configures the Redis client.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key namespace, defaults to "sbl:"
	TTL      time.Duration // cached read lifetime, defaults to DefaultTTL
}

// NewClient creates a Redis client and pings the server.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// CachedBarStore is a read-through cache in front of another BarStore.
//
// Every series has a version counter. Reads are cached under the current
// version and InsertBulk bumps it, so a write invalidates old reads
// without deleting keys. Redis failures on the read path fall through
// to the backing store.
type CachedBarStore struct {
	client *goredis.Client
	inner  storage.BarStore
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedBarStore wraps inner with a Redis cache.
func NewCachedBarStore(client *goredis.Client, inner storage.BarStore, cfg Config, logger zerolog.Logger) *CachedBarStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "sbl:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedBarStore{
		client: client,
		inner:  inner,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// Compile-time interface check.
var _ storage.BarStore = (*CachedBarStore)(nil)

// InsertBulk writes through to the backing store, then invalidates the series.
//
// Once the backing insert has committed, invalidation failures are logged and
// never returned. If the version bump fails the series' data keys are deleted
// instead. If that fails too, cached reads may return the pre-insert bars
// until their TTL expires.
func (s *CachedBarStore) InsertBulk(ctx context.Context, symbol, interval string, bars []*domain.Bar) error {
	if err := s.inner.InsertBulk(ctx, symbol, interval, bars); err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}

	err := s.client.Incr(ctx, s.versionKey(symbol, interval)).Err()
	if err == nil {
		return nil
	}
	s.logger.Warn().Err(err).Str("symbol", symbol).Str("interval", interval).
		Msg("redis version bump failed, deleting cached series")

	deleted, err := s.purge(ctx, symbol, interval)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Str("interval", interval).Dur("ttl", s.ttl).
			Msg("cached series not invalidated, stale reads possible until ttl")
		return nil
	}
	s.logger.Info().Str("symbol", symbol).Str("interval", interval).Int("keys", deleted).
		Msg("cached series deleted")
	return nil
}

// purge deletes every cached read of a series across all versions.
func (s *CachedBarStore) purge(ctx context.Context, symbol, interval string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	pattern := s.prefix + "bars:" + symbol + ":" + interval + ":v*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("delete cached series: %w", err)
			}
			deleted += len(keys)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// GetBySeries reads the whole series through the cache.
func (s *CachedBarStore) GetBySeries(ctx context.Context, symbol, interval string) ([]*domain.Bar, error) {
	return s.readThrough(ctx, symbol, interval, "all", func() ([]*domain.Bar, error) {
		return s.inner.GetBySeries(ctx, symbol, interval)
	})
}

// GetByTimeRange reads [start, end] through the cache.
func (s *CachedBarStore) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]*domain.Bar, error) {
	suffix := "range:" + strconv.FormatInt(start, 10) + ":" + strconv.FormatInt(end, 10)
	return s.readThrough(ctx, symbol, interval, suffix, func() ([]*domain.Bar, error) {
		return s.inner.GetByTimeRange(ctx, symbol, interval, start, end)
	})
}

// ListSeries is not cached.
func (s *CachedBarStore) ListSeries(ctx context.Context) ([]storage.SeriesKey, error) {
	return s.inner.ListSeries(ctx)
}

func (s *CachedBarStore) readThrough(
	ctx context.Context,
	symbol, interval, suffix string,
	load func() ([]*domain.Bar, error),
) ([]*domain.Bar, error) {
	version, err := s.version(ctx, symbol, interval)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("redis version lookup failed, bypassing cache")
		return load()
	}
	key := s.dataKey(symbol, interval, version, suffix)

	payload, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var bars []*domain.Bar
		if err := json.Unmarshal(payload, &bars); err == nil {
			observability.RecordCacheLookup(true)
			return bars, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case !errors.Is(err, goredis.Nil):
		s.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
	}
	observability.RecordCacheLookup(false)

	bars, err := load()
	if err != nil {
		return nil, err
	}

	payload, err = json.Marshal(bars)
	if err != nil {
		return nil, fmt.Errorf("encode cached bars: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}

	return bars, nil
}

// version returns the series' current cache version, "0" when never written.
func (s *CachedBarStore) version(ctx context.Context, symbol, interval string) (string, error) {
	v, err := s.client.Get(ctx, s.versionKey(symbol, interval)).Result()
	if errors.Is(err, goredis.Nil) {
		return "0", nil
	}
	return v, err
}

func (s *CachedBarStore) versionKey(symbol, interval string) string {
	return s.prefix + "bars:ver:" + symbol + ":" + interval
}

func (s *CachedBarStore) dataKey(symbol, interval, version, suffix string) string {
	return s.prefix + "bars:" + symbol + ":" + interval + ":v" + version + ":" + suffix
}
