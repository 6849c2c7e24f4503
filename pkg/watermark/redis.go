package watermark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds configuration for the Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Key is the Redis key holding this source's watermark JSON, typically
	// namespaced by channel id.
	Key string
}

// RedisStore persists the watermark as a JSON value under a single key.
// SETs are atomic, so readers see whole snapshots. Watermarks are persisted
// without a TTL; expiring one would silently trigger a redundant backfill.
type RedisStore struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisStore creates and connects a RedisStore. It pings the server to
// ensure connectivity before returning.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	if cfg.Key == "" {
		return nil, errors.New("redis watermark key is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	return &RedisStore{
		client: rdb,
		key:    cfg.Key,
		logger: logger.With().Str("component", "WatermarkRedisStore").Str("key", cfg.Key).Logger(),
	}, nil
}

// Load fetches and decodes the watermark value. redis.Nil is the normal
// first-run case; other failures and malformed values are logged and degrade
// to the default watermark.
func (s *RedisStore) Load(ctx context.Context) Watermark {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("Failed to get watermark from Redis, using default watermark.")
		}
		return Watermark{}
	}

	var w Watermark
	if err := json.Unmarshal(data, &w); err != nil {
		s.logger.Warn().Err(err).Msg("Watermark value corrupt, using default watermark.")
		return Watermark{}
	}
	return w
}

// Save writes the full snapshot under the configured key.
func (s *RedisStore) Save(ctx context.Context, w Watermark) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal watermark: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write watermark to Redis.")
		return fmt.Errorf("redis set watermark %s: %w", s.key, err)
	}
	s.logger.Debug().Int64("last_processed_timestamp", w.LastProcessedTimestamp).Msg("Watermark saved.")
	return nil
}

// Update performs the read-merge-write cycle over the current snapshot.
func (s *RedisStore) Update(ctx context.Context, u Update) error {
	return s.Save(ctx, u.Apply(s.Load(ctx)))
}

// Close releases the Redis connection owned by this store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
