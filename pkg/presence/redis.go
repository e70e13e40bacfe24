package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Env constants for the Redis-backed presence store.
const (
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvPresenceTTL   = "REDIS_PRESENCE_TTL"
)

// keyPrefix namespaces presence entries in a shared Redis instance.
const keyPrefix = "sensor:presence:"

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PresenceTTL time.Duration
}

// LoadRedisConfigFromEnv loads the Redis configuration from environment
// variables. An empty Addr means no Redis is configured and callers should
// fall back to the in-memory store.
func LoadRedisConfigFromEnv() *RedisConfig {
	cfg := &RedisConfig{
		Addr:        os.Getenv(EnvRedisAddr),
		Password:    os.Getenv(EnvRedisPassword),
		PresenceTTL: DefaultTTL,
	}
	if v := os.Getenv(EnvPresenceTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			cfg.PresenceTTL = d
		} else {
			log.Printf("presence: invalid %s %q, using default", EnvPresenceTTL, v)
		}
	}
	return cfg
}

// RedisStore is a distributed implementation of Store using Redis. Entries
// are written with a TTL so presence expires server-side and survives
// consumer restarts.
type RedisStore struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	ttl         time.Duration
}

// NewRedisStore creates and connects a new RedisStore.
func NewRedisStore(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis for presence store: %w", err)
	}
	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis for presence store.")

	ttl := cfg.PresenceTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisPresenceStore").Logger(),
		ttl:         ttl,
	}, nil
}

// Mark marshals the observation to JSON and stores it in Redis with a TTL.
func (s *RedisStore) Mark(ctx context.Context, obs Observation) error {
	jsonData, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal presence data for sensor %s: %w", obs.SensorID, err)
	}
	key := keyPrefix + obs.SensorID
	if err := s.redisClient.Set(ctx, key, jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set presence in redis for sensor %s: %w", obs.SensorID, err)
	}
	return nil
}

// List scans the presence keyspace and returns the unexpired observations,
// ordered by sensor id.
func (s *RedisStore) List(ctx context.Context) ([]Observation, error) {
	var observations []Observation

	iter := s.redisClient.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		cachedData, err := s.redisClient.Get(ctx, iter.Val()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Expired between scan and get.
				continue
			}
			return nil, fmt.Errorf("redis get failed for key %s: %w", iter.Val(), err)
		}
		var obs Observation
		if err := json.Unmarshal([]byte(cachedData), &obs); err != nil {
			s.logger.Warn().Err(err).Str("key", iter.Val()).Msg("Skipping undecodable presence entry.")
			continue
		}
		observations = append(observations, obs)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}

	sort.Slice(observations, func(i, j int) bool {
		return observations[i].SensorID < observations[j].SensorID
	})
	return observations, nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	if s.redisClient != nil {
		return s.redisClient.Close()
	}
	return nil
}
