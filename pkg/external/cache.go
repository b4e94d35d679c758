package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ade-signal-mcp-server/internal/domain"
)

const predictionKeyPrefix = "ade:prediction:"

// RedisPredictionCache is the shared, cross-process tier of the prediction cache.
type RedisPredictionCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// CachedPrediction represents a cached severity prediction with metadata
type CachedPrediction struct {
	Feature    string                    `json:"feature"`
	Prediction domain.SeverityPrediction `json:"prediction"`
	CachedAt   time.Time                 `json:"cached_at"`
	ExpiresAt  time.Time                 `json:"expires_at"`
}

// NewRedisPredictionCache connects to the Redis server named by config.RedisURL.
func NewRedisPredictionCache(config domain.CacheConfig) (*RedisPredictionCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPredictionCacheFromClient(client, config.DefaultTTL), nil
}

// NewRedisPredictionCacheFromClient wraps an existing client.
func NewRedisPredictionCacheFromClient(client *redis.Client, ttl time.Duration) *RedisPredictionCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPredictionCache{redis: client, defaultTTL: ttl}
}

// Get implements domain.PredictionCache.
func (c *RedisPredictionCache) Get(ctx context.Context, feature string) (domain.SeverityPrediction, bool, error) {
	key := predictionKey(feature)

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.SeverityPrediction{}, false, nil
	}
	if err != nil {
		return domain.SeverityPrediction{}, false, fmt.Errorf("failed to get cached prediction: %w", err)
	}

	var cached CachedPrediction
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return domain.SeverityPrediction{}, false, nil
	}
	if time.Now().After(cached.ExpiresAt) || cached.Feature != feature {
		c.redis.Del(ctx, key)
		return domain.SeverityPrediction{}, false, nil
	}

	return cached.Prediction, true, nil
}

// Set implements domain.PredictionCache.
func (c *RedisPredictionCache) Set(ctx context.Context, feature string, prediction domain.SeverityPrediction) error {
	now := time.Now()
	cached := CachedPrediction{
		Feature:    feature,
		Prediction: prediction,
		CachedAt:   now,
		ExpiresAt:  now.Add(c.defaultTTL),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction cache entry: %w", err)
	}
	return c.redis.Set(ctx, predictionKey(feature), data, c.defaultTTL).Err()
}

// Ping checks connectivity.
func (c *RedisPredictionCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection pool.
func (c *RedisPredictionCache) Close() error {
	return c.redis.Close()
}

func predictionKey(feature string) string {
	hash := sha256.Sum256([]byte(feature))
	return predictionKeyPrefix + hex.EncodeToString(hash[:])
}
