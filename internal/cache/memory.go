// Package cache memoizes severity predictions keyed by feature string.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ade-signal-mcp-server/internal/domain"
)

// Defaults applied when MemoryCache is built with zero values.
const (
	DefaultMaxItems = 10000
	DefaultTTL      = 24 * time.Hour
)

// MemoryCache is a bounded in-process LRU with per-entry expiry. It is safe
// for concurrent use.
type MemoryCache struct {
	lru    *expirable.LRU[string, domain.SeverityPrediction]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a memory cache holding at most maxItems predictions for ttl.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, domain.SeverityPrediction](maxItems, nil, ttl),
	}
}

// Get implements domain.PredictionCache.
func (c *MemoryCache) Get(_ context.Context, feature string) (domain.SeverityPrediction, bool, error) {
	prediction, ok := c.lru.Get(feature)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return prediction, ok, nil
}

// Set implements domain.PredictionCache.
func (c *MemoryCache) Set(_ context.Context, feature string, prediction domain.SeverityPrediction) error {
	c.lru.Add(feature, prediction)
	return nil
}

// Remove drops one feature from the cache.
func (c *MemoryCache) Remove(feature string) {
	c.lru.Remove(feature)
}

// Purge empties the cache.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Counts returns hits and misses since creation.
func (c *MemoryCache) Counts() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
