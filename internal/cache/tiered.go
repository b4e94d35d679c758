package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ade-signal-mcp-server/internal/domain"
	"github.com/ade-signal-mcp-server/internal/metrics"
)

// TieredCache checks the in-memory tier first and falls back to an optional
// remote tier (Redis). Remote hits are copied into memory. Remote errors are
// logged and treated as misses so a cache outage never fails an analysis.
type TieredCache struct {
	memory  *MemoryCache
	remote  domain.PredictionCache
	logger  *logrus.Logger
	metrics *metrics.Metrics

	stats   Stats
	statsMu sync.RWMutex
}

// Stats represents cache performance statistics
type Stats struct {
	MemoryHits   int64     `json:"memory_hits"`
	MemoryMisses int64     `json:"memory_misses"`
	RemoteHits   int64     `json:"remote_hits"`
	RemoteMisses int64     `json:"remote_misses"`
	RemoteErrors int64     `json:"remote_errors"`
	Entries      int       `json:"entries"`
	LastReset    time.Time `json:"last_reset"`
}

// NewTieredCache combines memory with remote. remote and m may be nil.
func NewTieredCache(memory *MemoryCache, remote domain.PredictionCache, logger *logrus.Logger, m *metrics.Metrics) (*TieredCache, error) {
	if memory == nil {
		return nil, fmt.Errorf("memory tier is required")
	}
	return &TieredCache{
		memory:  memory,
		remote:  remote,
		logger:  logger,
		metrics: m,
		stats:   Stats{LastReset: time.Now()},
	}, nil
}

// Get implements domain.PredictionCache.
func (t *TieredCache) Get(ctx context.Context, feature string) (domain.SeverityPrediction, bool, error) {
	if prediction, ok, _ := t.memory.Get(ctx, feature); ok {
		t.record(func(s *Stats) { s.MemoryHits++ })
		t.metrics.ObserveCacheLookup("memory", true)
		return prediction, true, nil
	}
	t.record(func(s *Stats) { s.MemoryMisses++ })
	t.metrics.ObserveCacheLookup("memory", false)

	if t.remote == nil {
		return domain.SeverityPrediction{}, false, nil
	}

	prediction, ok, err := t.remote.Get(ctx, feature)
	if err != nil {
		t.record(func(s *Stats) { s.RemoteErrors++ })
		t.logger.WithError(err).WithField("feature", feature).Warn("Remote prediction cache lookup failed")
		return domain.SeverityPrediction{}, false, nil
	}
	if !ok {
		t.record(func(s *Stats) { s.RemoteMisses++ })
		t.metrics.ObserveCacheLookup("redis", false)
		return domain.SeverityPrediction{}, false, nil
	}

	t.record(func(s *Stats) { s.RemoteHits++ })
	t.metrics.ObserveCacheLookup("redis", true)
	t.logger.WithFields(logrus.Fields{
		"feature":    feature,
		"cache_tier": "redis",
	}).Debug("Cache hit in Redis")

	// Populate memory cache for next time
	_ = t.memory.Set(ctx, feature, prediction)
	return prediction, true, nil
}

// Set implements domain.PredictionCache. The remote write error, if any, is returned
// after the memory tier has been updated.
func (t *TieredCache) Set(ctx context.Context, feature string, prediction domain.SeverityPrediction) error {
	_ = t.memory.Set(ctx, feature, prediction)
	if t.remote == nil {
		return nil
	}
	if err := t.remote.Set(ctx, feature, prediction); err != nil {
		t.record(func(s *Stats) { s.RemoteErrors++ })
		return fmt.Errorf("failed to write remote prediction cache: %w", err)
	}
	return nil
}

// Stats returns a snapshot of cache statistics.
func (t *TieredCache) Stats() Stats {
	t.statsMu.RLock()
	defer t.statsMu.RUnlock()
	stats := t.stats
	stats.Entries = t.memory.Len()
	return stats
}

func (t *TieredCache) record(update func(*Stats)) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	update(&t.stats)
}
