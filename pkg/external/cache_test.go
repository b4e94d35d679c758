package external

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ade-signal-mcp-server/internal/domain"
)

func TestPredictionKey(t *testing.T) {
	key := predictionKey("aspirin nausea")
	assert.True(t, strings.HasPrefix(key, predictionKeyPrefix))
	assert.Len(t, key, len(predictionKeyPrefix)+64)
	assert.Equal(t, key, predictionKey("aspirin nausea"))
	assert.NotEqual(t, key, predictionKey("aspirin rash"))
}

func TestNewRedisPredictionCache_InvalidURL(t *testing.T) {
	_, err := NewRedisPredictionCache(domain.CacheConfig{RedisURL: "://not-a-url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}

func TestRedisPredictionCache_Integration(t *testing.T) {
	if os.Getenv("ADE_INTEGRATION") != "1" {
		t.Skip("ADE_INTEGRATION not set, skipping Redis integration test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	cache, err := NewRedisPredictionCache(domain.CacheConfig{
		RedisURL:   "redis://" + endpoint + "/0",
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)
	defer cache.Close()

	_, ok, err := cache.Get(ctx, "aspirin nausea")
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.SeverityPrediction{Severity: domain.SeverityCritical, Confidence: 0.88}
	require.NoError(t, cache.Set(ctx, "aspirin nausea", want))

	got, ok, err := cache.Get(ctx, "aspirin nausea")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	// Corrupted entries are dropped and reported as misses
	raw := redis.NewClient(&redis.Options{Addr: endpoint})
	defer raw.Close()
	require.NoError(t, raw.Set(ctx, predictionKey("bad entry"), "{", time.Minute).Err())

	_, ok, err = cache.Get(ctx, "bad entry")
	require.NoError(t, err)
	assert.False(t, ok)
}
