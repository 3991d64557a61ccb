package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ldwatch/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestRunLock_Disabled(t *testing.T) {
	lock := NewRunLock(disabledClient(t), "test", time.Minute)

	release, acquired, err := lock.Acquire(context.Background(), "c-1")
	require.NoError(t, err)
	assert.True(t, acquired, "lock must be granted when Redis is disabled")
	assert.NoError(t, release(context.Background()))
}

func TestRunLock_Key(t *testing.T) {
	lock := NewRunLock(disabledClient(t), "ldwatch", time.Minute)
	assert.Equal(t, "ldwatch:lock:c-1:2024-01", lock.Key("c-1:2024-01"))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", TTLShort))

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found, "expected cache miss when Redis disabled")
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestCacheKeys(t *testing.T) {
	start := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "evaluation:latest:c-42", LatestEvaluationKey("c-42"))
	assert.Equal(t, "evaluation:c-42:20251101T000000:20251201T000000", EvaluationRunKey("c-42", start, end))
}

func TestRunLock_Exclusive(t *testing.T) {
	if os.Getenv("REDIS_HOST") == "" {
		t.Skip("REDIS_HOST not set, skipping integration test")
	}

	client, err := New(&config.Config{Redis: config.RedisConfig{
		Host:    os.Getenv("REDIS_HOST"),
		Port:    "6379",
		Enabled: true,
	}})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	lock := NewRunLock(client, "ldwatch-test", 30*time.Second)
	key := "lock-" + time.Now().Format("150405.000000")

	release, acquired, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	require.True(t, acquired)

	_, again, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, again, "second acquire must fail while held")

	require.NoError(t, release(ctx))

	release2, reacquired, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, reacquired)
	require.NoError(t, release2(ctx))
}
