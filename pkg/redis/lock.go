package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLock is a best-effort mutual exclusion for evaluation runs.
// The same contract/period must not be evaluated twice concurrently, since
// each run creates its own breach records.
// ⭐ SSOT: 실행 잠금은 여기서만
type RunLock struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// ReleaseFunc releases a held lock
type ReleaseFunc func(ctx context.Context) error

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// NewRunLock creates a new run lock helper
func NewRunLock(client *Client, prefix string, ttl time.Duration) *RunLock {
	return &RunLock{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Key returns the Redis key holding the lock for key
func (l *RunLock) Key(key string) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, key)
}

// Acquire tries to take the lock for key.
// When Redis is disabled the lock is always granted.
func (l *RunLock) Acquire(ctx context.Context, key string) (ReleaseFunc, bool, error) {
	noop := func(context.Context) error { return nil }
	if !l.client.Enabled() {
		return noop, true, nil
	}

	fullKey := l.Key(key)
	token := uuid.NewString()

	ok, err := l.client.Redis().SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return noop, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return noop, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client.Redis(), []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
