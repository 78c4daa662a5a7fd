package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker keeps two replicas from running the same batch job at once.
type Locker interface {
	// TryAcquire never blocks. acquired is false when another holder owns key.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// LocalLock is for single-instance deployments: every attempt succeeds.
type LocalLock struct{}

func (LocalLock) TryAcquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// release only deletes the key while it still carries our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLock is SET NX PX with a random token per holder.
type RedisLock struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisLock(rdb redis.UniversalClient, prefix string) *RedisLock {
	if prefix == "" {
		prefix = "academia:lock:"
	}
	return &RedisLock{rdb: rdb, prefix: prefix}
}

// NewRedisLockFromURL parses a redis:// URL (REDIS_URL).
func NewRedisLockFromURL(url string) (*RedisLock, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisLock(redis.NewClient(opt), ""), nil
}

func (l *RedisLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	k := l.prefix + key
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// the caller's ctx may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(ctx, l.rdb, []string{k}, token).Err()
	}
	return release, true, nil
}

func (l *RedisLock) Close() error { return l.rdb.Close() }
