package recorder

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// leaseTTL bounds how long a Redis-backed lease survives without renewal,
// so a crashed recorder process does not wedge the run namespace forever.
const leaseTTL = 30 * time.Second

// RedisLock is a Locker backed by a Redis `SET ... NX` lease, for
// deployments running multiple recorder processes against a shared run
// namespace (e.g. horizontally scaled agent workers). The lease is
// renewed for the duration of the held run and released on Stop.
type RedisLock struct {
	client *redis.Client
	prefix string

	mu      sync.Mutex
	cancel  func()
	runID   string
}

// NewRedisLock creates a RedisLock against the given client. Keys are
// namespaced under prefix (default "tracecore:lock:" if empty).
func NewRedisLock(client *redis.Client, prefix string) *RedisLock {
	if prefix == "" {
		prefix = "tracecore:lock:"
	}
	return &RedisLock{client: client, prefix: prefix}
}

func (l *RedisLock) key(runID string) string { return l.prefix + runID }

func (l *RedisLock) Acquire(ctx context.Context, runID string) error {
	ok, err := l.client.SetNX(ctx, l.key(runID), "1", leaseTTL).Result()
	if err != nil {
		return &IoError{Op: "redis_lock_acquire", Err: err}
	}
	if !ok {
		return ErrAlreadyActive
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.cancel = cancel
	l.runID = runID
	l.mu.Unlock()

	go l.renew(renewCtx, runID)
	return nil
}

func (l *RedisLock) renew(ctx context.Context, runID string) {
	ticker := time.NewTicker(leaseTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.client.Expire(ctx, l.key(runID), leaseTTL).Err(); err != nil {
				log.Printf("recorder: failed to renew distributed lock for %s: %v", runID, err)
			}
		}
	}
}

func (l *RedisLock) Release(ctx context.Context, runID string) error {
	l.mu.Lock()
	if l.cancel != nil && l.runID == runID {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()

	if err := l.client.Del(ctx, l.key(runID)).Err(); err != nil {
		return &IoError{Op: "redis_lock_release", Err: err}
	}
	return nil
}
