package shared

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained indicates another request holds the lock.
var ErrLockNotObtained = errors.New("lock not obtained")

// PurchaseOrderLockKey builds the lock key serialising mutations of one purchase order.
func PurchaseOrderLockKey(poID int64) string {
	return fmt.Sprintf("purchasing:po:%d:lock", poID)
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker obtains named locks.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker obtains locks shared by every process connected to the same Redis.
type RedisLocker struct {
	client  *redislock.Client
	retries int
	backoff time.Duration
}

// NewRedisLocker wraps a redis client.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(client), retries: 20, backoff: 50 * time.Millisecond}
}

// Obtain tries to take key, retrying with linear backoff before giving up.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("redis lock not initialised")
	}
	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// LocalLocker serialises callers within a single process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker constructs an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

// Obtain blocks until key is free or ctx is done. ttl is ignored.
func (l *LocalLocker) Obtain(ctx context.Context, key string, _ time.Duration) (Lock, error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()
	select {
	case slot <- struct{}{}:
		return localLock{slot: slot}, nil
	case <-ctx.Done():
		return nil, ErrLockNotObtained
	}
}

type localLock struct {
	slot chan struct{}
}

func (l localLock) Release(context.Context) error {
	select {
	case <-l.slot:
	default:
	}
	return nil
}
