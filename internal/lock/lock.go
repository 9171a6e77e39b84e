package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired means the lock stayed held for the whole wait window.
// The sync job treats it as "skip this cycle", not as a failure.
var ErrNotAcquired = fmt.Errorf("lock not acquired within wait window")

// Locker serializes sync job invocations.
type Locker interface {
	// Acquire blocks up to wait for the lock; on success the returned
	// release function must be called (safe to call once).
	Acquire(ctx context.Context, wait time.Duration) (release func(), err error)
}

// RedisLocker implements Locker with SET NX and a holder token, so a
// release never deletes a lock taken over by another invocation after
// expiry.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	poll   time.Duration
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{
		client: client,
		key:    key,
		ttl:    ttl,
		poll:   200 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, wait time.Duration) (func(), error) {
	if l.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock setnx: %w", err)
		}
		if ok {
			return func() { l.release(token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// release deletes the lock only while we still hold it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLocker) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
}

// MemoryLocker is the in-process fallback when redis is not configured.
// It gives the same bounded-wait semantics within a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{}
}

func (l *MemoryLocker) Acquire(ctx context.Context, wait time.Duration) (func(), error) {
	deadline := time.Now().Add(wait)
	for {
		l.mu.Lock()
		if !l.held {
			l.held = true
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					l.held = false
					l.mu.Unlock()
				})
			}, nil
		}
		l.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
