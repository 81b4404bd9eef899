package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/rshade/ghgfocus/internal/logging"
)

// Locker serializes sync runs per key. Lock blocks or fails while another
// holder has the key; the returned function releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LocalLocker serializes runs inside one process. Waiters block until the
// key is free or their context ends.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

// Lock waits for key.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DefaultLockPrefix namespaces sync lock keys in Redis.
const DefaultLockPrefix = "ghgfocus:sync:"

// RedisLocker serializes runs across processes with a Redis lock. A held
// lock is refreshed every half TTL until released, so long runs keep it.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	prefix string
}

// NewRedisLocker returns a locker over client. With wait zero a busy key
// fails at once with ErrSyncInProgress; otherwise Lock retries for up to wait.
func NewRedisLocker(client redis.Scripter, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: redislock.New(client),
		ttl:    ttl,
		wait:   wait,
		prefix: DefaultLockPrefix,
	}
}

// DialRedis connects to Redis and checks the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Lock obtains the Redis lock for key.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "syncer").
		Str("lock_key", l.prefix+key).
		Logger()

	opts := &redislock.Options{}
	if l.wait > 0 {
		const step = 100 * time.Millisecond
		opts.RetryStrategy = redislock.LimitRetry(redislock.LinearBackoff(step), int(l.wait/step))
	}

	lock, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrSyncInProgress, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtaining sync lock %s: %w", key, err)
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(l.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if refreshErr := lock.Refresh(context.Background(), l.ttl, nil); refreshErr != nil {
					logger.Warn().Err(refreshErr).Msg("refreshing sync lock failed")
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if releaseErr := lock.Release(releaseCtx); releaseErr != nil &&
				!errors.Is(releaseErr, redislock.ErrLockNotHeld) {
				logger.Warn().Err(releaseErr).Msg("releasing sync lock failed")
			}
		})
	}, nil
}
