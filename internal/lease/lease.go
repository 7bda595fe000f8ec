// Package lease keeps two workers from processing the same job at once when
// the broker redelivers a message that is still being handled.
package lease

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrHeld means another worker currently owns the job.
var ErrHeld = errors.New("lease held by another worker")

// Lease is released exactly once by its holder.
type Lease interface {
	Release(ctx context.Context) error
}

type Locker interface {
	Acquire(ctx context.Context, jobID string) (Lease, error)
}

func Key(jobID string) string { return "lease:job:" + jobID }

// RedisLocker is backed by redislock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedisLocker accepts any scripting client; *redis.Client is the usual one.
func NewRedisLocker(rdb redis.Scripter, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, jobID string) (Lease, error) {
	lock, err := l.client.Obtain(ctx, Key(jobID), l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrHeld
	}
	if err != nil {
		return nil, err
	}
	return redisLease{lock: lock}, nil
}

type redisLease struct {
	lock *redislock.Lock
}

func (l redisLease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

// Noop grants every lease. It is used when Redis is not configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (Lease, error) { return noopLease{}, nil }

type noopLease struct{}

func (noopLease) Release(context.Context) error { return nil }

// New picks the Redis locker when a client is available.
func New(rdb *redis.Client, ttl time.Duration) Locker {
	if rdb == nil {
		return Noop{}
	}
	return NewRedisLocker(rdb, ttl)
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = Noop{}
)
