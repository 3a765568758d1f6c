// Package runlock serializes detection runs against one store with a Redis
// lock.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis key guarding detection runs.
const DefaultKey = "dupdetect:lock:run"

// DefaultTTL bounds how long a crashed run can block others.
const DefaultTTL = 30 * time.Minute

var (
	// ErrLockHeld is returned when another run owns the lock.
	ErrLockHeld = errors.New("run lock held")

	// ErrLockNotHeld is returned when releasing a lock this process does not own.
	ErrLockNotHeld = errors.New("run lock not held")
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Locker acquires and releases the run lock.
type Locker interface {
	Acquire(ctx context.Context) (Lease, error)
	Key() string
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// Option configures a RedisLocker.
type Option func(*RedisLocker)

// WithKey overrides the lock key.
func WithKey(key string) Option {
	return func(l *RedisLocker) { l.key = key }
}

// WithTTL overrides the lock expiry.
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) { l.ttl = ttl }
}

// NewRedisLocker creates a locker on client.
func NewRedisLocker(client redis.UniversalClient, opts ...Option) *RedisLocker {
	l := &RedisLocker{client: client, key: DefaultKey, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key returns the lock key.
func (l *RedisLocker) Key() string {
	return l.key
}

// Acquire tries once to take the lock. It returns ErrLockHeld when another
// owner has it.
func (l *RedisLocker) Acquire(ctx context.Context) (Lease, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring %s: %w", l.key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, l.key)
	}
	return &redisLease{client: l.client, key: l.key, token: token}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Release deletes the key only if this lease still owns it.
func (r *redisLease) Release(ctx context.Context) error {
	res, err := unlockScript.Run(ctx, r.client, []string{r.key}, r.token).Int64()
	if err != nil {
		return fmt.Errorf("releasing %s: %w", r.key, err)
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend pushes the expiry out to ttl from now.
func (r *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	res, err := extendScript.Run(ctx, r.client, []string{r.key}, r.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extending %s: %w", r.key, err)
	}
	if res == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// NopLocker always succeeds. It is used when Redis is not configured and
// for dry runs.
type NopLocker struct{}

// Key returns an empty key.
func (NopLocker) Key() string { return "" }

// Acquire returns a lease that does nothing.
func (NopLocker) Acquire(ctx context.Context) (Lease, error) {
	return nopLease{}, nil
}

type nopLease struct{}

func (nopLease) Release(ctx context.Context) error                   { return nil }
func (nopLease) Extend(ctx context.Context, ttl time.Duration) error { return nil }
