package redis

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/notifications/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Both scripts act only when the key still holds this lock's token.
var (
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)

	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// lockClient is satisfied by *redis.Client.
type lockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// DistributedLock is a single-holder lease on a Redis key. Replicas use it
// to keep one-off startup work, such as template seeding, from running twice.
type DistributedLock struct {
	client lockClient
	key    string
	token  string
	ttl    time.Duration
	held   bool
}

func NewDistributedLock(client lockClient, name string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    "lock:" + name,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire takes the lock if it is free. It does not wait.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	l.held = ok
	return ok, nil
}

// Extend resets the lease to ttl from now.
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	if !l.held {
		return domainErrors.ErrLockNotHeld
	}
	return l.runOwned(ctx, extendLockScript, ttl.Milliseconds())
}

// Release drops the lock. Releasing a lock that was never taken is a no-op;
// one that expired underneath the holder reports ErrLockNotHeld.
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	return l.runOwned(ctx, releaseLockScript)
}

func (l *DistributedLock) runOwned(ctx context.Context, script *redis.Script, args ...any) error {
	n, err := script.Run(ctx, l.client, []string{l.key}, append([]any{l.token}, args...)...).Int64()
	if err != nil {
		return fmt.Errorf("lock %s: %w", l.key, err)
	}
	if n == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// RunExclusive runs fn only if the lock can be taken right away, and reports
// whether fn ran. A busy lock is not an error. While fn runs the lease is
// renewed every ttl/2 so slow work does not lose it.
func RunExclusive(ctx context.Context, lock *DistributedLock, fn func(ctx context.Context) error) (bool, error) {
	ok, err := lock.Acquire(ctx)
	if err != nil || !ok {
		return false, err
	}
	defer lock.Release(context.WithoutCancel(ctx))

	if lock.ttl > 0 {
		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			keepAlive(ctx, lock, stop)
		}()
		defer func() {
			close(stop)
			<-done
		}()
	}

	return true, fn(ctx)
}

// keepAlive goes straight to the script so it never touches held, which
// Release writes from the caller's goroutine.
func keepAlive(ctx context.Context, lock *DistributedLock, stop <-chan struct{}) {
	ticker := time.NewTicker(lock.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.runOwned(ctx, extendLockScript, lock.ttl.Milliseconds()); err != nil {
				return
			}
		}
	}
}
