package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InstallLockKey is the Redis key guarding the install flow.
const InstallLockKey = "student_management:install_lock"

// ErrTimeout is returned when the lock could not be obtained in time.
var ErrTimeout = errors.New("install lock busy")

// Locker serialises a critical section.
type Locker interface {
	// Acquire blocks until the lock is held and returns a token for Release.
	Acquire(ctx context.Context) (string, error)
	Release(ctx context.Context, token string) error
}

// WithLock runs fn while holding l. The lock is released even if fn fails.
func WithLock(ctx context.Context, l Locker, fn func(ctx context.Context) error) (err error) {
	token, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// release on a fresh context so a cancelled caller still frees the key
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if releaseErr := l.Release(releaseCtx, token); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()
	return fn(ctx)
}

// Local is a Locker for a single host. The install marker itself already
// guards against concurrent creation, so Local only needs to satisfy the
// interface when Redis is disabled.
type Local struct{}

func (Local) Acquire(ctx context.Context) (string, error) { return "local", ctx.Err() }

func (Local) Release(context.Context, string) error { return nil }

// RedisLock serialises installs across hosts sharing a Redis instance. The
// key holds the token of the current installer and expires after ttl so a
// crashed installer cannot block the next attempt forever.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	wait   time.Duration
}

// New returns a RedisLock on key. Acquire gives up after wait.
func New(client *redis.Client, key string, ttl, wait time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl, wait: wait}
}

// Acquire polls SETNX with a backoff capped at maxPoll. The returned token
// names this host so a contending installer can report who holds the key.
func (l *RedisLock) Acquire(ctx context.Context) (string, error) {
	token := holderName() + "/" + uuid.NewString()
	giveUp := time.Now().Add(l.wait)
	poll := minPoll

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("take install lock %s: %w", l.key, err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(giveUp) {
			return "", l.timeout(ctx)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(poll):
		}
		poll = min(poll*2, maxPoll)
	}
}

const (
	minPoll = 50 * time.Millisecond
	maxPoll = 500 * time.Millisecond
)

func (l *RedisLock) timeout(ctx context.Context) error {
	holder, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		holder = "unknown holder"
	}
	return fmt.Errorf("%w: install lock %s held by %s, gave up after %s (ttl %s)",
		ErrTimeout, l.key, holder, l.wait, l.ttl)
}

func holderName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown-host"
	}
	return host
}

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1], so an
// installer whose ttl ran out cannot free a successor's lock.
var compareAndDelete = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// Release frees the lock if token still owns it.
func (l *RedisLock) Release(ctx context.Context, token string) error {
	if err := compareAndDelete.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release install lock %s: %w", l.key, err)
	}
	return nil
}
