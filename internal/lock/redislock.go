// Package lock serialises work on a shared resource across API replicas.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotAcquired is returned when MaxWait elapses before the lock frees up.
	ErrNotAcquired = errors.New("lock: not acquired before deadline")
	// ErrLockLost is joined to fn's error when another holder took the key mid-call.
	ErrLockLost = errors.New("lock: ownership lost while held")
)

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

var extendScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("pexpire", KEYS[1], ARGV[2])
else
  return 0
end`)

// Locker is a token-guarded SET NX lock. While fn runs the key's TTL is
// extended every third of ttl, so slow upstream calls do not let it lapse.
type Locker struct {
	R            *redis.Client
	Prefix       string
	RetryBackoff time.Duration
	// MaxWait bounds acquisition. Zero waits until ctx is done.
	MaxWait time.Duration
}

// WithLock runs fn while holding key. The context passed to fn is cancelled
// if ownership is lost.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	key = l.Prefix + key
	token := uuid.NewString()
	if err := l.acquire(ctx, key, token, ttl); err != nil {
		return err
	}
	defer l.release(context.WithoutCancel(ctx), key, token)

	held, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.keepAlive(held, done, key, token, ttl, cancel)
	}()

	err := fn(held)
	close(done)
	<-stopped
	if errors.Is(context.Cause(held), ErrLockLost) {
		return errors.Join(ErrLockLost, err)
	}
	return err
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	if l.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, l.MaxWait, ErrNotAcquired)
		defer cancel()
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return context.Cause(ctx)
		case <-timer.C:
		}
	}
}

func (l Locker) keepAlive(ctx context.Context, done <-chan struct{}, key, token string, ttl time.Duration, lost context.CancelCauseFunc) {
	ticker := time.NewTicker(max(ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := extendScript.Run(ctx, l.R, []string{key}, token, ttl.Milliseconds()).Int()
			if err != nil {
				// Transient; the next tick retries while the key is still alive.
				continue
			}
			if n == 0 {
				lost(ErrLockLost)
				return
			}
		}
	}
}

func (l Locker) release(ctx context.Context, key, token string) {
	_ = releaseScript.Run(ctx, l.R, []string{key}, token).Err()
}
