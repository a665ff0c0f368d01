// Package lock provides a Redis-backed per-name mutual exclusion used to keep
// two ingestions of the same document from interleaving.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "plugin-engine:lock:"

var (
	// ErrHeld is returned by WithLock when another owner holds the lock.
	ErrHeld = errors.New("lock is held by another owner")
	// ErrLost means the lock expired or was taken over while held.
	ErrLost = errors.New("lock is no longer held")
)

// Lock is a SETNX lock with TTL. Every acquisition stores its own token, so a
// Release or Extend only touches the acquisition it came from.
type Lock struct {
	client  redis.UniversalClient
	ownerId string
	seq     atomic.Uint64
}

func New(client redis.UniversalClient) *Lock {
	return &Lock{client: client, ownerId: newOwnerId()}
}

// newOwnerId is hostname:pid:random.
func newOwnerId() string {
	hostname, _ := os.Hostname()
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(b))
}

func (l *Lock) OwnerId() string {
	return l.ownerId
}

// Held is one acquisition of a named lock.
type Held struct {
	client redis.UniversalClient
	name   string
	token  string
}

func (h *Held) Token() string {
	return h.token
}

// Acquire returns nil without error when the lock is taken.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (*Held, error) {
	token := fmt.Sprintf("%s:%d", l.ownerId, l.seq.Add(1))
	ok, err := l.client.SetNX(ctx, keyPrefix+name, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return &Held{client: l.client, name: name, token: token}, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release is a no-op when the lock expired or was taken over.
func (h *Held) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, h.client, []string{keyPrefix + h.name}, h.token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", h.name, err)
	}
	return nil
}

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Extend resets the TTL. It returns ErrLost when this acquisition no longer
// holds the lock.
func (h *Held) Extend(ctx context.Context, ttl time.Duration) error {
	res, err := extendScript.Run(ctx, h.client, []string{keyPrefix + h.name}, h.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", h.name, err)
	}
	if res == 0 {
		return fmt.Errorf("%s: %w", h.name, ErrLost)
	}
	return nil
}

// keepAlive extends the lock every third of ttl until ctx ends. Losing the
// lock cancels ctx with ErrLost as the cause; other errors wait for the next tick.
func (h *Held) keepAlive(ctx context.Context, ttl time.Duration, cancel context.CancelCauseFunc) {
	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := h.Extend(ctx, ttl)
			if errors.Is(err, ErrLost) && ctx.Err() == nil {
				cancel(err)
				return
			}
		}
	}
}

// WithLock runs fn while holding name. It returns ErrHeld without running fn
// when the lock is taken. The lock is extended while fn runs, and fn's
// context is cancelled if the lock is lost anyway. The lock is released with
// a context that outlives cancellation of ctx.
func (l *Lock) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	held, err := l.Acquire(ctx, name, ttl)
	if err != nil {
		return err
	}
	if held == nil {
		return fmt.Errorf("%s: %w", name, ErrHeld)
	}
	defer func() {
		_ = held.Release(context.WithoutCancel(ctx))
	}()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go held.keepAlive(runCtx, ttl, cancel)

	if err := fn(runCtx); err != nil {
		if cause := context.Cause(runCtx); errors.Is(cause, ErrLost) {
			return fmt.Errorf("%w: %w", err, cause)
		}
		return err
	}
	return nil
}
