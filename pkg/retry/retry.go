// Package retry runs external calls with a per-attempt timeout and a bounded
// number of retries.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type Policy struct {
	Timeout time.Duration
	Retries int
	Delay   time.Duration
}

// DefaultPolicy allows one retry of a 30s call.
func DefaultPolicy() Policy {
	return Policy{Timeout: 30 * time.Second, Retries: 1, Delay: 200 * time.Millisecond}
}

// Budget is the longest time calls sequential operations can take under p,
// every attempt included.
func (p Policy) Budget(calls int) time.Duration {
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPolicy().Timeout
	}
	return time.Duration(calls) * (time.Duration(retries+1)*timeout + time.Duration(retries)*p.Delay)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, or exhausts the policy.
// Each attempt gets its own deadline derived from ctx. Cancellation of ctx stops
// retrying immediately.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	if p.Timeout <= 0 {
		p.Timeout = DefaultPolicy().Timeout
	}
	if p.Retries < 0 {
		p.Retries = 0
	}

	attempt := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()

		v, err := op(callCtx)
		if err != nil && ctx.Err() != nil {
			return v, backoff.Permanent(ctx.Err())
		}
		return v, err
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(p.Retries+1)),
	)
}
