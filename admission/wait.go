/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// WaitPolicy defines how long and how often Wait retries.
type WaitPolicy interface {
	NewBackOff() backoff.BackOff
}

// The WaitPolicyFunc type is an adapter to allow the use of ordinary functions as WaitPolicy.
type WaitPolicyFunc func() backoff.BackOff

// NewBackOff implements WaitPolicy.
func (f WaitPolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// ExponentialWaitPolicy retries up to maxAttempts times with exponentially growing delays.
// Zero maxAttempts means no limit (the wait is bounded by backoff.DefaultMaxElapsedTime then).
type ExponentialWaitPolicy struct {
	InitialInterval time.Duration
	MaxAttempts     int
}

// NewBackOff implements WaitPolicy.
func (p ExponentialWaitPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	var bf backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		bf = backoff.WithMaxRetries(eb, uint64(p.MaxAttempts))
	}
	bf.Reset()
	return bf
}

// ConstantWaitPolicy retries up to maxAttempts times with constant interval.
type ConstantWaitPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// NewBackOff implements WaitPolicy.
func (p ConstantWaitPolicy) NewBackOff() backoff.BackOff {
	var bf backoff.BackOff = backoff.NewConstantBackOff(p.Interval)
	if p.MaxAttempts > 0 {
		bf = backoff.WithMaxRetries(bf, uint64(p.MaxAttempts))
	}
	bf.Reset()
	return bf
}

// DefaultWaitPolicy is used by Wait when no policy is passed.
var DefaultWaitPolicy WaitPolicy = ExponentialWaitPolicy{InitialInterval: 100 * time.Millisecond, MaxAttempts: 10}

// Wait blocks until n units for the key are admitted.
// The limiter's retry-after estimation takes precedence over the policy's delay,
// while the policy still decides when to give up.
// ErrNotAdmitted is returned if the policy gives up or the request can never be admitted,
// ctx.Err() is returned if the context is done.
func Wait(ctx context.Context, limiter WeightedLimiter, key string, n uint64, policy WaitPolicy) error {
	if policy == nil {
		policy = DefaultWaitPolicy
	}
	hb := &hintedBackOff{delegate: policy.NewBackOff()}
	op := func() error {
		allow, retryAfter, err := limiter.AllowN(ctx, key, n)
		if err != nil {
			return backoff.Permanent(err)
		}
		if allow {
			return nil
		}
		if retryAfter <= 0 {
			return backoff.Permanent(ErrNotAdmitted)
		}
		hb.hint = retryAfter
		return ErrNotAdmitted
	}
	return backoff.Retry(op, backoff.WithContext(hb, ctx))
}

// hintedBackOff returns the hint (if any) instead of the delegate's delay.
// The delegate is still consulted, so it decides when to stop.
type hintedBackOff struct {
	delegate backoff.BackOff
	hint     time.Duration
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	next := b.delegate.NextBackOff()
	if next == backoff.Stop {
		return backoff.Stop
	}
	if b.hint > 0 {
		next, b.hint = b.hint, 0
	}
	return next
}

func (b *hintedBackOff) Reset() {
	b.delegate.Reset()
	b.hint = 0
}
