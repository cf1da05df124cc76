/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// TokenBucketLimiter implements token bucket algorithm.
// Bucket of maxBurst tokens is refilled at maxRate.
type TokenBucketLimiter struct {
	store *keyStore[*rate.Limiter]
	clock clockwork.Clock
}

var _ WeightedLimiter = (*TokenBucketLimiter)(nil)

// NewTokenBucketLimiter creates a new token bucket limiter.
// If maxBurst is 0, the bucket size equals maxRate.Count.
func NewTokenBucketLimiter(maxRate Rate, maxBurst, maxKeys int, clock clockwork.Clock) (*TokenBucketLimiter, error) {
	if maxRate.Count <= 0 {
		return nil, fmt.Errorf("rate count should be positive, got %d", maxRate.Count)
	}
	if maxBurst == 0 {
		maxBurst = maxRate.Count
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	limit := rate.Every(maxRate.Duration / time.Duration(maxRate.Count))
	store, err := newKeyStore(maxKeys, func() (*rate.Limiter, error) {
		return rate.NewLimiter(limit, maxBurst), nil
	})
	if err != nil {
		return nil, err
	}
	return &TokenBucketLimiter{store: store, clock: clock}, nil
}

// Allow checks if the request should be allowed.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN checks if n requests should be allowed at once.
func (l *TokenBucketLimiter) AllowN(_ context.Context, key string, n uint64) (allow bool, retryAfter time.Duration, err error) {
	if n > math.MaxInt32 {
		return false, 0, nil
	}
	lim, err := l.store.getOrAdd(key)
	if err != nil {
		return false, 0, err
	}
	now := l.clock.Now()
	r := lim.ReserveN(now, int(n))
	if !r.OK() {
		return false, 0, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}
