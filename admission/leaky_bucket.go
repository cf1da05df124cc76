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

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
)

// LeakyBucketLimiter implements GCRA (Generic Cell Rate Algorithm). It's a leaky bucket variant algorithm.
// More details and good explanation of this alg is provided here: https://brandur.org/rate-limiting#gcra.
type LeakyBucketLimiter struct {
	limiter *throttled.GCRARateLimiterCtx
	perKey  bool
}

var _ WeightedLimiter = (*LeakyBucketLimiter)(nil)

// NewLeakyBucketLimiter creates a new leaky bucket limiter.
// If maxKeys is 0, all keys share a single bucket.
func NewLeakyBucketLimiter(maxRate Rate, maxBurst, maxKeys int) (*LeakyBucketLimiter, error) {
	if maxKeys < 0 {
		return nil, fmt.Errorf("max keys should not be negative, got %d", maxKeys)
	}
	gcraStore, err := memstore.NewCtx(maxKeys)
	if err != nil {
		return nil, fmt.Errorf("new in-memory store: %w", err)
	}
	reqQuota := throttled.RateQuota{
		MaxRate:  throttled.PerDuration(maxRate.Count, maxRate.Duration),
		MaxBurst: maxBurst,
	}
	gcraLimiter, err := throttled.NewGCRARateLimiterCtx(gcraStore, reqQuota)
	if err != nil {
		return nil, fmt.Errorf("new GCRA rate limiter: %w", err)
	}
	return &LeakyBucketLimiter{limiter: gcraLimiter, perKey: maxKeys > 0}, nil
}

// Allow checks if the request should be allowed.
func (l *LeakyBucketLimiter) Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN checks if n requests should be allowed at once.
func (l *LeakyBucketLimiter) AllowN(ctx context.Context, key string, n uint64) (allow bool, retryAfter time.Duration, err error) {
	if n > math.MaxInt32 {
		return false, 0, nil
	}
	if !l.perKey {
		key = ""
	}
	limited, res, err := l.limiter.RateLimitCtx(ctx, key, int(n))
	if err != nil {
		return false, 0, err
	}
	if !limited {
		return true, 0, nil
	}
	if res.RetryAfter < 0 { // n exceeds the bucket capacity
		return false, 0, nil
	}
	return false, res.RetryAfter, nil
}
