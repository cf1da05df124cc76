/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/jonboulle/clockwork"
)

// SlidingWindowLimiter implements sliding window counter algorithm.
// It approximates the number of requests in the window by the counts of the current and previous fixed windows.
type SlidingWindowLimiter struct {
	store   *keyStore[*slidingwindow.Limiter]
	maxRate Rate
	clock   clockwork.Clock
}

var _ WeightedLimiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter creates a new sliding window limiter.
// Clock may be nil, in this case, the real clock is used.
func NewSlidingWindowLimiter(maxRate Rate, maxKeys int, clock clockwork.Clock) (*SlidingWindowLimiter, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	store, err := newKeyStore(maxKeys, func() (*slidingwindow.Limiter, error) {
		lim, _ := slidingwindow.NewLimiter(
			maxRate.Duration, int64(maxRate.Count), func() (slidingwindow.Window, slidingwindow.StopFunc) {
				return slidingwindow.NewLocalWindow()
			})
		return lim, nil
	})
	if err != nil {
		return nil, err
	}
	return &SlidingWindowLimiter{store: store, maxRate: maxRate, clock: clock}, nil
}

// Allow checks if the request should be allowed.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN checks if n requests should be allowed at once.
func (l *SlidingWindowLimiter) AllowN(_ context.Context, key string, n uint64) (allow bool, retryAfter time.Duration, err error) {
	if n > uint64(l.maxRate.Count) {
		return false, 0, nil
	}
	lim, err := l.store.getOrAdd(key)
	if err != nil {
		return false, 0, err
	}
	now := l.clock.Now()
	if lim.AllowN(now, int64(n)) {
		return true, 0, nil
	}
	retryAfter = now.Truncate(l.maxRate.Duration).Add(l.maxRate.Duration).Sub(now)
	return false, retryAfter, nil
}
