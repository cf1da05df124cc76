/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"time"

	"github.com/acronis/go-usagekit/log"
	"github.com/acronis/go-usagekit/quota"
)

// QuotaLimiter admits weighted requests using an exact sliding window log per key.
// At most maxRate.Count units of weight are admitted for a key within maxRate.Duration.
type QuotaLimiter struct {
	maxRate Rate
	store   *keyStore[*quota.WindowTracker]
	logger  log.FieldLogger
}

var _ WeightedLimiter = (*QuotaLimiter)(nil)

// NewQuotaLimiter creates a new QuotaLimiter.
// If maxKeys is 0, all keys share a single quota.
// Options are passed to every per-key tracker, so metrics are aggregated over all keys.
func NewQuotaLimiter(maxRate Rate, maxKeys int, opts quota.Options) (*QuotaLimiter, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	store, err := newKeyStore(maxKeys, func() (*quota.WindowTracker, error) {
		return quota.NewWithOpts(uint64(maxRate.Count), maxRate.Duration, opts)
	})
	if err != nil {
		return nil, err
	}
	return &QuotaLimiter{maxRate: maxRate, store: store, logger: opts.Logger}, nil
}

// Allow checks if the request with weight of 1 should be admitted.
func (l *QuotaLimiter) Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN checks if the request with weight of n should be admitted.
// Admitted weight is accounted in the key's window.
func (l *QuotaLimiter) AllowN(_ context.Context, key string, n uint64) (allow bool, retryAfter time.Duration, err error) {
	for {
		tracker, err := l.store.getOrAdd(key)
		if err != nil {
			return false, 0, err
		}
		decision := tracker.Check(n)
		if decision.Retired {
			// The key was swept after the tracker had been taken from the store.
			// The store already holds no reference to it, so the next lookup creates a fresh one.
			continue
		}
		return decision.Admitted, decision.RetryAfter, nil
	}
}

// Sweep prunes expired events of all keys and forgets keys whose windows became empty.
// It returns the number of forgotten keys.
// A key is forgotten only together with retiring its tracker,
// so an in-flight AllowN can't account weight in a window that is not referenced anymore.
func (l *QuotaLimiter) Sweep() int {
	if shared, ok := l.store.sharedValue(); ok {
		if pruned := shared.Prune(); pruned > 0 {
			l.logger.Debug("quota windows swept", log.Int("pruned_events", pruned))
		}
		return 0
	}

	var prunedEvents int
	removed := l.store.removeIf(func(_ string, tracker *quota.WindowTracker) bool {
		pruned, retired := tracker.RetireIfEmpty()
		prunedEvents += pruned
		return retired
	})
	if prunedEvents > 0 || removed > 0 {
		l.logger.Debug("quota windows swept",
			log.Int("pruned_events", prunedEvents),
			log.Int("removed_keys", removed),
			log.Int("keys", l.store.len()),
		)
	}
	return removed
}

// Keys returns the number of keys that have their own windows.
func (l *QuotaLimiter) Keys() int {
	return l.store.len()
}
