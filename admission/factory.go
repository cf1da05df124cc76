/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/acronis/go-usagekit/log"
	"github.com/acronis/go-usagekit/quota"
)

// Opts represents options for creating limiters from the configuration.
type Opts struct {
	// Clock is a source of time. Real clock is used if it's nil.
	// It's not used by leaky_bucket algorithm.
	Clock clockwork.Clock

	// QuotaMetricsCollector collects metrics of quota algorithm. Metrics are disabled if it's nil.
	QuotaMetricsCollector quota.MetricsCollector

	// Logger is used for debug logging. Logging is disabled if it's nil.
	Logger log.FieldLogger
}

// New creates a new WeightedLimiter for the algorithm specified in the configuration.
func New(cfg *Config, opts Opts) (WeightedLimiter, error) {
	var lim WeightedLimiter
	var err error
	switch cfg.Alg {
	case AlgQuota, "":
		lim, err = NewQuotaLimiter(cfg.Rate, cfg.MaxKeys, quota.Options{
			Clock:            opts.Clock,
			MetricsCollector: opts.QuotaMetricsCollector,
			Logger:           opts.Logger,
		})
	case AlgSlidingWindow:
		lim, err = NewSlidingWindowLimiter(cfg.Rate, cfg.MaxKeys, opts.Clock)
	case AlgLeakyBucket:
		lim, err = NewLeakyBucketLimiter(cfg.Rate, cfg.Burst, cfg.MaxKeys)
	case AlgTokenBucket:
		lim, err = NewTokenBucketLimiter(cfg.Rate, cfg.Burst, cfg.MaxKeys, opts.Clock)
	default:
		return nil, fmt.Errorf("unknown admission algorithm %q", cfg.Alg)
	}
	if err != nil {
		return nil, fmt.Errorf("new %s limiter: %w", cfg.Alg, err)
	}
	return lim, nil
}
