/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"

	"github.com/acronis/go-usagekit/log"
)

// Tracker decides whether a weighted event fits into the quota.
type Tracker interface {
	// CheckAdd admits the event (and accounts it) if it doesn't exceed the quota.
	CheckAdd(amount uint64) bool
}

// Decision is a detailed result of the admission check.
type Decision struct {
	Admitted bool

	// Aggregate is the sum of weights in the window after the check.
	Aggregate uint64

	// RetryAfter estimates when the rejected amount may fit into the window
	// if no other events are admitted in the meantime.
	// It's 0 for admitted events and for amounts that are greater than the budget.
	RetryAfter time.Duration

	// Retired is true if the tracker was retired by RetireIfEmpty.
	// The event is neither admitted nor accounted as rejected then.
	Retired bool
}

// Stats is a snapshot of the tracker state.
type Stats struct {
	Aggregate uint64
	Events    int
	Admitted  uint64
	Rejected  uint64
}

type event struct {
	weight uint64
	tick   int64 // whole seconds since the tracker creation
}

// Options represents options for the WindowTracker.
type Options struct {
	// Clock is a source of time. Real clock is used if it's nil.
	Clock clockwork.Clock

	// MetricsCollector is used to collect statistics about admission decisions.
	// It can be nil, in this case, metrics will be disabled.
	MetricsCollector MetricsCollector

	// Logger is used for debug logging of rejections. Logging is disabled if it's nil.
	Logger log.FieldLogger
}

// WindowTracker is a Tracker that limits the sum of event weights within a sliding time window.
type WindowTracker struct {
	budget   uint64
	duration time.Duration
	maxAge   int64 // events older than maxAge whole seconds are expired

	clock clockwork.Clock
	epoch time.Time

	mu        sync.Mutex
	events    *list.List // of event, oldest first
	aggregate uint64
	retired   bool

	admitted atomic.Uint64
	rejected atomic.Uint64

	metricsCollector MetricsCollector
	logger           log.FieldLogger
}

var _ Tracker = (*WindowTracker)(nil)

// New creates a new WindowTracker that admits at most budget of weight per duration.
func New(budget uint64, duration time.Duration) (*WindowTracker, error) {
	return NewWithOpts(budget, duration, Options{})
}

// NewWithOpts creates a new WindowTracker with the provided options.
func NewWithOpts(budget uint64, duration time.Duration, opts Options) (*WindowTracker, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be greater than 0, got %s", duration)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &WindowTracker{
		budget:           budget,
		duration:         duration,
		maxAge:           int64(duration / time.Second),
		clock:            opts.Clock,
		epoch:            opts.Clock.Now(),
		events:           list.New(),
		metricsCollector: opts.MetricsCollector,
		logger:           opts.Logger,
	}, nil
}

// NewFromConfig creates a new WindowTracker using the budget and the duration from the passed configuration.
func NewFromConfig(cfg *Config, opts Options) (*WindowTracker, error) {
	return NewWithOpts(cfg.Budget, time.Duration(cfg.Duration), opts)
}

// Budget returns the maximum sum of weights per window.
func (t *WindowTracker) Budget() uint64 {
	return t.budget
}

// Duration returns the window length.
func (t *WindowTracker) Duration() time.Duration {
	return t.duration
}

// CheckAdd prunes expired events and admits the amount if the aggregate stays within the budget.
// Admitted amount is appended to the window. Zero amount is admitted (and appended) as well.
func (t *WindowTracker) CheckAdd(amount uint64) bool {
	return t.Check(amount).Admitted
}

// Check works like CheckAdd but returns a detailed decision.
func (t *WindowTracker) Check(amount uint64) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.retired {
		return Decision{Retired: true}
	}

	now := t.clock.Now()
	nowTick := t.tick(now)
	t.prune(nowTick)

	// aggregate <= budget always holds, so the subtraction can't wrap around
	// and there is no overflow in aggregate+amount.
	if amount > t.budget-t.aggregate {
		t.rejected.Inc()
		t.metricsCollector.IncRejected(amount)
		retryAfter := t.estimateRetryAfter(amount, now)
		t.logger.Debug("quota exceeded, event rejected",
			log.Uint64("amount", amount),
			log.Uint64("aggregate", t.aggregate),
			log.Uint64("budget", t.budget),
			log.Duration("retry_after", retryAfter),
		)
		return Decision{Admitted: false, Aggregate: t.aggregate, RetryAfter: retryAfter}
	}

	t.events.PushBack(event{weight: amount, tick: nowTick})
	t.aggregate += amount
	t.admitted.Inc()
	t.metricsCollector.IncAdmitted(amount)
	return Decision{Admitted: true, Aggregate: t.aggregate}
}

// Prune removes expired events from the window and returns their number.
func (t *WindowTracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prune(t.tick(t.clock.Now()))
}

// RetireIfEmpty prunes expired events and, if the window became empty, retires the tracker.
// A retired tracker doesn't admit anything: Check returns a decision with Retired set,
// so the owner that dropped the tracker can route the event to a fresh one.
// Pruning and retiring happen under the same lock as Check, so no event is admitted
// into a tracker after it was found empty and retired.
func (t *WindowTracker) RetireIfEmpty() (pruned int, retired bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.retired {
		return 0, true
	}
	pruned = t.prune(t.tick(t.clock.Now()))
	if t.events.Len() == 0 {
		t.retired = true
	}
	return pruned, t.retired
}

// Stats returns a snapshot of the tracker state. Expired events are not pruned by this call.
func (t *WindowTracker) Stats() Stats {
	t.mu.Lock()
	aggregate, events := t.aggregate, t.events.Len()
	t.mu.Unlock()
	return Stats{
		Aggregate: aggregate,
		Events:    events,
		Admitted:  t.admitted.Load(),
		Rejected:  t.rejected.Load(),
	}
}

func (t *WindowTracker) tick(now time.Time) int64 {
	return int64(now.Sub(t.epoch) / time.Second)
}

// prune must be called with t.mu held.
// Events are ordered by arrival, so pruning stops at the first alive one.
// An event exactly duration old is still alive.
func (t *WindowTracker) prune(nowTick int64) (pruned int) {
	for elem := t.events.Front(); elem != nil; elem = t.events.Front() {
		ev := elem.Value.(event)
		if nowTick-ev.tick <= t.maxAge {
			break
		}
		t.aggregate -= ev.weight
		t.events.Remove(elem)
		pruned++
	}
	if pruned > 0 {
		t.metricsCollector.AddPruned(pruned)
	}
	return pruned
}

// estimateRetryAfter must be called with t.mu held.
func (t *WindowTracker) estimateRetryAfter(amount uint64, now time.Time) time.Duration {
	if amount > t.budget {
		return 0
	}
	needed := amount - (t.budget - t.aggregate)
	var freed uint64
	for elem := t.events.Front(); elem != nil; elem = elem.Next() {
		ev := elem.Value.(event)
		freed += ev.weight
		if freed >= needed {
			expiresAt := t.epoch.Add(time.Duration(ev.tick+t.maxAge+1) * time.Second)
			if retryAfter := expiresAt.Sub(now); retryAfter > 0 {
				return retryAfter
			}
			return 0
		}
	}
	return 0
}
