/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultBacklogTimeout determines the default timeout for backlog processing.
const DefaultBacklogTimeout = time.Second * 5

// backlogSlotsProvider provides backlog slots for admission.
type backlogSlotsProvider func(key string) chan struct{}

// Params contains common data that relates to the admission procedure.
type Params struct {
	Key                 string
	Weight              uint64
	RequestBacklogged   bool
	EstimatedRetryAfter time.Duration
}

// RequestHandler abstracts the operations on the request being admitted.
type RequestHandler interface {
	// GetContext returns the request context.
	GetContext() context.Context

	// GetKey extracts the admission key from the request.
	// Returns key, bypass (whether to bypass admission), and error.
	GetKey() (string, bool, error)

	// GetWeight returns the weight of the request.
	GetWeight() (uint64, error)

	// Execute processes the actual request.
	Execute() error

	// OnReject handles request rejection when the limit is exceeded.
	OnReject(params Params) error

	// OnError handles errors that occur during admission.
	OnError(params Params, err error) error
}

// BacklogParams defines parameters for the backlog processing.
type BacklogParams struct {
	MaxKeys int
	Limit   int
	Timeout time.Duration

	// Clock is used for backlog timers. It should be the clock the limiter runs on.
	// Real clock is used if it's nil.
	Clock clockwork.Clock
}

// RequestProcessor handles the common admission logic for any request type.
type RequestProcessor struct {
	limiter         WeightedLimiter
	getBacklogSlots backlogSlotsProvider
	backlogTimeout  time.Duration
	clock           clockwork.Clock
}

// NewRequestProcessor creates a new generic request processor.
func NewRequestProcessor(limiter WeightedLimiter, backlogParams BacklogParams) (*RequestProcessor, error) {
	if backlogParams.Limit < 0 {
		return nil, fmt.Errorf("backlog limit should not be negative, got %d", backlogParams.Limit)
	}
	if backlogParams.MaxKeys < 0 {
		return nil, fmt.Errorf("max keys for backlog should not be negative, got %d", backlogParams.MaxKeys)
	}
	var getBacklogSlots backlogSlotsProvider
	if backlogParams.Limit > 0 {
		var err error
		if getBacklogSlots, err = newBacklogSlotsProvider(backlogParams.Limit, backlogParams.MaxKeys); err != nil {
			return nil, err
		}
	}
	if backlogParams.Timeout == 0 {
		backlogParams.Timeout = DefaultBacklogTimeout
	}
	if backlogParams.Clock == nil {
		backlogParams.Clock = clockwork.NewRealClock()
	}
	return &RequestProcessor{
		limiter:         limiter,
		getBacklogSlots: getBacklogSlots,
		backlogTimeout:  backlogParams.Timeout,
		clock:           backlogParams.Clock,
	}, nil
}

// ProcessRequest contains the shared admission logic.
func (p *RequestProcessor) ProcessRequest(rh RequestHandler) error {
	ctx := rh.GetContext()

	key, bypass, err := rh.GetKey()
	if err != nil {
		return rh.OnError(Params{Key: key}, fmt.Errorf("get key for admission: %w", err))
	}
	if bypass {
		return rh.Execute()
	}

	weight, err := rh.GetWeight()
	if err != nil {
		return rh.OnError(Params{Key: key}, fmt.Errorf("get weight for admission: %w", err))
	}

	allow, retryAfter, err := p.limiter.AllowN(ctx, key, weight)
	if err != nil {
		return rh.OnError(Params{Key: key, Weight: weight}, fmt.Errorf("admission: %w", err))
	}
	if allow {
		return rh.Execute()
	}

	// Requests that can never be admitted are not backlogged.
	if p.getBacklogSlots == nil || retryAfter <= 0 {
		return rh.OnReject(Params{Key: key, Weight: weight, EstimatedRetryAfter: retryAfter})
	}

	return p.processBacklog(rh, key, weight, retryAfter)
}

func (p *RequestProcessor) processBacklog(rh RequestHandler, key string, weight uint64, retryAfter time.Duration) error {
	ctx := rh.GetContext()

	backlogSlots := p.getBacklogSlots(key)
	backlogged := false
	select {
	case backlogSlots <- struct{}{}:
		backlogged = true
	default:
		// There are no free slots in the backlog, reject the request immediately.
		return rh.OnReject(Params{Key: key, Weight: weight, EstimatedRetryAfter: retryAfter})
	}

	freeBacklogSlotIfNeeded := func() {
		if backlogged {
			select {
			case <-backlogSlots:
				backlogged = false
			default:
			}
		}
	}
	defer freeBacklogSlotIfNeeded()

	makeParams := func() Params {
		return Params{Key: key, Weight: weight, RequestBacklogged: backlogged, EstimatedRetryAfter: retryAfter}
	}

	backlogTimeoutTimer := p.clock.NewTimer(p.backlogTimeout)
	defer backlogTimeoutTimer.Stop()

	retryTimer := p.clock.NewTimer(retryAfter)
	defer retryTimer.Stop()

	var allow bool
	var err error

	for {
		select {
		case <-retryTimer.Chan():
			// Will do another check.
		case <-backlogTimeoutTimer.Chan():
			params := makeParams()
			freeBacklogSlotIfNeeded()
			return rh.OnReject(params)
		case <-ctx.Done():
			params := makeParams()
			freeBacklogSlotIfNeeded()
			return rh.OnError(params, ctx.Err())
		}

		if allow, retryAfter, err = p.limiter.AllowN(ctx, key, weight); err != nil {
			params := makeParams()
			freeBacklogSlotIfNeeded()
			return rh.OnError(params, fmt.Errorf("admission: %w", err))
		}
		if allow {
			freeBacklogSlotIfNeeded()
			return rh.Execute()
		}
		if retryAfter <= 0 {
			params := makeParams()
			freeBacklogSlotIfNeeded()
			return rh.OnReject(params)
		}

		if !retryTimer.Stop() {
			select {
			case <-retryTimer.Chan():
			default:
			}
		}
		retryTimer.Reset(retryAfter)
	}
}

func newBacklogSlotsProvider(backlogLimit, maxKeys int) (backlogSlotsProvider, error) {
	store, err := newKeyStore(maxKeys, func() (chan struct{}, error) {
		return make(chan struct{}, backlogLimit), nil
	})
	if err != nil {
		return nil, fmt.Errorf("new backlog slots store: %w", err)
	}
	return func(key string) chan struct{} {
		backlogSlots, _ := store.getOrAdd(key) // Error is always nil here.
		return backlogSlots
	}, nil
}
