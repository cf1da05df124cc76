/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/acronis/go-usagekit/log"
)

// ErrPeriodicWorkerStop is an error that may be used for interrupting PeriodicWorker's loop.
var ErrPeriodicWorkerStop = errors.New("stop periodic worker error")

// Worker performs some (usually long-running) work.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

// Run is a part of Worker interface.
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PeriodicWorkerOpts contains optional parameters for constructing PeriodicWorker.
type PeriodicWorkerOpts struct {
	// InitialDelay is a delay before the first run. The first run starts immediately by default.
	InitialDelay time.Duration

	// IntervalDelayFunc calculates a delay before the next run using the result of the previous one.
	// Constant interval delay is used if it's nil.
	IntervalDelayFunc func(worker Worker, err error) time.Duration

	// Clock is used for scheduling runs. Real clock is used if it's nil.
	Clock clockwork.Clock
}

// PeriodicWorker represents a worker that runs underlying worker periodically.
type PeriodicWorker struct {
	worker            Worker
	logger            log.FieldLogger
	clock             clockwork.Clock
	initialDelay      time.Duration
	intervalDelay     time.Duration
	intervalDelayFunc func(worker Worker, err error) time.Duration
}

// NewPeriodicWorker creates a new instance of PeriodicWorker with constant delays.
func NewPeriodicWorker(worker Worker, intervalDelay time.Duration, logger log.FieldLogger) *PeriodicWorker {
	return NewPeriodicWorkerWithOpts(worker, intervalDelay, logger, PeriodicWorkerOpts{})
}

// NewPeriodicWorkerWithOpts is a more configurable version of NewPeriodicWorker.
func NewPeriodicWorkerWithOpts(
	worker Worker, intervalDelay time.Duration, logger log.FieldLogger, opts PeriodicWorkerOpts,
) *PeriodicWorker {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &PeriodicWorker{
		worker:            worker,
		logger:            logger,
		clock:             opts.Clock,
		initialDelay:      opts.InitialDelay,
		intervalDelay:     intervalDelay,
		intervalDelayFunc: opts.IntervalDelayFunc,
	}
}

// Run runs the underlying worker until the context is canceled or the worker returns ErrPeriodicWorkerStop.
// Other errors of the underlying worker are logged and don't stop the loop.
// Panic is logged with the stack trace and re-raised.
func (pw *PeriodicWorker) Run(ctx context.Context) (resErr error) {
	defer func() {
		if p := recover(); p != nil {
			const logStackSize = 8192
			stack := make([]byte, logStackSize)
			stack = stack[:runtime.Stack(stack, false)]
			pw.logger.Error(fmt.Sprintf("panic: %+v", p), log.Bytes("stack", stack))
			panic(p)
		}
		if resErr != nil {
			pw.logger.Error("periodic worker stopped with error", log.Error(resErr))
			return
		}
		pw.logger.Info("periodic worker stopped")
	}()

	pw.logger.Info("running periodic worker...",
		log.Duration("initial_delay", pw.initialDelay), log.Duration("interval_delay", pw.intervalDelay))

	timer := pw.clock.NewTimer(pw.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.Chan():
		}

		err := pw.worker.Run(ctx)
		if err != nil {
			if errors.Is(err, ErrPeriodicWorkerStop) {
				return nil
			}
			pw.logger.Error("periodically running worker finished with error", log.Error(err))
		}

		nextDelay := pw.intervalDelay
		if pw.intervalDelayFunc != nil {
			nextDelay = pw.intervalDelayFunc(pw.worker, err)
		}
		timer.Reset(nextDelay)
	}
}
