/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/atomic"
)

// ErrWorkerUnitStopTimeoutExceeded is returned when the worker doesn't finish within the graceful stop timeout.
var ErrWorkerUnitStopTimeoutExceeded = errors.New("worker unit stop timeout exceeded")

// WorkerUnitOpts contains optional parameters for constructing WorkerUnit.
type WorkerUnitOpts struct {
	MetricsRegisterer MetricsRegisterer

	// GracefulStopTimeout limits waiting for the worker in Stop(true). Zero means no limit.
	GracefulStopTimeout time.Duration
}

// WorkerUnit runs Worker as Unit. Stop cancels the context passed to the worker.
type WorkerUnit struct {
	worker    Worker
	opts      WorkerUnitOpts
	ctx       context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}
	started   atomic.Bool
}

var _ Unit = (*WorkerUnit)(nil)
var _ MetricsRegisterer = (*WorkerUnit)(nil)

// NewWorkerUnit creates a new instance of WorkerUnit.
func NewWorkerUnit(worker Worker) *WorkerUnit {
	return NewWorkerUnitWithOpts(worker, WorkerUnitOpts{})
}

// NewWorkerUnitWithOpts is a more configurable version of NewWorkerUnit.
func NewWorkerUnitWithOpts(worker Worker, opts WorkerUnitOpts) *WorkerUnit {
	ctx, ctxCancel := context.WithCancel(context.Background())
	return &WorkerUnit{worker: worker, opts: opts, ctx: ctx, ctxCancel: ctxCancel, done: make(chan struct{})}
}

// Start runs the underlying worker and blocks until it finishes.
func (u *WorkerUnit) Start(fatalError chan<- error) {
	u.started.Store(true)
	defer close(u.done)
	if err := u.worker.Run(u.ctx); err != nil {
		fatalError <- err
	}
}

// Stop cancels the worker's context and, if gracefully is true, waits for the worker to finish.
func (u *WorkerUnit) Stop(gracefully bool) error {
	u.ctxCancel()
	if !gracefully || !u.started.Load() {
		return nil
	}
	if u.opts.GracefulStopTimeout == 0 {
		<-u.done
		return nil
	}
	timer := time.NewTimer(u.opts.GracefulStopTimeout)
	defer timer.Stop()
	select {
	case <-u.done:
		return nil
	case <-timer.C:
		return ErrWorkerUnitStopTimeoutExceeded
	}
}

// MustRegisterMetrics registers metrics of the worker if MetricsRegisterer is specified.
func (u *WorkerUnit) MustRegisterMetrics() {
	if u.opts.MetricsRegisterer != nil {
		u.opts.MetricsRegisterer.MustRegisterMetrics()
	}
}

// UnregisterMetrics unregisters metrics of the worker if MetricsRegisterer is specified.
func (u *WorkerUnit) UnregisterMetrics() {
	if u.opts.MetricsRegisterer != nil {
		u.opts.MetricsRegisterer.UnregisterMetrics()
	}
}
