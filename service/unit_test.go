/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"sync"

	"go.uber.org/atomic"
)

// mockUnit blocks in Start until Stop is called, unless startErr is set.
type mockUnit struct {
	startErr error
	stopErr  error

	stopCh   chan struct{}
	stopOnce sync.Once

	started         atomic.Bool
	stoppedGrace    atomic.Bool
	stopCalls       atomic.Int32
	registerCalls   atomic.Int32
	unregisterCalls atomic.Int32
}

var _ Unit = (*mockUnit)(nil)
var _ MetricsRegisterer = (*mockUnit)(nil)

func newMockUnit() *mockUnit {
	return &mockUnit{stopCh: make(chan struct{})}
}

func (u *mockUnit) Start(fatalErr chan<- error) {
	u.started.Store(true)
	if u.startErr != nil {
		fatalErr <- u.startErr
		return
	}
	<-u.stopCh
}

func (u *mockUnit) Stop(gracefully bool) error {
	u.stopCalls.Inc()
	u.stoppedGrace.Store(gracefully)
	u.stopOnce.Do(func() { close(u.stopCh) })
	return u.stopErr
}

func (u *mockUnit) MustRegisterMetrics() {
	u.registerCalls.Inc()
}

func (u *mockUnit) UnregisterMetrics() {
	u.unregisterCalls.Inc()
}
