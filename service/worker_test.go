/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-usagekit/log"
	"github.com/acronis/go-usagekit/log/logtest"
)

func waitRun(t *testing.T, runs <-chan int) int {
	t.Helper()
	select {
	case n := <-runs:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("worker was not run")
		return 0
	}
}

func TestPeriodicWorker_Run(t *testing.T) {
	t.Run("runs periodically until stop error", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		runs := make(chan int, 1)
		var counter int
		worker := WorkerFunc(func(ctx context.Context) error {
			counter++
			runs <- counter
			if counter == 3 {
				return ErrPeriodicWorkerStop
			}
			return nil
		})
		logRecorder := logtest.NewRecorder()
		pw := NewPeriodicWorkerWithOpts(worker, time.Minute, logRecorder, PeriodicWorkerOpts{Clock: clock})

		done := make(chan error, 1)
		go func() { done <- pw.Run(context.Background()) }()

		require.Equal(t, 1, waitRun(t, runs))
		for i := 2; i <= 3; i++ {
			clock.BlockUntil(1)
			clock.Advance(time.Minute)
			require.Equal(t, i, waitRun(t, runs))
		}
		require.NoError(t, <-done)

		_, found := logRecorder.FindEntry("periodic worker stopped")
		require.True(t, found)
	})

	t.Run("errors don't stop the loop, delay depends on error", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		runs := make(chan int, 1)
		var counter int
		worker := WorkerFunc(func(ctx context.Context) error {
			counter++
			runs <- counter
			switch counter {
			case 1:
				return errors.New("sweep failed")
			case 2:
				return ErrPeriodicWorkerStop
			}
			return nil
		})
		logRecorder := logtest.NewRecorder()
		pw := NewPeriodicWorkerWithOpts(worker, time.Minute, logRecorder, PeriodicWorkerOpts{
			Clock:        clock,
			InitialDelay: time.Second,
			IntervalDelayFunc: func(_ Worker, err error) time.Duration {
				if err != nil {
					return time.Hour
				}
				return time.Minute
			},
		})

		done := make(chan error, 1)
		go func() { done <- pw.Run(context.Background()) }()

		clock.BlockUntil(1)
		clock.Advance(time.Second)
		require.Equal(t, 1, waitRun(t, runs))

		clock.BlockUntil(1)
		clock.Advance(time.Minute)
		select {
		case <-runs:
			t.Fatal("worker should not be run before the delay returned by IntervalDelayFunc")
		case <-time.After(50 * time.Millisecond):
		}
		clock.Advance(time.Hour - time.Minute)
		require.Equal(t, 2, waitRun(t, runs))
		require.NoError(t, <-done)

		entry, found := logRecorder.FindEntry("periodically running worker finished with error")
		require.True(t, found)
		require.Equal(t, log.LevelError, entry.Level)
	})

	t.Run("context cancellation", func(t *testing.T) {
		var called bool
		worker := WorkerFunc(func(ctx context.Context) error {
			called = true
			return nil
		})
		pw := NewPeriodicWorkerWithOpts(worker, time.Minute, nil, PeriodicWorkerOpts{InitialDelay: time.Hour})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, pw.Run(ctx))
		require.False(t, called)
	})

	t.Run("panic is logged and re-raised", func(t *testing.T) {
		worker := WorkerFunc(func(ctx context.Context) error {
			panic("oops")
		})
		logRecorder := logtest.NewRecorder()
		pw := NewPeriodicWorker(worker, time.Minute, logRecorder)

		require.PanicsWithValue(t, "oops", func() { _ = pw.Run(context.Background()) })

		var found bool
		for _, entry := range logRecorder.Entries() {
			if strings.HasPrefix(entry.Text, "panic: oops") {
				found = true
				_, hasStack := entry.FindField("stack")
				require.True(t, hasStack)
			}
		}
		require.True(t, found)
	})
}
