/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompositeUnit(t *testing.T) {
	t.Run("start and stop", func(t *testing.T) {
		units := []*mockUnit{newMockUnit(), newMockUnit()}
		cu := NewCompositeUnit(units[0], units[1])

		fatalErr := make(chan error, 1)
		startDone := make(chan struct{})
		go func() {
			cu.Start(fatalErr)
			close(startDone)
		}()
		require.Eventually(t, func() bool {
			return units[0].started.Load() && units[1].started.Load()
		}, 5*time.Second, time.Millisecond)

		require.NoError(t, cu.Stop(true))
		<-startDone
		require.Empty(t, fatalErr)
		for _, u := range units {
			require.Equal(t, int32(1), u.stopCalls.Load())
			require.True(t, u.stoppedGrace.Load())
		}
	})

	t.Run("failed unit stops others", func(t *testing.T) {
		startErr := errors.New("listen: address already in use")
		running := newMockUnit()
		failing := newMockUnit()
		failing.startErr = startErr
		cu := NewCompositeUnit(running, failing)

		fatalErr := make(chan error, 1)
		cu.Start(fatalErr)

		err := <-fatalErr
		var cuErr *CompositeUnitError
		require.ErrorAs(t, err, &cuErr)
		require.ErrorIs(t, err, startErr)
		require.Len(t, cuErr.UnitErrors, 1)
		require.EqualError(t, err, "listen: address already in use")
		require.Equal(t, int32(1), running.stopCalls.Load())
		require.False(t, running.stoppedGrace.Load())
	})

	t.Run("stop errors are collected", func(t *testing.T) {
		u1, u2, u3 := newMockUnit(), newMockUnit(), newMockUnit()
		u1.stopErr = errors.New("stop error 1")
		u3.stopErr = errors.New("stop error 3")
		cu := NewCompositeUnit(u1, u2, u3)

		err := cu.Stop(false)
		var cuErr *CompositeUnitError
		require.ErrorAs(t, err, &cuErr)
		require.ElementsMatch(t, []error{u1.stopErr, u3.stopErr}, cuErr.UnitErrors)
	})

	t.Run("metrics", func(t *testing.T) {
		u1, u2 := newMockUnit(), newMockUnit()
		cu := NewCompositeUnit(u1, u2)
		cu.MustRegisterMetrics()
		cu.UnregisterMetrics()
		for _, u := range []*mockUnit{u1, u2} {
			require.Equal(t, int32(1), u.registerCalls.Load())
			require.Equal(t, int32(1), u.unregisterCalls.Load())
		}
	})
}
