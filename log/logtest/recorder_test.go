/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-usagekit/log"
)

func TestRecorder(t *testing.T) {
	recorder := NewRecorder()
	logger := recorder.With(log.String("tracker", "quota"))

	logger.Debug("event rejected", log.Uint64("amount", 6))
	logger.Infof("window pruned, %d events left", 2)

	entries := recorder.Entries()
	require.Len(t, entries, 2)

	entry, found := recorder.FindEntry("event rejected")
	require.True(t, found)
	require.Equal(t, log.LevelDebug, entry.Level)
	trackerField, found := entry.FindField("tracker")
	require.True(t, found)
	require.Equal(t, "quota", string(trackerField.Bytes))
	amountField, found := entry.FindField("amount")
	require.True(t, found)
	require.Equal(t, int64(6), amountField.Int)

	entry, found = recorder.FindEntry("window pruned, 2 events left")
	require.True(t, found)
	require.Equal(t, log.LevelInfo, entry.Level)

	recorder.WithLevel(log.LevelWarn).Info("dropped")
	_, found = recorder.FindEntry("dropped")
	require.False(t, found)

	recorder.Reset()
	require.Empty(t, recorder.Entries())
}
