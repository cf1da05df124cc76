/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-usagekit/log"
	"github.com/acronis/go-usagekit/log/logtest"
)

func TestLoggingHandler_ServeHTTP(t *testing.T) {
	findCompletedEntry := func(recorder *logtest.Recorder) (logtest.RecordedEntry, bool) {
		for _, entry := range recorder.Entries() {
			if strings.HasPrefix(entry.Text, "response completed in ") {
				return entry, true
			}
		}
		return logtest.RecordedEntry{}, false
	}

	t.Run("request is logged with request id", func(t *testing.T) {
		recorder := logtest.NewRecorder()
		next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			logger := GetLoggerFromContext(r.Context())
			require.NotNil(t, logger)
			logger.Info("serving")
			rw.WriteHeader(http.StatusCreated)
			_, _ = rw.Write([]byte("done"))
		})
		handler := RequestIDWithOpts(RequestIDOpts{GenerateID: func() string { return "req-1" }})(Logging(recorder)(next))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/users", nil))

		servingEntry, found := recorder.FindEntry("serving")
		require.True(t, found)
		requestIDField, found := servingEntry.FindField("request_id")
		require.True(t, found)
		require.Equal(t, "req-1", string(requestIDField.Bytes))

		entry, found := findCompletedEntry(recorder)
		require.True(t, found)
		require.Equal(t, log.LevelInfo, entry.Level)
		statusField, found := entry.FindField("status")
		require.True(t, found)
		require.Equal(t, int64(http.StatusCreated), statusField.Int)
		bytesField, found := entry.FindField("bytes_sent")
		require.True(t, found)
		require.Equal(t, int64(4), bytesField.Int)
		methodField, found := entry.FindField("method")
		require.True(t, found)
		require.Equal(t, http.MethodPost, string(methodField.Bytes))
	})

	t.Run("nothing written means 200", func(t *testing.T) {
		recorder := logtest.NewRecorder()
		handler := Logging(recorder)(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		entry, found := findCompletedEntry(recorder)
		require.True(t, found)
		statusField, _ := entry.FindField("status")
		require.Equal(t, int64(http.StatusOK), statusField.Int)
	})

	t.Run("excluded endpoints are logged only on failure", func(t *testing.T) {
		recorder := logtest.NewRecorder()
		status := http.StatusOK
		handler := LoggingWithOpts(recorder, LoggingOpts{ExcludedEndpoints: []string{"/metrics"}})(
			http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) { rw.WriteHeader(status) }))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
		_, found := findCompletedEntry(recorder)
		require.False(t, found)

		status = http.StatusInternalServerError
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
		_, found = findCompletedEntry(recorder)
		require.True(t, found)
	})
}
