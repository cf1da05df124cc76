/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-usagekit/log/logtest"
)

func TestRespondJSON(t *testing.T) {
	resp := httptest.NewRecorder()
	RespondJSON(resp, map[string]interface{}{"url": "/a?b=<c>"}, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, ContentTypeAppJSON, resp.Header().Get("Content-Type"))
	require.Equal(t, `{"url":"/a?b=<c>"}`, resp.Body.String())
}

func TestRespondCodeAndJSON(t *testing.T) {
	t.Run("nil data", func(t *testing.T) {
		resp := httptest.NewRecorder()
		RespondCodeAndJSON(resp, http.StatusAccepted, nil, nil)
		require.Equal(t, http.StatusAccepted, resp.Code)
		require.Empty(t, resp.Body.String())
	})

	t.Run("marshaling error", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		resp := httptest.NewRecorder()
		RespondCodeAndJSON(resp, http.StatusOK, math.Inf(1), logRecorder)
		require.Equal(t, http.StatusInternalServerError, resp.Code)
		_, found := logRecorder.FindEntry("error while marshaling json for response body")
		require.True(t, found)
	})
}

func TestRespondError(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	resp := httptest.NewRecorder()
	RespondError(resp, http.StatusTooManyRequests,
		NewTooManyRequestsError("MyService").AddContext("retryAfter", 5), logRecorder)

	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	require.JSONEq(t,
		`{"error":{"domain":"MyService","code":"tooManyRequests","message":"Too many requests.","context":{"retryAfter":5}}}`,
		resp.Body.String())

	entry, found := logRecorder.FindEntry("error in response")
	require.True(t, found)
	field, found := entry.FindField("error_code")
	require.True(t, found)
	require.Equal(t, "tooManyRequests", string(field.Bytes))
}

func TestRespondInternalError(t *testing.T) {
	resp := httptest.NewRecorder()
	RespondInternalError(resp, "MyService", nil)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.JSONEq(t, `{"error":{"domain":"MyService","code":"internalError","message":"Internal error."}}`, resp.Body.String())
}

func TestRespondText(t *testing.T) {
	resp := httptest.NewRecorder()
	RespondText(resp, "a\nb", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, ContentTypeTextPlain, resp.Header().Get("Content-Type"))
	require.Equal(t, "a\nb", resp.Body.String())
}
