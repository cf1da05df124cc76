/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-usagekit/restapi"
)

// RequireErrorInRecorder asserts that the recorded response has the status code
// and the {"error": {...}} JSON body with the domain and the code.
func RequireErrorInRecorder(
	t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, wantErrDomain, wantErrCode string,
) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, resp.Code)
	require.Equal(t, restapi.ContentTypeAppJSON, resp.Header().Get("Content-Type"))
	var respData restapi.ErrorResponseData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&respData))
	require.NotNil(t, respData.Err)
	require.Equal(t, wantErrDomain, respData.Err.Domain)
	require.Equal(t, wantErrCode, respData.Err.Code)
}

// RequireRetryAfterInRecorder asserts that the recorded response has the Retry-After header
// with the specified number of whole seconds. Zero means the header must be absent.
func RequireRetryAfterInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, want time.Duration) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	header := resp.Header().Get("Retry-After")
	if want == 0 {
		require.Empty(t, header)
		return
	}
	secs, err := strconv.Atoi(header)
	require.NoError(t, err, "Retry-After header should contain a number of seconds")
	require.Equal(t, want, time.Duration(secs)*time.Second)
}
