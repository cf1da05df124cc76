/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestIDHandler_ServeHTTP(t *testing.T) {
	var gotRequestID string
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotRequestID = GetRequestIDFromContext(r.Context())
	})

	t.Run("request id is generated", func(t *testing.T) {
		respRec := httptest.NewRecorder()
		RequestID()(next).ServeHTTP(respRec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, gotRequestID)
		require.Len(t, gotRequestID, 20) // xid string length
		require.Equal(t, gotRequestID, respRec.Header().Get(headerRequestID))
	})

	t.Run("request id is taken from header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(headerRequestID, "my-request-id")
		respRec := httptest.NewRecorder()
		RequestIDWithOpts(RequestIDOpts{GenerateID: func() string { return "generated" }})(next).ServeHTTP(respRec, req)
		require.Equal(t, "my-request-id", gotRequestID)
		require.Equal(t, "my-request-id", respRec.Header().Get(headerRequestID))
	})

	t.Run("custom generator", func(t *testing.T) {
		respRec := httptest.NewRecorder()
		RequestIDWithOpts(RequestIDOpts{GenerateID: func() string { return "generated" }})(next).ServeHTTP(
			respRec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, "generated", gotRequestID)
		require.Equal(t, "generated", respRec.Header().Get(headerRequestID))
	})
}
