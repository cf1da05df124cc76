/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-usagekit/log/logtest"
	"github.com/acronis/go-usagekit/testutil"
)

func startServer(t *testing.T, handler http.Handler) (*Server, <-chan error) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Address = "127.0.0.1:0"
	srv := New(cfg, handler, logtest.NewRecorder())
	fatalErr := make(chan error, 1)
	go srv.Start(fatalErr)
	require.Eventually(t, func() bool { return srv.Addr() != "" }, 5*time.Second, time.Millisecond)
	return srv, fatalErr
}

func TestServer(t *testing.T) {
	t.Run("serve and shut down gracefully", func(t *testing.T) {
		srv, fatalErr := startServer(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			_, _ = rw.Write([]byte("hello"))
		}))

		resp, err := http.Get("http://" + srv.Addr() + "/")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "hello", string(body))

		require.NoError(t, srv.Stop(true))
		testutil.RequireNoErrorInChannel(t, fatalErr)

		_, err = http.Get("http://" + srv.Addr() + "/")
		require.Error(t, err)
	})

	t.Run("close", func(t *testing.T) {
		srv, fatalErr := startServer(t, http.NotFoundHandler())
		require.NoError(t, srv.Stop(false))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	})

	t.Run("listen error", func(t *testing.T) {
		busySrv, _ := startServer(t, http.NotFoundHandler())
		defer func() { require.NoError(t, busySrv.Stop(true)) }()

		cfg := NewDefaultConfig()
		cfg.Address = busySrv.Addr()
		srv := New(cfg, http.NotFoundHandler(), nil)
		fatalErr := make(chan error, 1)
		srv.Start(fatalErr)
		require.Error(t, <-fatalErr)
		require.NoError(t, srv.Stop(true))
	})

	t.Run("stop before start", func(t *testing.T) {
		srv := New(NewDefaultConfig(), http.NotFoundHandler(), nil)
		require.NoError(t, srv.Stop(true))
	})
}
