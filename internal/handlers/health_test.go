package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_HealthHandler(t *testing.T) {
	t.Parallel()

	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("down") })

	t.Run("live", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})

		resp := doRequest(t, http.MethodGet, srv.URL+"/health/live", "")

		require.Equal(t, http.StatusOK, resp.code)
		require.JSONEq(t, `{"status": "ok"}`, resp.body)
	})

	t.Run("ready", func(t *testing.T) {
		srv := startServer(t, HealthChecks{Database: ok, Cache: ok})

		resp := doRequest(t, http.MethodGet, srv.URL+"/health/ready", "")

		require.Equal(t, http.StatusOK, resp.code)
		require.JSONEq(t, `{"status": "ok", "checks": {"database": "ok", "cache": "ok"}}`, resp.body)
	})

	t.Run("ready with cache down", func(t *testing.T) {
		srv := startServer(t, HealthChecks{Database: ok, Cache: down})

		resp := doRequest(t, http.MethodGet, srv.URL+"/health/ready", "")

		require.Equal(t, http.StatusOK, resp.code, "cache outage must not fail readiness")
		require.JSONEq(t, `{"status": "ok", "checks": {"database": "ok", "cache": "unavailable"}}`, resp.body)
	})

	t.Run("not ready with database down", func(t *testing.T) {
		srv := startServer(t, HealthChecks{Database: down, Cache: ok})

		resp := doRequest(t, http.MethodGet, srv.URL+"/health/ready", "")

		require.Equal(t, http.StatusServiceUnavailable, resp.code)
		require.JSONEq(t, `{"status": "unavailable", "checks": {"database": "unavailable", "cache": "ok"}}`, resp.body)
	})
}
