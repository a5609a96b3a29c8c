package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/handlers/middleware"
	"github.com/nkiryanov/authgate/internal/service/ratelimit"
)

func Test_Router(t *testing.T) {
	t.Parallel()

	t.Run("auth tier limited per client", func(t *testing.T) {
		srv := startServerWithLimits(t, HealthChecks{}, ratelimit.Policy{Auth: 3, Write: 1000, Global: 1000})
		credentials := `{"login": "nk", "password": "WrongPassword"}`

		for range 3 {
			resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/login", credentials)
			require.Equal(t, http.StatusUnauthorized, resp.code)
		}

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/login", credentials)

		require.Equal(t, http.StatusTooManyRequests, resp.code)
		require.JSONEq(t, `{"error": "service_error", "message": "Rate limit exceeded"}`, resp.body)
		require.Equal(t, "60", resp.header.Get("Retry-After"))
		require.Equal(t, "0", resp.header.Get("X-RateLimit-Remaining"))

		resp = doRequest(t, http.MethodGet, srv.URL+"/health/live", "")
		require.Equal(t, http.StatusOK, resp.code, "health checks are not limited")
	})

	t.Run("request id echoed", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})

		resp := doRequest(t, http.MethodGet, srv.URL+"/health/live", "", func(r *http.Request) {
			r.Header.Set(middleware.RequestIDHeader, "trace-1")
		})

		require.Equal(t, "trace-1", resp.header.Get(middleware.RequestIDHeader))
	})

	t.Run("security headers on every response", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})

		resp := doRequest(t, http.MethodGet, srv.URL+"/api/user/me", "")

		require.Equal(t, http.StatusUnauthorized, resp.code)
		require.Equal(t, "nosniff", resp.header.Get("X-Content-Type-Options"))
		require.Equal(t, "no-store", resp.header.Get("Cache-Control"))
		require.NotEmpty(t, resp.header.Get(middleware.RequestIDHeader))
	})
}
