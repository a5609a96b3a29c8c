package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/models"
)

func decodeTokens(t *testing.T, body string) tokenResponse {
	t.Helper()

	var tokens tokenResponse
	require.NoError(t, json.Unmarshal([]byte(body), &tokens), "tokens response should be JSON")
	return tokens
}

func Test_AuthHandler(t *testing.T) {
	t.Parallel()

	credentials := `{"login": "nk", "password": "StrongEnoughPassword"}`

	t.Run("register ok", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/register", credentials)

		require.Equalf(t, http.StatusOK, resp.code, "not expected code. Body: %s", resp.body)
		tokens := decodeTokens(t, resp.body)
		require.Equal(t, "bearer", tokens.TokenType)

		claims, err := srv.tokens.Parse(tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, models.TokenKindAccess, claims.Kind)
		require.Equal(t, models.RoleViewer, claims.Role)
	})

	t.Run("register duplicate", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})
		srv.users.add("nk", "StrongEnoughPassword", models.RoleViewer)

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/register", credentials)

		require.Equal(t, http.StatusConflict, resp.code)
		require.JSONEq(t, `{"error": "service_error", "message": "User already exists"}`, resp.body)
	})

	t.Run("register validation", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/register", `{"login": " nk", "password": "short"}`)

		require.Equal(t, http.StatusBadRequest, resp.code)
		require.JSONEq(t, `{
			"error": "validation_failed",
			"message": "Request validation failed",
			"fields": {
				"login": "Must not contain control characters or surrounding spaces",
				"password": "Value is too short (minimum 8)"
			}
		}`, resp.body)
	})

	t.Run("login ok delivers tokens three ways", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})
		srv.users.add("nk", "StrongEnoughPassword", models.RoleViewer)

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/login", credentials)

		require.Equalf(t, http.StatusOK, resp.code, "not expected code. Body: %s", resp.body)
		tokens := decodeTokens(t, resp.body)

		require.Equal(t, "Bearer "+tokens.AccessToken, resp.header.Get("Authorization"))

		require.Len(t, resp.cookies, 1)
		cookie := resp.cookies[0]
		require.Equal(t, "refreshtoken", cookie.Name)
		require.Equal(t, tokens.RefreshToken, cookie.Value)
		require.True(t, cookie.HttpOnly, "refresh cookie should be HttpOnly")
		require.Equal(t, "/api/auth", cookie.Path)
		require.Equal(t, http.SameSiteStrictMode, cookie.SameSite, "refresh cookie should be SameSite Strict")
		require.WithinDuration(t, time.Now().Add(7*24*time.Hour), cookie.Expires, 5*time.Second, "cookie should live as refresh token")
	})

	t.Run("login wrong password", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})
		srv.users.add("nk", "StrongEnoughPassword", models.RoleViewer)

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/login", `{"login": "nk", "password": "wrong"}`)

		require.Equal(t, http.StatusUnauthorized, resp.code)
		require.JSONEq(t, `{"error": "service_error", "message": "Invalid login or password"}`, resp.body)
	})

	t.Run("login locked after five failures", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})
		srv.users.add("nk", "StrongEnoughPassword", models.RoleViewer)

		for i := range 5 {
			resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/login", `{"login": "nk", "password": "wrong"}`)
			require.Equal(t, http.StatusUnauthorized, resp.code, fmt.Sprintf("attempt %d", i+1))
		}

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/login", credentials)

		require.Equal(t, http.StatusTooManyRequests, resp.code)
		require.JSONEq(t, `{
			"error": "service_error",
			"message": "Too many failed attempts. Account temporarily locked."
		}`, resp.body, "counter value must not be revealed")
	})

	t.Run("login inactive", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})
		user := srv.users.add("nk", "StrongEnoughPassword", models.RoleViewer)
		_, err := srv.users.SetActive(t.Context(), user.ID, false)
		require.NoError(t, err)

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/login", credentials)

		require.Equal(t, http.StatusForbidden, resp.code)
	})

	t.Run("refresh with cookie", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})
		srv.users.add("nk", "StrongEnoughPassword", models.RoleViewer)
		login := doRequest(t, http.MethodPost, srv.URL+"/api/auth/login", credentials)
		require.Equal(t, http.StatusOK, login.code)

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/refresh", "", withCookie(login.cookies[0]))

		require.Equalf(t, http.StatusOK, resp.code, "not expected code. Body: %s", resp.body)
		tokens := decodeTokens(t, resp.body)
		require.NotEqual(t, decodeTokens(t, login.body).RefreshToken, tokens.RefreshToken, "new pair expected")
	})

	t.Run("refresh with bearer", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})
		srv.users.add("nk", "StrongEnoughPassword", models.RoleViewer)
		login := doRequest(t, http.MethodPost, srv.URL+"/api/auth/login", credentials)
		require.Equal(t, http.StatusOK, login.code)

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/refresh", "", withBearer(decodeTokens(t, login.body).RefreshToken))

		require.Equalf(t, http.StatusOK, resp.code, "not expected code. Body: %s", resp.body)
	})

	t.Run("refresh with access token rejected", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})
		srv.users.add("nk", "StrongEnoughPassword", models.RoleViewer)
		login := doRequest(t, http.MethodPost, srv.URL+"/api/auth/login", credentials)
		require.Equal(t, http.StatusOK, login.code)

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/refresh", "", withBearer(decodeTokens(t, login.body).AccessToken))

		require.Equal(t, http.StatusUnauthorized, resp.code)
	})

	t.Run("refresh without token", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/refresh", "")

		require.Equal(t, http.StatusUnauthorized, resp.code)
		require.JSONEq(t, `{"error": "service_error", "message": "Refresh token not found"}`, resp.body)
	})

	t.Run("logout clears cookie", func(t *testing.T) {
		srv := startServer(t, HealthChecks{})

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/auth/logout", "")

		require.Equal(t, http.StatusOK, resp.code)
		require.Len(t, resp.cookies, 1)
		require.Equal(t, "refreshtoken", resp.cookies[0].Name)
		require.Empty(t, resp.cookies[0].Value)
		require.Equal(t, -1, resp.cookies[0].MaxAge)
	})
}
