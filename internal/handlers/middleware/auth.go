package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/handlers/userctx"
	"github.com/nkiryanov/authgate/internal/models"
)

type authenticator interface {
	Authenticate(ctx context.Context, credential string, isRefreshOp bool) (models.Principal, bool)
}

// Extract token from 'Authorization: Bearer <token>' header
// Empty string if header is missing or malformed
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate puts principal to request context when bearer credential is valid.
// It never writes response, use RequireAuth to reject anonymous requests.
// isRefresh marks requests where refresh tokens are accepted, may be nil.
func Authenticate(gate authenticator, isRefresh func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			refreshOp := isRefresh != nil && isRefresh(r)

			principal, ok := gate.Authenticate(r.Context(), BearerToken(r), refreshOp)
			if ok {
				r = r.WithContext(userctx.New(r.Context(), principal))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userctx.FromContext(r.Context()); !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects anonymous with 401 and other roles with 403
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := userctx.FromContext(r.Context())
			if principal.Role != role {
				render.ServiceError(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
