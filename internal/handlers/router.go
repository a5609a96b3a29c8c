package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/handlers/middleware"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/service/ratelimit"
)

const refreshPath = "/api/auth/refresh"

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// Refresh endpoint is the only place refresh tokens authenticate
func isRefreshRequest(r *http.Request) bool {
	return r.URL.Path == refreshPath
}

func NewRouter(
	authService authService,
	userService userService,
	gate authenticator,
	limiter rateLimiter,
	health HealthChecks,
	logger logger.Logger,
) http.Handler {
	apiauth := http.NewServeMux()
	apiauth.Handle("POST /register", handleRegister(authService, logger))
	apiauth.Handle("POST /login", handleLogin(authService, logger))
	apiauth.Handle("POST /refresh", handleRefresh(authService, logger))
	apiauth.Handle("POST /logout", handleLogout())

	apiuser := http.NewServeMux()
	apiuser.Handle("GET /me", middleware.RequireAuth(handleUserMe(userService, logger)))

	apiadmin := http.NewServeMux()
	apiadmin.Handle("PATCH /users/{id}", middleware.RequireRole(models.RoleAdmin)(handleSetUserActive(userService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))
	root.Handle("/api/admin/", http.StripPrefix("/api/admin", apiadmin))
	root.Handle("GET /health/live", handleLive())
	root.Handle("GET /health/ready", handleReady(health, logger))

	handler := chain(root,
		middleware.RequestID,
		middleware.SecurityHeaders,
		middleware.RequestLogger(logger),
		middleware.Recover(logger),
		middleware.RateLimit(limiter),
		middleware.Authenticate(gate, isRefreshRequest),
	)

	return handler
}

type authenticator interface {
	Authenticate(ctx context.Context, credential string, isRefreshOp bool) (models.Principal, bool)
}

type rateLimiter interface {
	Allow(ctx context.Context, method, path, client string) ratelimit.Decision
}

type authService interface {
	// Register user with username and password
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Login user with username and password
	// apperrors.ErrAccountLocked while too many failures
	// apperrors.ErrInvalidCredentials for unknown user or wrong password
	// apperrors.ErrUserInactive for deactivated user
	Login(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Exchange refresh token to a new pair
	// apperrors.ErrInvalidToken if token is not a valid refresh token
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)
}

type userService interface {
	GetUserBySubject(ctx context.Context, subjectID string) (models.User, error)
	SetActive(ctx context.Context, userID uuid.UUID, active bool) (models.User, error)
}
