package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/handlers/middleware"
	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/logger"
)

const accountLockedMessage = "Too many failed attempts. Account temporarily locked."

var bearerToken = middleware.BearerToken

type credentialsRequest struct {
	Login    string `json:"login" validate:"required,min=2,max=255,username"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
}

func handleRegister(s authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[credentialsRequest](w, r)
		if err != nil {
			return
		}

		pair, err := s.Register(r.Context(), data.Login, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrUserAlreadyExists):
				render.ServiceError(w, "User already exists", http.StatusConflict)
			default:
				logger.Error("error while registering user", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		renderTokens(w, r, pair)
	})
}

func handleLogin(s authService, logger logger.Logger) http.Handler {
	// Login is not validated for length: too long or short ones just fail
	type request struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := s.Login(r.Context(), data.Login, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrAccountLocked):
				render.ServiceError(w, accountLockedMessage, http.StatusTooManyRequests)
			case errors.Is(err, apperrors.ErrInvalidCredentials):
				render.ServiceError(w, "Invalid login or password", http.StatusUnauthorized)
			case errors.Is(err, apperrors.ErrUserInactive):
				render.ServiceError(w, "User is inactive", http.StatusForbidden)
			default:
				logger.Error("error while logging in", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		renderTokens(w, r, pair)
	})
}

func handleRefresh(s authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh := refreshFromRequest(r)
		if refresh == "" {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := s.Refresh(r.Context(), refresh)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrInvalidToken):
				render.ServiceError(w, "Refresh token is invalid or expired", http.StatusUnauthorized)
			case errors.Is(err, apperrors.ErrUserInactive):
				render.ServiceError(w, "User is inactive", http.StatusForbidden)
			default:
				logger.Error("error while refreshing tokens", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		renderTokens(w, r, pair)
	})
}

// Tokens stay valid until expiry, client just forgets them
func handleLogout() http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clearRefreshCookie(w, r)
		render.JSON(w, response{Message: "Logged out"})
	})
}
