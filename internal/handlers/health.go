package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/logger"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies checked by readiness endpoint
type HealthChecks struct {
	// Required: service is not ready without it
	Database pinger

	// Reported only: login guard falls back to memory when cache is down
	Cache pinger
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func handleLive() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, healthResponse{Status: "ok"})
	})
}

func handleReady(checks HealthChecks, logger logger.Logger) http.Handler {
	check := func(ctx context.Context, p pinger) string {
		if p == nil {
			return "disabled"
		}
		if err := p.Ping(ctx); err != nil {
			return "unavailable"
		}
		return "ok"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		resp := healthResponse{
			Status: "ok",
			Checks: map[string]string{
				"database": check(ctx, checks.Database),
				"cache":    check(ctx, checks.Cache),
			},
		}

		if resp.Checks["database"] == "unavailable" {
			resp.Status = "unavailable"
			logger.Warn("readiness check failed", "checks", resp.Checks)
			render.JSONWithStatus(w, resp, http.StatusServiceUnavailable)
			return
		}

		render.JSON(w, resp)
	})
}
