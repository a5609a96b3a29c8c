// Package ratelimit limits requests per client in sliding one-minute windows.
// Requests fall in one of three tiers, each with its own budget.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/logger"
)

type Tier string

const (
	// Not limited
	TierNone Tier = ""

	// Authentication endpoints
	TierAuth Tier = "auth"

	// Other state changing requests
	TierWrite Tier = "write"

	// Everything else
	TierGlobal Tier = "global"
)

const (
	DefaultAuthLimit   = 10
	DefaultWriteLimit  = 30
	DefaultGlobalLimit = 100
	DefaultWindow      = time.Minute
)

// Requests allowed per window and tier
type Policy struct {
	Auth   int
	Write  int
	Global int

	Window time.Duration
}

// Decision for a single request
type Decision struct {
	Tier      Tier
	Allowed   bool
	Limit     int
	Remaining int

	// Window length, a rejected client may retry after it
	RetryAfter time.Duration
}

type Limiter struct {
	store  WindowStore
	policy Policy
	logger logger.Logger
}

func NewLimiter(store WindowStore, policy Policy, l logger.Logger) (*Limiter, error) {
	setDefault := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	setDefault(&policy.Auth, DefaultAuthLimit)
	setDefault(&policy.Write, DefaultWriteLimit)
	setDefault(&policy.Global, DefaultGlobalLimit)
	if policy.Window == 0 {
		policy.Window = DefaultWindow
	}

	if policy.Auth < 0 || policy.Write < 0 || policy.Global < 0 {
		return nil, fmt.Errorf("%w: rate limits must be positive", apperrors.ErrConfiguration)
	}
	if policy.Window < time.Millisecond {
		return nil, fmt.Errorf("%w: rate limit window must be at least 1ms, got %s", apperrors.ErrConfiguration, policy.Window)
	}

	return &Limiter{
		store:  store,
		policy: policy,
		logger: l.With("component", "ratelimit"),
	}, nil
}

func (l *Limiter) Policy() Policy {
	return l.policy
}

// Classify maps request to tier. Health checks are never limited
func Classify(method, path string) Tier {
	switch {
	case strings.HasPrefix(path, "/health/"):
		return TierNone
	case path == "/api/auth" || strings.HasPrefix(path, "/api/auth/"):
		return TierAuth
	}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return TierWrite
	}
	return TierGlobal
}

func (l *Limiter) limit(tier Tier) int {
	switch tier {
	case TierAuth:
		return l.policy.Auth
	case TierWrite:
		return l.policy.Write
	default:
		return l.policy.Global
	}
}

// Allow records request of client and tells whether it fits the tier budget.
// Store errors are logged and the request is allowed.
func (l *Limiter) Allow(ctx context.Context, method, path, client string) Decision {
	tier := Classify(method, path)
	if tier == TierNone {
		return Decision{Tier: tier, Allowed: true}
	}

	limit := l.limit(tier)
	d := Decision{Tier: tier, Allowed: true, Limit: limit, RetryAfter: l.policy.Window}

	w, err := l.store.Hit(ctx, string(tier)+":"+client, int64(limit), l.policy.Window)
	if err != nil {
		l.logger.Error("error while checking rate limit", "tier", string(tier), "error", err)
		d.Remaining = limit
		return d
	}

	d.Allowed = w.Allowed
	d.Remaining = max(limit-int(w.Count), 0)
	if !w.Allowed {
		l.logger.Info("rate limit exceeded", "tier", string(tier), "client", client, "limit", limit)
	}

	return d
}
