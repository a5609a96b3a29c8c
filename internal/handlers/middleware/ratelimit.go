package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/service/ratelimit"
)

type rateLimiter interface {
	Allow(ctx context.Context, method, path, client string) ratelimit.Decision
}

// RateLimit rejects clients over their tier budget with 429.
// Client is the peer address; forwarding headers are not trusted.
func RateLimit(limiter rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := limiter.Allow(r.Context(), r.Method, r.URL.Path, clientIP(r))
			if d.Tier == ratelimit.TierNone {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				render.TooManyRequests(w, "Rate limit exceeded", d.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
