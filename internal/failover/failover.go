// Package failover runs calls on a shared primary backend while it answers a
// ping and on a local fallback otherwise.
package failover

import (
	"context"
	"time"

	"github.com/nkiryanov/authgate/internal/logger"
)

const DefaultPingTimeout = 300 * time.Millisecond

// Switch picks the backend for every call. There is no sticky mode:
// each call pings again, so the primary is used as soon as it is back.
//
// A primary operation that fails after a good ping is redone on the
// fallback. When the primary applied the write but the reply was lost
// (timeout on the ping deadline), the write lands on both backends.
// Counters may then count one event twice; availability wins here.
// The backends are never merged.
type Switch[S any] struct {
	primary  S
	ping     func(ctx context.Context) error
	fallback S
	timeout  time.Duration
	logger   logger.Logger
}

// New builds a switch. ping checks the primary, pingTimeout bounds the ping
// and the primary operation together.
func New[S any](primary S, ping func(ctx context.Context) error, fallback S, pingTimeout time.Duration, l logger.Logger) *Switch[S] {
	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}
	return &Switch[S]{
		primary:  primary,
		ping:     ping,
		fallback: fallback,
		timeout:  pingTimeout,
		logger:   l,
	}
}

// Do runs fn on primary if it is alive, fallback otherwise.
// op names the call in logs.
func Do[S, T any](ctx context.Context, s *Switch[S], op string, fn func(context.Context, S) (T, error)) (T, error) {
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ping(pingCtx); err != nil {
		s.logger.Debug("primary store unavailable, using fallback", "op", op, "error", err)
		return fn(ctx, s.fallback)
	}

	res, err := fn(pingCtx, s.primary)
	if err != nil {
		s.logger.Warn("primary store failed, using fallback", "op", op, "error", err)
		return fn(ctx, s.fallback)
	}
	return res, nil
}
