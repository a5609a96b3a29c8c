package ratelimit

import (
	"context"
	"time"

	"github.com/nkiryanov/authgate/internal/failover"
	"github.com/nkiryanov/authgate/internal/logger"
)

// Shared store that can report its liveness
type PrimaryStore interface {
	WindowStore
	Ping(ctx context.Context) error
}

// Failover sends hits to primary while it answers the ping, to fallback otherwise.
// A hit whose Redis reply was lost is recorded on fallback as well.
type Failover struct {
	sw *failover.Switch[WindowStore]
}

func NewFailover(primary PrimaryStore, fallback WindowStore, pingTimeout time.Duration, l logger.Logger) *Failover {
	return &Failover{
		sw: failover.New[WindowStore](primary, primary.Ping, fallback, pingTimeout, l.With("component", "ratelimit_failover")),
	}
}

func (f *Failover) Hit(ctx context.Context, key string, limit int64, length time.Duration) (Window, error) {
	return failover.Do(ctx, f.sw, "hit", func(ctx context.Context, s WindowStore) (Window, error) {
		return s.Hit(ctx, key, limit, length)
	})
}
