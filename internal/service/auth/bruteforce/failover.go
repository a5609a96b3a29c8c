package bruteforce

import (
	"context"
	"time"

	"github.com/nkiryanov/authgate/internal/failover"
	"github.com/nkiryanov/authgate/internal/logger"
)

const DefaultPingTimeout = failover.DefaultPingTimeout

// Shared store that can report its liveness
type PrimaryStore interface {
	AttemptStore
	Ping(ctx context.Context) error
}

// Failover picks the store for every call: primary when its ping succeeds,
// fallback otherwise. Primary errors are absorbed by redoing the call on fallback.
// The two stores are never merged.
//
// If Redis ran the failure script but the reply timed out, the retry counts
// the same failure once more on the memory store. A lock may then trip one
// attempt early on the fallback; that is accepted to keep logins answering.
type Failover struct {
	sw *failover.Switch[AttemptStore]
}

func NewFailover(primary PrimaryStore, fallback AttemptStore, pingTimeout time.Duration, l logger.Logger) *Failover {
	return &Failover{
		sw: failover.New[AttemptStore](primary, primary.Ping, fallback, pingTimeout, l.With("component", "bruteforce_failover")),
	}
}

func (f *Failover) IsLocked(ctx context.Context, id string) (bool, error) {
	return failover.Do(ctx, f.sw, "is_locked", func(ctx context.Context, s AttemptStore) (bool, error) {
		return s.IsLocked(ctx, id)
	})
}

func (f *Failover) RecordFailure(ctx context.Context, id string, maxAttempts int64, lockout time.Duration) (Attempt, error) {
	return failover.Do(ctx, f.sw, "record_failure", func(ctx context.Context, s AttemptStore) (Attempt, error) {
		return s.RecordFailure(ctx, id, maxAttempts, lockout)
	})
}

func (f *Failover) Clear(ctx context.Context, id string) error {
	_, err := failover.Do(ctx, f.sw, "clear", func(ctx context.Context, s AttemptStore) (struct{}, error) {
		return struct{}{}, s.Clear(ctx, id)
	})
	return err
}
