package bruteforce

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/logger"
)

const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 15 * time.Minute
)

type Policy struct {
	// Failures allowed before the identifier is locked
	MaxAttempts int

	// Lock duration. Also the failure counter lifetime
	LockoutDuration time.Duration
}

// Guard limits authentication attempts per identifier.
// Store errors are logged and never returned.
type Guard struct {
	store  AttemptStore
	policy Policy
	logger logger.Logger
}

func NewGuard(store AttemptStore, policy Policy, l logger.Logger) (*Guard, error) {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.LockoutDuration == 0 {
		policy.LockoutDuration = DefaultLockoutDuration
	}

	if policy.MaxAttempts < 0 {
		return nil, fmt.Errorf("%w: max attempts must be positive, got %d", apperrors.ErrConfiguration, policy.MaxAttempts)
	}
	if policy.LockoutDuration < time.Millisecond {
		return nil, fmt.Errorf("%w: lockout duration must be at least 1ms, got %s", apperrors.ErrConfiguration, policy.LockoutDuration)
	}

	return &Guard{
		store:  store,
		policy: policy,
		logger: l.With("component", "bruteforce_guard"),
	}, nil
}

func (g *Guard) Policy() Policy {
	return g.policy
}

// Check returns apperrors.ErrAccountLocked while identifier is locked
func (g *Guard) Check(ctx context.Context, id string) error {
	locked, err := g.store.IsLocked(ctx, id)
	if err != nil {
		g.logger.Error("error while checking lock", "id_hash", hashID(id), "error", err)
		return nil
	}
	if locked {
		return apperrors.ErrAccountLocked
	}
	return nil
}

func (g *Guard) RecordFailure(ctx context.Context, id string) Attempt {
	attempt, err := g.store.RecordFailure(ctx, id, int64(g.policy.MaxAttempts), g.policy.LockoutDuration)
	if err != nil {
		g.logger.Error("error while recording failure", "id_hash", hashID(id), "error", err)
		return Attempt{}
	}

	if attempt.Tripped {
		g.logger.Warn("identifier locked after failed attempts",
			"id_hash", hashID(id),
			"attempts", attempt.Count,
			"lockout", g.policy.LockoutDuration.String(),
		)
	}

	return attempt
}

// Clear drops counter and lock. Call it on successful login
func (g *Guard) Clear(ctx context.Context, id string) {
	if err := g.store.Clear(ctx, id); err != nil {
		g.logger.Error("error while clearing attempts", "id_hash", hashID(id), "error", err)
	}
}

// Identifiers are personal data, only short hash goes to logs
func hashID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}
