package bruteforce

import (
	"context"
	"time"
)

// AttemptStore keeps failure counters and locks per identifier.
// Identifiers are case sensitive and independent of each other.
type AttemptStore interface {
	// IsLocked reports whether identifier has an unexpired lock
	IsLocked(ctx context.Context, id string) (bool, error)

	// RecordFailure atomically increments the failure counter.
	// Counter gets lockout ttl on first increment.
	// Lock with the same ttl is set when counter becomes equal to maxAttempts.
	RecordFailure(ctx context.Context, id string, maxAttempts int64, lockout time.Duration) (Attempt, error)

	// Clear removes both the counter and the lock
	Clear(ctx context.Context, id string) error
}

// Result of a recorded failure
type Attempt struct {
	// Failures counted so far within the counter ttl
	Count int64

	// Identifier is locked after this failure
	Locked bool

	// This very failure set the lock
	Tripped bool
}
