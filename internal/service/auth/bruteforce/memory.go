package bruteforce

import (
	"context"
	"sync"
	"time"
)

// In-process state of a single identifier.
// Entries are immutable: every update stores a new pointer.
type entry struct {
	count          int64
	countExpiresAt time.Time
	lockedUntil    time.Time
}

func (e *entry) countAlive(now time.Time) bool {
	return e.count > 0 && now.Before(e.countExpiresAt)
}

func (e *entry) locked(now time.Time) bool {
	return now.Before(e.lockedUntil)
}

// MemoryStore is an in-process AttemptStore.
// Updates for one identifier are linearizable through compare-and-swap,
// different identifiers never wait on each other.
type MemoryStore struct {
	entries sync.Map // map[string]*entry
	now     func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now}
}

func (s *MemoryStore) load(id string) *entry {
	v, ok := s.entries.Load(id)
	if !ok {
		return nil
	}
	return v.(*entry)
}

func (s *MemoryStore) IsLocked(_ context.Context, id string) (bool, error) {
	e := s.load(id)
	return e != nil && e.locked(s.now()), nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, id string, maxAttempts int64, lockout time.Duration) (Attempt, error) {
	for {
		now := s.now()
		cur := s.load(id)

		next := &entry{}
		if cur != nil {
			next.lockedUntil = cur.lockedUntil
			if cur.countAlive(now) {
				next.count = cur.count
				next.countExpiresAt = cur.countExpiresAt
			}
		}

		next.count++
		if next.count == 1 {
			next.countExpiresAt = now.Add(lockout)
		}

		tripped := next.count == maxAttempts
		if tripped {
			next.lockedUntil = now.Add(lockout)
		}

		var stored bool
		if cur == nil {
			_, loaded := s.entries.LoadOrStore(id, next)
			stored = !loaded
		} else {
			stored = s.entries.CompareAndSwap(id, cur, next)
		}

		if stored {
			return Attempt{
				Count:   next.count,
				Locked:  next.locked(now),
				Tripped: tripped,
			}, nil
		}
	}
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.entries.Delete(id)
	return nil
}

// Sweep removes entries whose counter and lock are both expired
// Returns number of removed entries
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0

	s.entries.Range(func(key, value any) bool {
		e := value.(*entry)
		if !e.countAlive(now) && !e.locked(now) {
			// Entry may be replaced concurrently, keep it then
			if s.entries.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})

	return removed
}

// Run sweeps expired entries every interval until ctx is done
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
