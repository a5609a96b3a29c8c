package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Hits of one key, oldest first. Immutable: updates store a new pointer.
type window struct {
	hits   []time.Time
	length time.Duration
}

// Hits newer than now - length
func (w *window) alive(now time.Time) []time.Time {
	if w == nil {
		return nil
	}
	cutoff := now.Add(-w.length)
	for i, t := range w.hits {
		if t.After(cutoff) {
			return w.hits[i:]
		}
	}
	return nil
}

// MemoryStore is an in-process WindowStore. Keys are updated by
// compare-and-swap, so concurrent hits on one key never exceed limit.
type MemoryStore struct {
	windows sync.Map // map[string]*window
	now     func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now}
}

func (s *MemoryStore) load(key string) *window {
	v, ok := s.windows.Load(key)
	if !ok {
		return nil
	}
	return v.(*window)
}

func (s *MemoryStore) Hit(_ context.Context, key string, limit int64, length time.Duration) (Window, error) {
	for {
		now := s.now()
		old := s.load(key)
		alive := old.alive(now)

		if int64(len(alive)) >= limit {
			return Window{Allowed: false, Count: int64(len(alive))}, nil
		}

		hits := make([]time.Time, 0, len(alive)+1)
		hits = append(hits, alive...)
		hits = append(hits, now)
		next := &window{hits: hits, length: length}

		if old == nil {
			if _, loaded := s.windows.LoadOrStore(key, next); loaded {
				continue
			}
		} else if !s.windows.CompareAndSwap(key, old, next) {
			continue
		}

		return Window{Allowed: true, Count: int64(len(hits))}, nil
	}
}

// Sweep drops windows without alive hits and returns how many were dropped
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0

	s.windows.Range(func(key, value any) bool {
		w := value.(*window)
		if len(w.alive(now)) == 0 && s.windows.CompareAndDelete(key, w) {
			removed++
		}
		return true
	})

	return removed
}

// Run sweeps windows every interval until ctx is done
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
