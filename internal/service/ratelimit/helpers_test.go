package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errStoreDown = errors.New("store is down")

// Store that fails every call
type brokenStore struct{}

func (brokenStore) Ping(context.Context) error { return errStoreDown }
func (brokenStore) Hit(context.Context, string, int64, time.Duration) (Window, error) {
	return Window{}, errStoreDown
}
