package ratelimit

import (
	"context"
	"time"
)

// WindowStore keeps sliding windows of request timestamps per key
type WindowStore interface {
	// Hit records request in the window of key unless limit is already reached
	Hit(ctx context.Context, key string, limit int64, window time.Duration) (Window, error)
}

// State of a window after Hit
type Window struct {
	// Request was recorded
	Allowed bool

	// Requests in window including this one if allowed
	Count int64
}
