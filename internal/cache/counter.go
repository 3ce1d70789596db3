// Package cache provides expiring counters shared by the login throttle.
package cache

import (
	"context"
	"time"
)

// Counter is a set of integer counters whose window starts at the first increment.
type Counter interface {
	// Incr adds one to key and returns the new value. The key expires window
	// after its first increment.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Get returns the current value, or 0 when the key is absent or expired.
	Get(ctx context.Context, key string) (int64, error)
	// Reset removes key.
	Reset(ctx context.Context, key string) error
}
