// Package cache provides the expiring key-value stores backing one-time codes.
package cache

import (
	"context"
	"time"
)

// Store is a process-wide key-value store with expiring entries.
// Implementations must make SetIfAbsent and CompareAndDelete atomic.
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	// SetIfAbsent stores value under key for ttl unless a live entry exists.
	// It reports whether the value was stored.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	// CompareAndDelete removes key only if it currently holds value.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}
