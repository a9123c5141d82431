// Package store holds the key/value backends used for score memoization and
// client interests.
//
// Error Contract:
// - Get returns sentinel.ErrNotFound (wrapped) when the key is absent or expired
// - Backend failures are returned wrapped with sentinel.ErrUnavailable
// - Set returns nil on success
package store

import (
	"context"
	"time"
)

// Cache is the minimal contract every backend implements.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}
