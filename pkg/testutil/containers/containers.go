//go:build integration

// Package containers starts backing services for integration tests. Each
// service is started at most once per test binary and shared by every suite
// in it; Ryuk removes the containers when the process exits.
package containers

import (
	"context"
	"sync"
	"testing"
)

var sharedRedis = sync.OnceValues(func() (*RedisContainer, error) {
	return startRedis(context.Background())
})

// Redis returns the shared Redis container, failing t if it cannot start.
func Redis(t *testing.T) *RedisContainer {
	t.Helper()
	c, err := sharedRedis()
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	return c
}
