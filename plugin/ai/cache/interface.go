// Package cache provides the in-process caches used by the funnel: serialized
// dialog state in front of the store and model decisions per utterance.
package cache

import (
	"context"
	"time"
)

// CacheService stores opaque byte values with expiry.
type CacheService interface {
	// Get retrieves a value from cache.
	// Returns: value, whether it exists
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value in cache.
	// ttl: expiration time, 0 uses the default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate invalidates cache entries.
	// pattern: exact key or prefix wildcard (dialog:*)
	Invalidate(ctx context.Context, pattern string) error
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}
