package ratelimit

import "context"

// Storage is the key-value medium limiter state is persisted to.
// Implementations must tolerate concurrent callers; the limiter performs no
// locking across processes sharing the same medium.
type Storage interface {
	// Get returns the raw value stored under key and whether it exists.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
