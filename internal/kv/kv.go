package kv

import "context"

// Store is a durable string key-value store that survives process restarts
// until keys are explicitly deleted.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set writes all pairs atomically where the backend supports it.
	Set(ctx context.Context, pairs map[string]string) error
	// Delete removes the keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
