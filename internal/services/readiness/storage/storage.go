// Package storage defines the key-value contract that carries every piece of
// cross-invocation state: dedup records, pending verifications, locks,
// project profiles and last processed push shas.
//
// Implementations offer atomic single-key operations only. Callers must not
// assume multi-key transactions or compare-and-swap.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a key is absent or its TTL has elapsed.
var ErrNotFound = errors.New("record not found")

// KV is the external key-value store.
type KV interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for key. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Store is a KV backend that owns resources.
type Store interface {
	KV
	Close() error
}
