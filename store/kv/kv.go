// Package kv provides the keyed value store used for sessions, handoff
// tokens and workflow state. Every operation is atomic per key; cross-key
// operations take no shared lock.
package kv

import (
	"context"
	"time"
)

// UpdateFunc transforms the current value of a key. found is false when the
// key is absent or expired. Returning (nil, nil) deletes the key.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// KV defines the narrow store contract consumed by the conversation engine.
type KV interface {
	// Get retrieves a value. Returns found=false for absent or expired keys.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. ttl <= 0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Update applies fn to the current value of key under the key's lock.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error

	// Keys lists live keys with the given prefix. Used by reaper jobs.
	Keys(ctx context.Context, prefix string) ([]string, error)

	Close() error
}
