// Package kvstore provides the TTL key-value store interface backing the
// short-term memory tier, with in-memory and Redis implementations.
package kvstore

import (
	"context"
	"time"
)

// KeepTTL leaves a key's remaining expiration untouched on write. A TTL of
// zero writes the key with no expiration (persistent).
const KeepTTL = time.Duration(-1)

// Store is a key-value store with per-key expiration. Implementations must
// be safe for concurrent use.
type Store interface {
	// Set writes value under key. ttl > 0 sets an expiration, ttl == 0
	// makes the key persistent, and KeepTTL preserves the remaining
	// expiration of an existing key (the write fails silently into a
	// no-op if the key does not exist in that mode).
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value at key. ok is false if the key is absent or
	// expired; err reports infrastructure failure only.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int, error)

	// Expire resets the expiration countdown on key. Returns false if the
	// key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Persist removes the expiration from key, making it durable until
	// deleted. Returns false if the key does not exist.
	Persist(ctx context.Context, key string) (bool, error)

	// Scan pages through keys matching pattern ("prefix*" glob). A zero
	// cursor starts a scan; iteration is complete when the returned
	// cursor is zero.
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) (keys []string, next uint64, err error)

	// Close releases the underlying connection or storage.
	Close() error
}
