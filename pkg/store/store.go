// Package store provides the persistence layer behind the metadata cache:
// a small keyed-blob interface with write timestamps, backed by memory,
// files, Redis, or MongoDB. Expiry policy lives in the cache layer; a store
// only records when each value was written.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Store is a keyed blob store. Implementations must be safe for concurrent
// use. Get reports the write time of the value so callers can apply their own
// freshness rules; a missing key is (nil, zero, false, nil), not an error.
type Store interface {
	// Get retrieves the value and its write time. ok is false on a miss.
	Get(ctx context.Context, key string) (data []byte, writtenAt time.Time, ok bool, err error)

	// Put stores the value, stamping it with the current time.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key with the given prefix and returns how
	// many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Count returns the number of keys with the given prefix.
	Count(ctx context.Context, prefix string) (int, error)

	// Close releases backend resources.
	Close() error
}

// hashKey maps an arbitrary key to a fixed-length hex string, used by
// backends that cannot store raw keys as identifiers.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
