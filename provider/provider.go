// Package provider defines the byte store that rendercache frames entries into.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the bytes
// previously passed to Set for the key. The store decides validity (max-age, tag
// versions) from the frame itself, so a provider's TTL is only a hint for reclaiming
// space and providers without per-entry TTL remain correct.
//
// The keyspace "entry:<ns>:" is owned by rendercache. Foreign values written there are
// treated as corruption and deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// Backend failures return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry. cost may be ignored.
	// ok=false means the store refused the write (admission, pressure).
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
