// Package localcache defines the local read-through cache used by the
// storage-backed KV.
//
// A cache is advisory: the KV never trusts an entry it cannot validate and
// falls back to the object store on any miss or error. Implementations MUST
// be byte-for-byte transparent: Get returns exactly the []byte previously
// passed to Set for a key.
//
// The keyspace is owned by the KV that opened the cache. Sharing one cache
// between differently configured KVs works only if their key prefixes differ.
package localcache

import (
	"context"
	"time"
)

// Cache is a minimal byte store with TTLs.
type Cache interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL (<= 0 means no expiry). May ignore
	// cost if unsupported. ok=false means the store refused the write.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Clear drops every entry this cache owns.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}
