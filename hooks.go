package edgekv

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The KV calls them on hot paths.
type Hooks interface {
	// Read served from / missed by the local cache.
	CacheHit(cacheKey string)
	CacheMiss(cacheKey string)

	// A cache entry was dropped on read.
	// reason ∈ {"corrupt", "key_mismatch", "decode"}
	CacheSelfHeal(cacheKey, reason string)

	// The local cache returned ok=false on Set (backpressure/eviction).
	CacheSetRejected(cacheKey string)

	// An expired object was deleted from the backing store on read.
	LazyEvicted(storageKey string)

	// Put's update attempt failed and it fell back to create.
	UpsertFallback(storageKey string, updateErr error)

	// A backing-store call failed inside the consistency window and will
	// be retried after delay.
	RetryScheduled(attempt int, delay time.Duration, err error)

	// Clear stopped at a failed delete after removing `removed` objects.
	ClearAborted(removed int, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheHit(string)                          {}
func (NopHooks) CacheMiss(string)                         {}
func (NopHooks) CacheSelfHeal(string, string)             {}
func (NopHooks) CacheSetRejected(string)                  {}
func (NopHooks) LazyEvicted(string)                       {}
func (NopHooks) UpsertFallback(string, error)             {}
func (NopHooks) RetryScheduled(int, time.Duration, error) {}
func (NopHooks) ClearAborted(int, error)                  {}
