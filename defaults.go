package edgekv

import "time"

const (
	DefaultTTL          = 300 * time.Second
	DefaultKeyPrefix    = "kv:"
	defaultCacheSweep   = 5 * time.Minute
	envelopeContentType = "application/json"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// boolOr dereferences b, or returns def when b is nil.
func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// Bool returns a pointer to b, for optional config fields.
func Bool(b bool) *bool { return &b }
