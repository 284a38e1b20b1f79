package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned by Limit for oversized payloads.
var ErrTooLarge = errors.New("codec: payload too large")

// Limit refuses to decode payloads above MaxDecode bytes and forwards
// everything else to Inner. MaxDecode <= 0 disables the check.
//
// edgekv.WithCacheMaxEntryBytes wraps the cache codec in Limit so a shared
// cache cannot hand a KV an arbitrarily large entry.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
