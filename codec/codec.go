// Package codec converts values to and from the bytes edgekv stores.
//
// The storage-backed KV uses a Codec[Envelope] for its local cache entries
// and edgekv.Typed[V] uses a Codec[V] for values. The object store itself
// always receives the JSON envelope, whatever codec is configured.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names lists the codecs ByName resolves.
var Names = []string{"json", "cbor", "msgpack"}

// ByName returns the general purpose codec called name. An empty name means
// JSON. CBOR is built deterministic so equal values give equal bytes.
func ByName[V any](name string) (Codec[V], error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSON[V]{}, nil
	case "cbor":
		c, err := NewCBOR[V](true)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	}
	return nil, fmt.Errorf("codec: unknown codec %q (want one of %s)", name, strings.Join(Names, ", "))
}
