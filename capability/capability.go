// Package capability describes the key-value capability a hosting runtime
// exposes natively. The provider layer adapts it; it never implements it.
package capability

import (
	"context"
	"encoding/json"
)

// ValueType selects how Get decodes a stored value.
type ValueType string

const (
	TypeText   ValueType = "text"
	TypeJSON   ValueType = "json"
	TypeBytes  ValueType = "bytes"
	TypeStream ValueType = "stream"
)

// Valid reports whether t is one of the known value types. The empty type
// means text.
func (t ValueType) Valid() bool {
	switch t {
	case "", TypeText, TypeJSON, TypeBytes, TypeStream:
		return true
	}
	return false
}

type GetOptions struct {
	Type ValueType
	// CacheTTL is a hint, in seconds, for how long the host may cache the read.
	CacheTTL int64
}

// PutOptions carries the two expiration primitives a host understands.
// At most one of Expiration and ExpirationTTL is set.
type PutOptions struct {
	Expiration    int64 // absolute, epoch seconds
	ExpirationTTL int64 // relative, seconds
	Metadata      map[string]any
}

// ValueWithMetadata is returned by GetWithMetadata. Metadata is nil when the
// key carries none.
type ValueWithMetadata struct {
	Value    any
	Metadata map[string]any
}

// Capability is the host entry point.
type Capability interface {
	// IsAvailable is a pure probe; it does no I/O.
	IsAvailable() bool
	Open(ctx context.Context, namespace string) (Handle, error)
}

// Handle is an opened namespace. Get returns found=false for a missing key.
// Values are string for TypeText, decoded JSON for TypeJSON, []byte for
// TypeBytes and io.ReadCloser for TypeStream.
type Handle interface {
	Get(ctx context.Context, key string, opts GetOptions) (value any, found bool, err error)
	GetWithMetadata(ctx context.Context, key string, opts GetOptions) (ValueWithMetadata, bool, error)
	// Put accepts string, []byte, io.Reader or any JSON-marshalable value.
	Put(ctx context.Context, key string, value any, opts PutOptions) error
	Delete(ctx context.Context, key string) error
}

// EncodeValue flattens a Put value into bytes.
func EncodeValue(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	case json.RawMessage:
		return t, nil
	default:
		return json.Marshal(v)
	}
}
