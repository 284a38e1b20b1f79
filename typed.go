package edgekv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unkn0wn-root/edgekv/codec"
)

// Typed is a view over a KV that stores V through a codec. The encoded
// bytes travel as a base64 JSON string in the envelope value, so any codec
// (CBOR, msgpack, protobuf) fits the envelope.
type Typed[V any] struct {
	kv    *KV
	codec codec.Codec[V]
}

func NewTyped[V any](kv *KV, c codec.Codec[V]) *Typed[V] {
	return &Typed[V]{kv: kv, codec: c}
}

// Item is a decoded value with its envelope details.
type Item[V any] struct {
	Value     V
	Metadata  map[string]any
	ExpiresAt time.Time
	FromCache bool
}

func (t *Typed[V]) Put(ctx context.Context, key string, v V, opts PutOptions) Result[Item[V]] {
	b, err := t.codec.Encode(v)
	if err != nil {
		return failResult[Item[V]]("put", fmt.Errorf("edgekv: codec encode: %w", err))
	}
	wrapped, err := json.Marshal(b)
	if err != nil {
		return failResult[Item[V]]("put", err)
	}
	r := t.kv.Put(ctx, key, json.RawMessage(wrapped), opts)
	if r.Error != nil {
		return Result[Item[V]]{Error: r.Error}
	}
	return okResult(Item[V]{Value: v, Metadata: r.Data.Metadata, ExpiresAt: r.Data.ExpiresAt})
}

func (t *Typed[V]) Get(ctx context.Context, key string) Result[Item[V]] {
	r := t.kv.Get(ctx, key)
	if r.Error != nil {
		return Result[Item[V]]{Error: r.Error}
	}
	var b []byte
	if err := json.Unmarshal(r.Data.Value, &b); err != nil {
		return failResult[Item[V]]("get", fmt.Errorf("edgekv: value of %q is not codec bytes: %w", key, err))
	}
	v, err := t.codec.Decode(b)
	if err != nil {
		return failResult[Item[V]]("get", fmt.Errorf("edgekv: codec decode: %w", err))
	}
	return okResult(Item[V]{Value: v, Metadata: r.Data.Metadata, ExpiresAt: r.Data.ExpiresAt, FromCache: r.Data.FromCache})
}

func (t *Typed[V]) Delete(ctx context.Context, key string) Result[struct{}] {
	return t.kv.Delete(ctx, key)
}

func (t *Typed[V]) KV() *KV { return t.kv }
