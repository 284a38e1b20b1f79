// Package redis exposes a Redis deployment as a native KV capability, for
// hosts that run edge workloads next to Redis.
//
// Each key is stored as a hash under "<namespace>:<key>" with field "v"
// holding the value and field "m" holding the metadata JSON.
package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/edgekv/capability"
)

const (
	fieldValue    = "v"
	fieldMetadata = "m"
)

var ErrNilClient = errors.New("redis capability: nil client")

type Capability struct {
	rdb goredis.UniversalClient
}

var _ capability.Capability = (*Capability)(nil)

// New returns a capability over rdb. A nil client yields a capability that
// reports itself unavailable.
func New(rdb goredis.UniversalClient) *Capability {
	return &Capability{rdb: rdb}
}

func (c *Capability) IsAvailable() bool { return c != nil && c.rdb != nil }

func (c *Capability) Open(_ context.Context, namespace string) (capability.Handle, error) {
	if !c.IsAvailable() {
		return nil, ErrNilClient
	}
	if namespace == "" {
		return nil, errors.New("redis capability: empty namespace")
	}
	return &Handle{rdb: c.rdb, prefix: namespace + ":"}, nil
}

type Handle struct {
	rdb    goredis.UniversalClient
	prefix string
}

var _ capability.Handle = (*Handle)(nil)

func (h *Handle) Get(ctx context.Context, key string, opts capability.GetOptions) (any, bool, error) {
	raw, err := h.rdb.HGet(ctx, h.prefix+key, fieldValue).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := decodeAs(raw, opts.Type)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (h *Handle) GetWithMetadata(ctx context.Context, key string, opts capability.GetOptions) (capability.ValueWithMetadata, bool, error) {
	vals, err := h.rdb.HMGet(ctx, h.prefix+key, fieldValue, fieldMetadata).Result()
	if err != nil {
		return capability.ValueWithMetadata{}, false, err
	}
	rawV, ok := vals[0].(string)
	if !ok {
		return capability.ValueWithMetadata{}, false, nil
	}
	v, err := decodeAs([]byte(rawV), opts.Type)
	if err != nil {
		return capability.ValueWithMetadata{}, false, err
	}
	out := capability.ValueWithMetadata{Value: v}
	if rawM, ok := vals[1].(string); ok && rawM != "" {
		if err := json.Unmarshal([]byte(rawM), &out.Metadata); err != nil {
			return capability.ValueWithMetadata{}, false, fmt.Errorf("redis capability: metadata of %q: %w", key, err)
		}
	}
	return out, true, nil
}

func (h *Handle) Put(ctx context.Context, key string, value any, opts capability.PutOptions) error {
	if opts.Expiration > 0 && opts.ExpirationTTL > 0 {
		return errors.New("redis capability: both expiration and expirationTtl set")
	}
	data, err := readValue(value)
	if err != nil {
		return err
	}
	var meta []byte
	if opts.Metadata != nil {
		if meta, err = json.Marshal(opts.Metadata); err != nil {
			return fmt.Errorf("redis capability: metadata: %w", err)
		}
	}

	k := h.prefix + key
	_, err = h.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		if meta != nil {
			p.HSet(ctx, k, fieldValue, data, fieldMetadata, meta)
		} else {
			p.HSet(ctx, k, fieldValue, data)
			p.HDel(ctx, k, fieldMetadata)
		}
		switch {
		case opts.Expiration > 0:
			p.ExpireAt(ctx, k, time.Unix(opts.Expiration, 0))
		case opts.ExpirationTTL > 0:
			p.Expire(ctx, k, time.Duration(opts.ExpirationTTL)*time.Second)
		}
		return nil
	})
	return err
}

func (h *Handle) Delete(ctx context.Context, key string) error {
	return h.rdb.Del(ctx, h.prefix+key).Err()
}

func readValue(v any) ([]byte, error) {
	if r, ok := v.(io.Reader); ok {
		b, err := io.ReadAll(r)
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
		return b, err
	}
	return capability.EncodeValue(v)
}

func decodeAs(raw []byte, t capability.ValueType) (any, error) {
	switch t {
	case "", capability.TypeText:
		return string(raw), nil
	case capability.TypeJSON:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case capability.TypeBytes:
		return raw, nil
	case capability.TypeStream:
		return io.NopCloser(bytes.NewReader(raw)), nil
	default:
		return nil, fmt.Errorf("redis capability: unknown value type %q", t)
	}
}
