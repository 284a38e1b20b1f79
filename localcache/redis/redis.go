// Package redis backs localcache.Cache with a shared Redis deployment, so
// several processes serving the same bucket can reuse each other's reads.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/edgekv/localcache"
)

var ErrNilClient = errors.New("redis cache: nil client")

const scanBatch = 256

type Cache struct {
	rdb         goredis.UniversalClient
	prefix      string
	closeClient bool
}

var _ localcache.Cache = (*Cache)(nil)

type Config struct {
	Client goredis.UniversalClient
	// KeyPrefix is prepended to every cache key. Clear removes only keys
	// under it, so it should be unique per KV.
	KeyPrefix   string
	CloseClient bool // set true only if this cache exclusively owns the client
}

func New(cfg Config) (*Cache, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "edgekv:cache:"
	}
	return &Cache{rdb: cfg.Client, prefix: prefix, closeClient: cfg.CloseClient}, nil
}

func (p *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, p.prefix+key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Cache) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0
	}
	if err := p.rdb.Set(ctx, p.prefix+key, value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Cache) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, p.prefix+key).Err()
}

// Clear deletes every key under the cache prefix using SCAN, batch by batch.
func (p *Cache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, p.prefix+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close releases the underlying redis client only when this cache owns it.
func (p *Cache) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
