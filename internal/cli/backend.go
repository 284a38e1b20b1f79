package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"

	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/edgekv"
	redcap "github.com/unkn0wn-root/edgekv/capability/redis"
	"github.com/unkn0wn-root/edgekv/codec"
	"github.com/unkn0wn-root/edgekv/config"
	asynchook "github.com/unkn0wn-root/edgekv/hooks/async"
	"github.com/unkn0wn-root/edgekv/localcache"
	bcache "github.com/unkn0wn-root/edgekv/localcache/bigcache"
	rediscache "github.com/unkn0wn-root/edgekv/localcache/redis"
	rcache "github.com/unkn0wn-root/edgekv/localcache/ristretto"
	kvlogrus "github.com/unkn0wn-root/edgekv/log/logrus"
	kvslog "github.com/unkn0wn-root/edgekv/log/slog"
	kvzap "github.com/unkn0wn-root/edgekv/log/zap"
	"github.com/unkn0wn-root/edgekv/provider"
	"github.com/unkn0wn-root/edgekv/sloghooks"
	"github.com/unkn0wn-root/edgekv/storage"
	"github.com/unkn0wn-root/edgekv/storage/memory"
	"github.com/unkn0wn-root/edgekv/storage/natsobj"
	"github.com/unkn0wn-root/edgekv/storage/s3"
)

var errBucketRequired = errors.New("bucket is required (--bucket or EDGEKV_BUCKET)")

// newLogger builds the configured adapter writing to w. Warnings and errors
// are always shown; --debug adds debug records.
func newLogger(cfg config.Config, w io.Writer) (edgekv.Logger, func()) {
	switch cfg.Logger {
	case "logrus":
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(logrus.WarnLevel)
		if cfg.Debug {
			l.SetLevel(logrus.DebugLevel)
		}
		return kvlogrus.New(l), func() {}
	case "zap":
		lvl := zapcore.WarnLevel
		if cfg.Debug {
			lvl = zapcore.DebugLevel
		}
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(w), lvl)
		l := zap.New(core)
		return kvzap.New(l), func() { _ = l.Sync() }
	default:
		lvl := stdslog.LevelWarn
		if cfg.Debug {
			lvl = stdslog.LevelDebug
		}
		return kvslog.New(stdslog.New(stdslog.NewTextHandler(w, &stdslog.HandlerOptions{Level: lvl}))), func() {}
	}
}

func (a *app) storageClient(ctx context.Context) (storage.Client, error) {
	if a.store != nil {
		return a.store, nil
	}
	switch a.cfg.Storage {
	case "s3":
		c, err := s3.New(ctx, s3.Config{
			Region:         a.cfg.S3Region,
			Endpoint:       a.cfg.S3Endpoint,
			ForcePathStyle: a.cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		a.store = c
	case "nats":
		c, err := natsobj.Connect(a.cfg.NATSURL, natsobj.Config{}, nats.Name("edgekv-cli"))
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error {
			c.Close()
			return nil
		})
		a.store = c
	default:
		a.store = memory.New()
	}
	return a.store, nil
}

// redis returns the client shared by the redis local cache and the redis
// capability.
func (a *app) redis() *goredis.Client {
	if a.rdb == nil {
		a.rdb = goredis.NewClient(&goredis.Options{Addr: a.cfg.RedisAddr})
		a.onClose(func(context.Context) error { return a.rdb.Close() })
	}
	return a.rdb
}

// localCache returns the cache for the kv commands. A nil cache with
// enabled=true lets the KV create its in-process default.
func (a *app) localCache(ctx context.Context) (c localcache.Cache, enabled bool, err error) {
	size := a.cfg.CacheSizeMB
	switch a.cfg.LocalCache {
	case "none":
		return nil, false, nil
	case "ristretto":
		c, err = rcache.New(rcache.DefaultConfig(int64(size) << 20))
	case "bigcache":
		c, err = bcache.New(ctx, bcache.Config{HardMaxCacheSizeMB: size})
	case "redis":
		c, err = rediscache.New(rediscache.Config{
			Client:    a.redis(),
			KeyPrefix: "edgekv:cache:" + a.cfg.Bucket + ":",
		})
	default:
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("local cache %s: %w", a.cfg.LocalCache, err)
	}
	a.onClose(c.Close)
	return c, true, nil
}

func (a *app) cacheCodec() (codec.Codec[edgekv.Envelope], error) {
	if a.cfg.CacheCodec == "" || a.cfg.CacheCodec == "json" {
		return nil, nil
	}
	return codec.ByName[edgekv.Envelope](a.cfg.CacheCodec)
}

// bucket opens the KV of the configured bucket on first use.
func (a *app) bucket(ctx context.Context) (*edgekv.KV, error) {
	if a.kv != nil {
		return a.kv, nil
	}
	if a.cfg.Bucket == "" {
		return nil, errBucketRequired
	}
	store, err := a.storageClient(ctx)
	if err != nil {
		return nil, err
	}
	cache, enabled, err := a.localCache(ctx)
	if err != nil {
		return nil, err
	}

	opts := []edgekv.Option{edgekv.WithLogger(a.log)}
	if cache != nil {
		opts = append(opts, edgekv.WithLocalCache(cache))
	}
	cc, err := a.cacheCodec()
	if err != nil {
		return nil, err
	}
	if cc != nil {
		opts = append(opts, edgekv.WithCacheCodec(cc))
	}
	if a.cfg.Debug {
		raw := sloghooks.New(stdslog.New(stdslog.NewTextHandler(a.errOut, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})), sloghooks.Options{})
		hooks := asynchook.New(raw, 1, 256)
		a.onClose(func(context.Context) error {
			hooks.Close()
			return nil
		})
		opts = append(opts, edgekv.WithHooks(hooks))
	}

	kv, err := edgekv.SetupKV(ctx, store, edgekv.BucketConfig{
		Name:         a.cfg.Bucket,
		TTLDefault:   a.cfg.TTL,
		CacheEnabled: edgekv.Bool(enabled),
		KeyPrefix:    a.cfg.KeyPrefix,
	}, opts...).Unwrap()
	if err != nil {
		return nil, err
	}
	a.onClose(kv.Close)
	a.kv = kv
	return kv, nil
}

// namespace connects the facade client on first use. With --redis-addr the
// redis capability stands in for the host's native KV.
func (a *app) namespace(ctx context.Context) (*edgekv.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	kind, err := provider.ParseKind(a.cfg.Provider)
	if err != nil {
		return nil, err
	}
	opts := edgekv.Options{
		Namespace:   a.cfg.Namespace,
		Provider:    kind,
		Debug:       a.cfg.Debug,
		Environment: a.cfg.Environment,
		Token:       a.cfg.Token,
		Logger:      a.log,
	}
	if a.cfg.RedisAddr != "" {
		opts.Capability = redcap.New(a.redis())
	}
	c, err := edgekv.New(opts).Connect(ctx)
	if err != nil {
		return nil, err
	}
	a.onClose(c.Disconnect)
	a.client = c
	return c, nil
}
