package edgekv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/edgekv/codec"
	"github.com/unkn0wn-root/edgekv/internal/hashmap"
	"github.com/unkn0wn-root/edgekv/internal/util"
	"github.com/unkn0wn-root/edgekv/internal/wire"
	"github.com/unkn0wn-root/edgekv/kverrors"
	"github.com/unkn0wn-root/edgekv/localcache"
	"github.com/unkn0wn-root/edgekv/retry"
	"github.com/unkn0wn-root/edgekv/storage"
)

// BucketConfig describes the bucket a KV lives in. A KV keeps its own copy;
// changing the struct afterwards has no effect.
type BucketConfig struct {
	Name         string
	TTLDefault   time.Duration        // 0 => 300s
	CacheEnabled *bool                // nil => true
	KeyPrefix    string               // "" => "kv:"
	AccessPolicy storage.AccessPolicy // "" => private
}

func (c BucketConfig) withDefaults() BucketConfig {
	c.TTLDefault = coalesce(c.TTLDefault, DefaultTTL)
	c.KeyPrefix = coalesce(c.KeyPrefix, DefaultKeyPrefix)
	c.AccessPolicy = coalesce(c.AccessPolicy, storage.AccessPrivate)
	c.CacheEnabled = Bool(boolOr(c.CacheEnabled, true))
	return c
}

// SetCostFunc computes the local cache cost of an entry. Default: its size.
type SetCostFunc func(cacheKey string, raw []byte) int64

type PutOptions struct {
	TTL time.Duration // 0 => bucket default; negative is rejected

	// Metadata travels with the envelope. An empty map is stored as no
	// metadata and reads back as nil.
	Metadata map[string]any
}

type ListOptions struct {
	Prefix string // filters logical keys (after KeyPrefix is stripped)
	Limit  int    // 0 => no limit
}

type ListResult struct {
	Keys    []string
	HasMore bool
}

// KV emulates key-value semantics on an object store bucket.
// It is safe for concurrent use; read-modify-write sequences are not atomic.
type KV struct {
	cfg        BucketConfig
	bucket     storage.Bucket
	cache      localcache.Cache
	cacheOwned bool
	log        Logger
	hooks      Hooks
	now        func() time.Time
	cost       SetCostFunc
	cacheCodec codec.Codec[Envelope]
	retryOpts  []retry.Option

	// settled flips on the first backing-store call that gets an answer.
	settled atomic.Bool
}

type kvOptions struct {
	cache     localcache.Cache
	logger    Logger
	hooks     Hooks
	now       func() time.Time
	cost      SetCostFunc
	codec     codec.Codec[Envelope]
	maxEntry  int
	retryBase time.Duration
	retryOpts []retry.Option
}

type Option func(*kvOptions)

// WithLocalCache sets the read-through cache. The caller keeps ownership:
// KV.Close does not close it. Without this option an in-process cache is
// created per KV.
func WithLocalCache(c localcache.Cache) Option { return func(o *kvOptions) { o.cache = c } }

func WithLogger(l Logger) Option { return func(o *kvOptions) { o.logger = l } }

func WithHooks(h Hooks) Option { return func(o *kvOptions) { o.hooks = h } }

// WithClock replaces time.Now for TTL computations.
func WithClock(now func() time.Time) Option { return func(o *kvOptions) { o.now = now } }

func WithSetCost(f SetCostFunc) Option { return func(o *kvOptions) { o.cost = f } }

// WithCacheCodec stores local cache entries through c instead of as the raw
// JSON envelope. Useful with a shared cache (localcache/redis) where a
// compact encoding such as codec.CBOR saves memory.
func WithCacheCodec(c codec.Codec[Envelope]) Option { return func(o *kvOptions) { o.codec = c } }

// WithCacheMaxEntryBytes makes the KV treat cached payloads above n bytes
// as corrupt. Meant for shared caches the KV does not fully control.
func WithCacheMaxEntryBytes(n int) Option { return func(o *kvOptions) { o.maxEntry = n } }

// WithRetryBaseDelay sets the first backoff delay of the consistency
// window retries. Default 1s.
func WithRetryBaseDelay(d time.Duration) Option { return func(o *kvOptions) { o.retryBase = d } }

// WithRetryOptions appends options to every consistency window retry.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(o *kvOptions) { o.retryOpts = append(o.retryOpts, opts...) }
}

func newKV(bucket storage.Bucket, cfg BucketConfig, opts []Option) *KV {
	var o kvOptions
	for _, fn := range opts {
		fn(&o)
	}

	kv := &KV{
		cfg:        cfg,
		bucket:     bucket,
		log:        coalesce[Logger](o.logger, NopLogger{}),
		hooks:      coalesce[Hooks](o.hooks, NopHooks{}),
		now:        o.now,
		cost:       o.cost,
		cacheCodec: o.codec,
	}
	if o.maxEntry > 0 {
		kv.cacheCodec = codec.Limit[Envelope]{
			Inner:     coalesce[codec.Codec[Envelope]](o.codec, envelopeCodec{}),
			MaxDecode: o.maxEntry,
		}
	}
	if kv.now == nil {
		kv.now = time.Now
	}
	if kv.cost == nil {
		kv.cost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}
	if *cfg.CacheEnabled {
		if o.cache != nil {
			kv.cache = o.cache
		} else {
			kv.cache = localcache.NewMemory(defaultCacheSweep)
			kv.cacheOwned = true
		}
	}

	ro := []retry.Option{
		retry.WithBaseDelay(coalesce(o.retryBase, retry.DefaultBaseDelay)),
		retry.OnRetry(func(a retry.Attempt) { kv.hooks.RetryScheduled(a.Number, a.Delay, a.Err) }),
	}
	// without a Logger the warning goes to slog.Default
	if o.logger != nil {
		ro = append(ro, retry.WithWarning(func(err error) {
			kv.log.Warn("object store may not be synchronized yet, retrying", Fields{"bucket": bucket.Name(), "err": err})
		}))
	}
	kv.retryOpts = append(ro, o.retryOpts...)
	return kv
}

// Config returns a copy of the bucket configuration with defaults applied.
func (k *KV) Config() BucketConfig { return k.cfg }

func (k *KV) BucketName() string { return k.cfg.Name }

// Close releases the local cache when the KV created it.
func (k *KV) Close(ctx context.Context) error {
	if k.cacheOwned && k.cache != nil {
		return k.cache.Close(ctx)
	}
	return nil
}

// store runs fn against the backing store. Until the store has answered
// once, fn runs under retry.Do. Definitive answers (object exists / not
// found) end the retry loop and settle the KV.
func (k *KV) store(ctx context.Context, fn func(context.Context) error) error {
	if k.settled.Load() {
		return fn(ctx)
	}
	err := retry.Do(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrObjectExists) {
			return retry.Permanent(err)
		}
		return err
	}, k.retryOpts...)
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrObjectExists) {
		k.settled.Store(true)
	}
	return err
}

func (k *KV) storageKey(key string) string { return util.WithPrefix(k.cfg.KeyPrefix, key) }

func (k *KV) logicalKey(storageKey string) string {
	s, _ := util.StripPrefix(k.cfg.KeyPrefix, storageKey)
	return s
}

// Put stores value under key. Values are JSON-encoded; []byte and
// json.RawMessage holding valid JSON are stored as is. The write tries
// UpdateObject first and falls back to CreateObject, so it fails only when
// both fail.
func (k *KV) Put(ctx context.Context, key string, value any, opts PutOptions) Result[Entry] {
	const op = "put"
	if opts.TTL < 0 {
		return failResult[Entry](op, fmt.Errorf("edgekv: negative ttl %s", opts.TTL))
	}
	raw, err := encodeValue(value)
	if err != nil {
		return failResult[Entry](op, err)
	}

	sk := k.storageKey(key)
	now := k.now()
	ttl := coalesce(opts.TTL, k.cfg.TTLDefault)
	env := Envelope{
		Value:     raw,
		ExpiresAt: now.Add(ttl).UnixMilli(),
		Metadata:  opts.Metadata,
		CreatedAt: now.UnixMilli(),
	}
	if env.ExpiresAt <= env.CreatedAt {
		env.ExpiresAt = env.CreatedAt + 1
	}
	data, err := json.Marshal(env)
	if err != nil {
		return failResult[Entry](op, fmt.Errorf("edgekv: encode envelope: %w", err))
	}

	if err := k.upsert(ctx, sk, data); err != nil {
		return failResult[Entry](op, &kverrors.StorageOperationError{Operation: op, Key: sk, Err: err})
	}
	k.cacheSet(ctx, sk, env, data)
	return okResult(entryFrom(k.logicalKey(sk), env, false))
}

func (k *KV) upsert(ctx context.Context, sk string, data []byte) error {
	oo := storage.ObjectOptions{ContentType: envelopeContentType}
	uerr := k.store(ctx, func(ctx context.Context) error { return k.bucket.UpdateObject(ctx, sk, data, oo) })
	if uerr == nil {
		return nil
	}
	k.hooks.UpsertFallback(sk, uerr)
	cerr := k.store(ctx, func(ctx context.Context) error { return k.bucket.CreateObject(ctx, sk, data, oo) })
	if cerr == nil {
		return nil
	}
	return errors.Join(uerr, cerr)
}

// Get returns the value of key, from the local cache when it holds a fresh
// copy. An expired object is deleted from the store and reported as
// NotFoundError with Expired set.
func (k *KV) Get(ctx context.Context, key string) Result[Entry] {
	const op = "get"
	sk := k.storageKey(key)
	lk := k.logicalKey(sk)

	if env, ok := k.cacheGet(ctx, sk); ok {
		return okResult(entryFrom(lk, env, true))
	}

	var (
		data  []byte
		found bool
	)
	err := k.store(ctx, func(ctx context.Context) (err error) {
		data, found, err = k.bucket.GetObjectByKey(ctx, sk)
		return err
	})
	if err != nil {
		return failResult[Entry](op, &kverrors.StorageOperationError{Operation: op, Key: sk, Err: err})
	}
	if !found {
		return failResult[Entry](op, &kverrors.NotFoundError{Key: lk})
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		return failResult[Entry](op, &kverrors.StorageOperationError{Operation: op, Key: sk, Err: err})
	}

	if env.Expired(k.now()) {
		if derr := k.store(ctx, func(ctx context.Context) error { return k.bucket.DeleteObject(ctx, sk) }); derr != nil {
			k.log.Warn("lazy eviction failed", Fields{"key": sk, "err": derr})
		}
		k.cacheDel(ctx, sk)
		k.hooks.LazyEvicted(sk)
		return failResult[Entry](op, &kverrors.NotFoundError{Key: lk, Expired: true})
	}

	k.cacheSet(ctx, sk, env, data)
	return okResult(entryFrom(lk, env, false))
}

// Delete removes key from the store and the local cache. It never fails:
// store errors are logged and a missing key is not an error.
func (k *KV) Delete(ctx context.Context, key string) Result[struct{}] {
	sk := k.storageKey(key)
	if err := k.store(ctx, func(ctx context.Context) error { return k.bucket.DeleteObject(ctx, sk) }); err != nil {
		k.log.Debug("delete failed (ignored)", Fields{"key": sk, "err": err})
	}
	k.cacheDel(ctx, sk)
	return okResult(struct{}{})
}

// Has reports whether an object exists for key. It does not look at the
// TTL: an expired object that was never read again still counts. Any
// failure yields false.
func (k *KV) Has(ctx context.Context, key string) bool {
	sk := k.storageKey(key)
	var found bool
	err := k.store(ctx, func(ctx context.Context) (err error) {
		_, found, err = k.bucket.GetObjectByKey(ctx, sk)
		return err
	})
	return err == nil && found
}

// List returns the logical keys in the bucket, sorted.
func (k *KV) List(ctx context.Context, opts ListOptions) Result[ListResult] {
	const op = "list"
	keys, err := k.listKeys(ctx)
	if err != nil {
		return failResult[ListResult](op, &kverrors.StorageOperationError{Operation: op, Err: err})
	}

	out := keys[:0]
	filter := opts.Prefix
	if s, ok := util.StripPrefix(k.cfg.KeyPrefix, filter); ok {
		filter = s
	}
	for _, sk := range keys {
		lk := k.logicalKey(sk)
		if strings.HasPrefix(lk, filter) {
			out = append(out, lk)
		}
	}
	sort.Strings(out)

	res := ListResult{Keys: out}
	if opts.Limit > 0 && len(out) > opts.Limit {
		res.Keys = out[:opts.Limit]
		res.HasMore = true
	}
	return okResult(res)
}

// listKeys returns the storage keys under KeyPrefix.
func (k *KV) listKeys(ctx context.Context) ([]string, error) {
	var objs []storage.Object
	err := k.store(ctx, func(ctx context.Context) (err error) {
		objs, err = k.bucket.ListObjects(ctx, storage.ListParams{Prefix: k.cfg.KeyPrefix})
		return err
	})
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		if strings.HasPrefix(o.Key, k.cfg.KeyPrefix) {
			keys = append(keys, o.Key)
		}
	}
	return keys, nil
}

// Clear deletes every key of the KV from the store and the local cache.
// It stops at the first failed delete; Data holds the number of objects
// removed either way.
func (k *KV) Clear(ctx context.Context) Result[int] {
	const op = "clear"
	keys, err := k.listKeys(ctx)
	if err != nil {
		return failResult[int](op, &kverrors.StorageOperationError{Operation: op, Err: err})
	}
	sort.Strings(keys)

	removed := 0
	for _, sk := range keys {
		if err := k.store(ctx, func(ctx context.Context) error { return k.bucket.DeleteObject(ctx, sk) }); err != nil {
			k.hooks.ClearAborted(removed, err)
			k.log.Error("clear aborted", Fields{"bucket": k.cfg.Name, "key": sk, "removed": removed, "err": err})
			r := failResult[int](op, &ClearError{Removed: removed, Key: sk, Err: err})
			r.Data = removed
			return r
		}
		k.cacheDel(ctx, sk)
		removed++
	}
	return okResult(removed)
}

// HSet sets field in the JSON object stored under key. Read-modify-write,
// not atomic: concurrent HSet calls on one key may lose fields.
func (k *KV) HSet(ctx context.Context, key, field string, value any) Result[struct{}] {
	if err := hashmap.Set(ctx, kvHashStore{k}, key, field, value); err != nil {
		return failResult[struct{}]("hset", err)
	}
	return okResult(struct{}{})
}

// HGetAll returns the object under key. Data is nil both when the key is
// missing and when its value is not an object.
func (k *KV) HGetAll(ctx context.Context, key string) Result[map[string]any] {
	m, _, err := hashmap.GetAll(ctx, kvHashStore{k}, key)
	if err != nil {
		return failResult[map[string]any]("hgetall", err)
	}
	return okResult(m)
}

// HVals returns the field values of the object under key, ordered by field.
func (k *KV) HVals(ctx context.Context, key string) Result[[]any] {
	v, _, err := hashmap.Vals(ctx, kvHashStore{k}, key)
	if err != nil {
		return failResult[[]any]("hvals", err)
	}
	return okResult(v)
}

type kvHashStore struct{ kv *KV }

func (s kvHashStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	r := s.kv.Get(ctx, key)
	if r.Error != nil {
		if kverrors.IsNotFound(r.Error.Err) {
			return nil, false, nil
		}
		return nil, false, r.Error.typed()
	}
	return r.Data.Value, true, nil
}

func (s kvHashStore) Save(ctx context.Context, key string, raw []byte) error {
	_, err := s.kv.Put(ctx, key, json.RawMessage(raw), PutOptions{}).Unwrap()
	return err
}

// cacheGet returns a fresh envelope for sk from the local cache. Corrupt,
// colliding and stale entries are dropped.
func (k *KV) cacheGet(ctx context.Context, sk string) (Envelope, bool) {
	if k.cache == nil {
		return Envelope{}, false
	}
	ck := util.CacheKey(sk)
	raw, ok, err := k.cache.Get(ctx, ck)
	if err != nil {
		k.log.Debug("local cache read failed", Fields{"key": ck, "err": err})
		return Envelope{}, false
	}
	if !ok {
		k.hooks.CacheMiss(ck)
		return Envelope{}, false
	}

	e, err := wire.DecodeEntry(raw)
	if err != nil {
		k.selfHeal(ctx, ck, "corrupt")
		return Envelope{}, false
	}
	if e.StorageKey != sk {
		// another key sanitises to the same cache key
		k.selfHeal(ctx, ck, "key_mismatch")
		return Envelope{}, false
	}
	if !e.Fresh(k.now().UnixMilli()) {
		_ = k.cache.Del(ctx, ck)
		k.hooks.CacheMiss(ck)
		return Envelope{}, false
	}
	env, err := k.decodeCached(e.Payload)
	if err != nil {
		k.selfHeal(ctx, ck, "decode")
		return Envelope{}, false
	}
	k.hooks.CacheHit(ck)
	return env, true
}

func (k *KV) selfHeal(ctx context.Context, ck, reason string) {
	_ = k.cache.Del(ctx, ck)
	k.hooks.CacheSelfHeal(ck, reason)
	k.log.Debug("dropped local cache entry", Fields{"key": ck, "reason": reason})
}

func (k *KV) decodeCached(payload []byte) (Envelope, error) {
	if k.cacheCodec == nil {
		return decodeEnvelope(payload)
	}
	return k.cacheCodec.Decode(payload)
}

// cacheSet stores env under the cache key of sk. raw is env as read from
// or written to the store.
func (k *KV) cacheSet(ctx context.Context, sk string, env Envelope, raw []byte) {
	if k.cache == nil {
		return
	}
	ttl := time.Duration(env.ExpiresAt-k.now().UnixMilli()) * time.Millisecond
	if ttl <= 0 {
		return
	}
	ck := util.CacheKey(sk)
	payload := raw
	if k.cacheCodec != nil {
		var err error
		if payload, err = k.cacheCodec.Encode(env); err != nil {
			k.log.Debug("local cache encode failed", Fields{"key": ck, "err": err})
			return
		}
	}
	entry, err := wire.EncodeEntry(wire.Entry{ExpiresAt: env.ExpiresAt, StorageKey: sk, Payload: payload})
	if err != nil {
		k.log.Debug("local cache encode failed", Fields{"key": ck, "err": err})
		return
	}
	ok, err := k.cache.Set(ctx, ck, entry, k.cost(ck, entry), ttl)
	if err != nil {
		k.log.Debug("local cache write failed", Fields{"key": ck, "err": err})
		return
	}
	if !ok {
		k.hooks.CacheSetRejected(ck)
	}
}

func (k *KV) cacheDel(ctx context.Context, sk string) {
	if k.cache == nil {
		return
	}
	if err := k.cache.Del(ctx, util.CacheKey(sk)); err != nil {
		k.log.Debug("local cache delete failed", Fields{"key": sk, "err": err})
	}
}

// Cache exposes the local cache of the KV.
func (k *KV) Cache() CacheView { return CacheView{kv: k} }

// CacheView manages the local read-through cache without touching the store.
type CacheView struct{ kv *KV }

func (c CacheView) Enabled() bool { return c.kv.cache != nil }

// Invalidate drops the cached copy of key.
func (c CacheView) Invalidate(ctx context.Context, key string) error {
	if c.kv.cache == nil {
		return nil
	}
	return c.kv.cache.Del(ctx, util.CacheKey(c.kv.storageKey(key)))
}

// Clear drops every entry of the local cache.
func (c CacheView) Clear(ctx context.Context) error {
	if c.kv.cache == nil {
		return nil
	}
	return c.kv.cache.Clear(ctx)
}
