package edgekv

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/edgekv/codec"
	"github.com/unkn0wn-root/edgekv/localcache"
	"github.com/unkn0wn-root/edgekv/retry"
	"github.com/unkn0wn-root/edgekv/storage"
	"github.com/unkn0wn-root/edgekv/storage/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: time.UnixMilli(1_700_000_000_000)} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// retrySleeper advances its own clock instead of sleeping.
type retrySleeper struct {
	clk    *testClock
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *retrySleeper) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	s.clk.Advance(d)
	return nil
}

func (s *retrySleeper) option() Option {
	return WithRetryOptions(retry.WithClock(s.clk.Now, s.sleep), retry.WithWarning(func(error) {}))
}

type recordingHooks struct {
	NopHooks
	mu        sync.Mutex
	selfHeals []string
	evicted   []string
	fallbacks int
	retries   []time.Duration
	aborted   []int
	hits      int
}

func (h *recordingHooks) CacheHit(string) {
	h.mu.Lock()
	h.hits++
	h.mu.Unlock()
}

func (h *recordingHooks) CacheSelfHeal(_ string, reason string) {
	h.mu.Lock()
	h.selfHeals = append(h.selfHeals, reason)
	h.mu.Unlock()
}

func (h *recordingHooks) LazyEvicted(k string) {
	h.mu.Lock()
	h.evicted = append(h.evicted, k)
	h.mu.Unlock()
}

func (h *recordingHooks) UpsertFallback(string, error) {
	h.mu.Lock()
	h.fallbacks++
	h.mu.Unlock()
}

func (h *recordingHooks) RetryScheduled(_ int, d time.Duration, _ error) {
	h.mu.Lock()
	h.retries = append(h.retries, d)
	h.mu.Unlock()
}

func (h *recordingHooks) ClearAborted(removed int, _ error) {
	h.mu.Lock()
	h.aborted = append(h.aborted, removed)
	h.mu.Unlock()
}

type fixture struct {
	kv     *KV
	store  *memory.Client
	clock  *testClock
	cache  *localcache.Memory
	hooks  *recordingHooks
	bucket string
}

func (f *fixture) raw() *memory.Bucket { return f.store.Bucket(f.bucket) }

func newFixture(t *testing.T, cfg BucketConfig, storeOpts []memory.Option, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:  memory.New(storeOpts...),
		clock:  newTestClock(),
		cache:  localcache.NewMemory(0),
		hooks:  &recordingHooks{},
		bucket: coalesce(cfg.Name, "test-bucket"),
	}
	cfg.Name = f.bucket
	base := []Option{WithClock(f.clock.Now), WithLocalCache(f.cache), WithHooks(f.hooks)}
	res := SetupKV(ctx, f.store, cfg, append(base, opts...)...)
	require.Nil(t, res.Error)
	f.kv = res.Data
	t.Cleanup(func() {
		_ = f.kv.Close(ctx)
		_ = f.cache.Close(ctx)
	})
	return f
}

func TestPutGetRoundTripReportsCacheSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)

	put := f.kv.Put(ctx, "user:1", map[string]any{"name": "ada"}, PutOptions{TTL: time.Minute, Metadata: map[string]any{"v": 1}})
	require.True(t, put.OK(), "%v", put.Error)
	assert.Equal(t, "user:1", put.Data.Key)

	got := f.kv.Get(ctx, "user:1")
	require.True(t, got.OK())
	assert.True(t, got.Data.FromCache)
	assert.JSONEq(t, `{"name":"ada"}`, string(got.Data.Value))
	assert.Equal(t, map[string]any{"v": float64(1)}, got.Data.Metadata)

	require.NoError(t, f.kv.Cache().Invalidate(ctx, "user:1"))
	got = f.kv.Get(ctx, "user:1")
	require.True(t, got.OK())
	assert.False(t, got.Data.FromCache, "invalidated entry must be read from the store")

	got = f.kv.Get(ctx, "user:1")
	require.True(t, got.OK())
	assert.True(t, got.Data.FromCache, "store read refreshes the cache")

	var v struct{ Name string }
	require.NoError(t, got.Data.Decode(&v))
	assert.Equal(t, "ada", v.Name)
}

func TestCacheDisabledAlwaysReadsStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{CacheEnabled: Bool(false)}, nil)
	assert.False(t, f.kv.Cache().Enabled())

	require.True(t, f.kv.Put(ctx, "k", "v", PutOptions{}).OK())
	got := f.kv.Get(ctx, "k")
	require.True(t, got.OK())
	assert.False(t, got.Data.FromCache)
	assert.Equal(t, 0, f.cache.Len())
}

func TestExpiredKeyIsEvictedOnRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)

	require.True(t, f.kv.Put(ctx, "k", "v", PutOptions{TTL: time.Second}).OK())
	f.clock.Advance(1500 * time.Millisecond)

	got := f.kv.Get(ctx, "k")
	require.NotNil(t, got.Error)
	var nf *NotFoundError
	require.ErrorAs(t, got.Error, &nf)
	assert.True(t, nf.Expired)
	assert.Equal(t, "k", nf.Key)

	_, stored := f.raw().Raw("kv:k")
	assert.False(t, stored, "eviction-on-read deletes the backing object")
	assert.Equal(t, []string{"kv:k"}, f.hooks.evicted)

	list := f.kv.List(ctx, ListOptions{})
	require.True(t, list.OK())
	assert.NotContains(t, list.Data.Keys, "k")
}

func TestDefaultTTLApplies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{TTLDefault: 10 * time.Second}, nil)

	put := f.kv.Put(ctx, "k", 1, PutOptions{})
	require.True(t, put.OK())
	assert.Equal(t, f.clock.Now().Add(10*time.Second).UnixMilli(), put.Data.ExpiresAt.UnixMilli())

	f.clock.Advance(9 * time.Second)
	assert.True(t, f.kv.Get(ctx, "k").OK())
	f.clock.Advance(time.Second)
	assert.False(t, f.kv.Get(ctx, "k").OK())
}

func TestPrefixIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{KeyPrefix: "kv:"}, nil)

	require.True(t, f.kv.Put(ctx, "kv:foo", "one", PutOptions{}).OK())
	require.True(t, f.kv.Put(ctx, "foo", "two", PutOptions{}).OK())

	assert.Equal(t, 1, f.raw().Len())
	_, ok := f.raw().Raw("kv:foo")
	assert.True(t, ok)
	_, ok = f.raw().Raw("kv:kv:foo")
	assert.False(t, ok)

	got := f.kv.Get(ctx, "kv:foo")
	require.True(t, got.OK())
	assert.Equal(t, `"two"`, string(got.Data.Value))
	assert.Equal(t, "foo", got.Data.Key)
}

func TestPutUpdatesExistingAndFallsBackToCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)

	require.True(t, f.kv.Put(ctx, "k", 1, PutOptions{}).OK())
	assert.Equal(t, 1, f.hooks.fallbacks, "first write of a key creates it")
	require.True(t, f.kv.Put(ctx, "k", 2, PutOptions{}).OK())
	assert.Equal(t, 1, f.hooks.fallbacks, "existing key is updated in place")

	require.NoError(t, f.kv.Cache().Clear(ctx))
	got := f.kv.Get(ctx, "k")
	require.True(t, got.OK())
	assert.Equal(t, "2", string(got.Data.Value))
}

func TestPutFailsOnlyWhenUpdateAndCreateFail(t *testing.T) {
	ctx := context.Background()
	updErr := errors.New("update refused")
	crtErr := errors.New("create refused")
	failCreate := atomic.Bool{}
	f := newFixture(t, BucketConfig{}, []memory.Option{memory.WithFault(func(op, _ string) error {
		switch {
		case op == "update":
			return updErr
		case op == "create" && failCreate.Load():
			return crtErr
		}
		return nil
	})})

	// settle the consistency window so the faults are not retried
	require.True(t, f.kv.List(ctx, ListOptions{}).OK())

	require.True(t, f.kv.Put(ctx, "a", 1, PutOptions{}).OK(), "create succeeds after update fails")

	failCreate.Store(true)
	res := f.kv.Put(ctx, "b", 1, PutOptions{})
	require.NotNil(t, res.Error)
	assert.Equal(t, "put", res.Error.Operation)

	_, err := res.Unwrap()
	var soe *StorageOperationError
	require.ErrorAs(t, err, &soe)
	assert.Equal(t, "kv:b", soe.Key)
	assert.ErrorIs(t, err, updErr)
	assert.ErrorIs(t, err, crtErr)
}

func TestPutRejectsNegativeTTL(t *testing.T) {
	f := newFixture(t, BucketConfig{}, nil)
	res := f.kv.Put(context.Background(), "k", 1, PutOptions{TTL: -time.Second})
	require.NotNil(t, res.Error)
	_, err := res.Unwrap()
	var soe *StorageOperationError
	assert.ErrorAs(t, err, &soe)
	assert.Equal(t, 0, f.raw().Len())
}

func TestEnvelopeWireFormat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)

	require.True(t, f.kv.Put(ctx, "m", []byte(`{"a":1}`), PutOptions{Metadata: map[string]any{"o": "x"}}).OK())
	require.True(t, f.kv.Put(ctx, "plain", "text", PutOptions{}).OK())

	raw, _ := f.raw().Raw("kv:m")
	assert.Regexp(t, regexp.MustCompile(`^\{"value":\{"a":1\},"expiresAt":\d+,"metadata":\{"o":"x"\},"createdAt":\d+\}$`), string(raw))

	raw, _ = f.raw().Raw("kv:plain")
	assert.Regexp(t, regexp.MustCompile(`^\{"value":"text","expiresAt":\d+,"createdAt":\d+\}$`), string(raw))

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Greater(t, env.ExpiresAt, env.CreatedAt)
}

func TestEmptyMetadataIsStoredAsAbsent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{CacheEnabled: Bool(false)}, nil)

	require.True(t, f.kv.Put(ctx, "k", 1, PutOptions{Metadata: map[string]any{}}).OK())
	raw, _ := f.raw().Raw("kv:k")
	assert.NotContains(t, string(raw), `"metadata"`)

	got := f.kv.Get(ctx, "k")
	require.True(t, got.OK())
	assert.Nil(t, got.Data.Metadata)
}

func TestReadsRecordsWrittenElsewhere(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)
	exp := f.clock.Now().Add(time.Hour).UnixMilli()
	rec := `{"value":[1,"two",{"three":3}],"expiresAt":` + jsonInt(exp) + `,"metadata":{"src":"legacy"},"createdAt":1690000000000}`
	f.raw().Put("kv:legacy", []byte(rec))

	got := f.kv.Get(ctx, "legacy")
	require.True(t, got.OK(), "%v", got.Error)
	assert.JSONEq(t, `[1,"two",{"three":3}]`, string(got.Data.Value))
	assert.Equal(t, map[string]any{"src": "legacy"}, got.Data.Metadata)
	assert.Equal(t, int64(1690000000000), got.Data.CreatedAt.UnixMilli())
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestGetMissingIsNotFound(t *testing.T) {
	f := newFixture(t, BucketConfig{}, nil)
	res := f.kv.Get(context.Background(), "nope")
	require.NotNil(t, res.Error)
	_, err := res.Unwrap()
	assert.True(t, IsNotFound(err))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.False(t, nf.Expired)
}

func TestCorruptStoredEnvelopeIsStorageError(t *testing.T) {
	f := newFixture(t, BucketConfig{}, nil)
	f.raw().Put("kv:bad", []byte("not json"))
	_, err := f.kv.Get(context.Background(), "bad").Unwrap()
	var soe *StorageOperationError
	require.ErrorAs(t, err, &soe)
	assert.Equal(t, "get", soe.Operation)
}

func TestDeleteIsBestEffort(t *testing.T) {
	ctx := context.Background()
	failDelete := atomic.Bool{}
	f := newFixture(t, BucketConfig{}, []memory.Option{memory.WithFault(func(op, _ string) error {
		if op == "delete" && failDelete.Load() {
			return errors.New("delete refused")
		}
		return nil
	})})

	assert.True(t, f.kv.Delete(ctx, "missing").OK())

	require.True(t, f.kv.Put(ctx, "k", 1, PutOptions{}).OK())
	failDelete.Store(true)
	assert.True(t, f.kv.Delete(ctx, "k").OK())
	_, cached, _ := f.cache.Get(ctx, "kv_k")
	assert.False(t, cached, "cache entry is dropped even when the store delete fails")

	failDelete.Store(false)
	assert.True(t, f.kv.Delete(ctx, "k").OK())
	assert.False(t, f.kv.Has(ctx, "k"))
}

func TestHasIgnoresTTL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)

	require.True(t, f.kv.Put(ctx, "k", 1, PutOptions{TTL: time.Second}).OK())
	f.clock.Advance(2 * time.Second)

	assert.True(t, f.kv.Has(ctx, "k"), "Has probes existence only; it does not check expiry")
	assert.False(t, f.kv.Get(ctx, "k").OK())
	assert.False(t, f.kv.Has(ctx, "k"), "Get evicted the expired object")
}

func TestHasCollapsesFailuresToFalse(t *testing.T) {
	ctx := context.Background()
	failGet := atomic.Bool{}
	f := newFixture(t, BucketConfig{}, []memory.Option{memory.WithFault(func(op, _ string) error {
		if op == "get" && failGet.Load() {
			return errors.New("unreachable")
		}
		return nil
	})})
	require.True(t, f.kv.Put(ctx, "k", 1, PutOptions{}).OK())
	failGet.Store(true)
	assert.False(t, f.kv.Has(ctx, "k"))
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)
	for _, k := range []string{"e", "b", "d", "a", "c"} {
		require.True(t, f.kv.Put(ctx, k, k, PutOptions{}).OK())
	}
	f.raw().Put("other:z", []byte(`{}`))

	res := f.kv.List(ctx, ListOptions{Limit: 2})
	require.True(t, res.OK())
	assert.Equal(t, []string{"a", "b"}, res.Data.Keys)
	assert.True(t, res.Data.HasMore)

	all := f.kv.List(ctx, ListOptions{})
	require.True(t, all.OK())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, all.Data.Keys)
	assert.False(t, all.Data.HasMore)

	g := newFixture(t, BucketConfig{Name: "two"}, nil)
	require.True(t, g.kv.Put(ctx, "x", 1, PutOptions{}).OK())
	require.True(t, g.kv.Put(ctx, "y", 1, PutOptions{}).OK())
	res = g.kv.List(ctx, ListOptions{Limit: 5})
	require.True(t, res.OK())
	assert.Len(t, res.Data.Keys, 2)
	assert.False(t, res.Data.HasMore)
}

func TestListSecondaryPrefix(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)
	for _, k := range []string{"user:1", "user:2", "order:1"} {
		require.True(t, f.kv.Put(ctx, k, 1, PutOptions{}).OK())
	}
	res := f.kv.List(ctx, ListOptions{Prefix: "user:"})
	require.True(t, res.OK())
	assert.Equal(t, []string{"user:1", "user:2"}, res.Data.Keys)

	res = f.kv.List(ctx, ListOptions{Prefix: "kv:order"})
	require.True(t, res.OK())
	assert.Equal(t, []string{"order:1"}, res.Data.Keys)
}

func TestClearRemovesObjectsAndCacheEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)
	for _, k := range []string{"a", "b", "c"} {
		require.True(t, f.kv.Put(ctx, k, k, PutOptions{}).OK())
	}
	f.raw().Put("foreign", []byte("x"))
	require.Equal(t, 3, f.cache.Len())

	res := f.kv.Clear(ctx)
	require.True(t, res.OK())
	assert.Equal(t, 3, res.Data)

	list := f.kv.List(ctx, ListOptions{})
	require.True(t, list.OK())
	assert.Empty(t, list.Data.Keys)
	assert.Equal(t, 0, f.cache.Len(), "no stale cache entries remain")
	_, ok := f.raw().Raw("foreign")
	assert.True(t, ok, "objects outside the key prefix are not touched")

	for _, k := range []string{"a", "b", "c"} {
		assert.False(t, f.kv.Get(ctx, k).OK())
	}
}

func TestClearStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("delete refused")
	armed := atomic.Bool{}
	f := newFixture(t, BucketConfig{}, []memory.Option{memory.WithFault(func(op, key string) error {
		if armed.Load() && op == "delete" && key == "kv:b" {
			return boom
		}
		return nil
	})})
	for _, k := range []string{"a", "b", "c"} {
		require.True(t, f.kv.Put(ctx, k, k, PutOptions{}).OK())
	}
	armed.Store(true)

	res := f.kv.Clear(ctx)
	require.NotNil(t, res.Error)
	assert.Equal(t, 1, res.Data)
	assert.Equal(t, []int{1}, f.hooks.aborted)

	var ce *ClearError
	require.ErrorAs(t, res.Error, &ce)
	assert.Equal(t, "kv:b", ce.Key)
	assert.ErrorIs(t, res.Error, boom)

	list := f.kv.List(ctx, ListOptions{})
	require.True(t, list.OK())
	assert.Equal(t, []string{"b", "c"}, list.Data.Keys, "partial clear leaves later keys in place")
}

func TestCacheKeyCollisionSelfHeals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)

	// "a.b" and "a_b" share the cache key "kv_a_b"
	require.True(t, f.kv.Put(ctx, "a.b", "dot", PutOptions{}).OK())

	res := f.kv.Get(ctx, "a_b")
	require.NotNil(t, res.Error)
	assert.True(t, IsNotFound(res.Error))
	assert.Equal(t, []string{"key_mismatch"}, f.hooks.selfHeals)

	got := f.kv.Get(ctx, "a.b")
	require.True(t, got.OK())
	assert.False(t, got.Data.FromCache)
	assert.Equal(t, `"dot"`, string(got.Data.Value))
}

func TestCorruptCacheEntrySelfHeals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)
	require.True(t, f.kv.Put(ctx, "k", 7, PutOptions{}).OK())

	_, err := f.cache.Set(ctx, "kv_k", []byte("garbage"), 1, time.Minute)
	require.NoError(t, err)

	got := f.kv.Get(ctx, "k")
	require.True(t, got.OK())
	assert.False(t, got.Data.FromCache)
	assert.Equal(t, []string{"corrupt"}, f.hooks.selfHeals)
}

func TestCacheCodecStoresCompactEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil, WithCacheCodec(codec.MustCBOR[Envelope](true)))

	require.True(t, f.kv.Put(ctx, "k", map[string]any{"n": "x"}, PutOptions{Metadata: map[string]any{"m": "y"}}).OK())
	got := f.kv.Get(ctx, "k")
	require.True(t, got.OK())
	assert.True(t, got.Data.FromCache)
	assert.JSONEq(t, `{"n":"x"}`, string(got.Data.Value))
	assert.Equal(t, map[string]any{"m": "y"}, got.Data.Metadata)
}

func TestCacheMaxEntryBytesDropsLargeEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil, WithCacheMaxEntryBytes(128))

	require.True(t, f.kv.Put(ctx, "small", 1, PutOptions{}).OK())
	got := f.kv.Get(ctx, "small")
	require.True(t, got.OK())
	assert.True(t, got.Data.FromCache)

	require.True(t, f.kv.Put(ctx, "large", strings.Repeat("x", 512), PutOptions{}).OK())
	got = f.kv.Get(ctx, "large")
	require.True(t, got.OK(), "oversized cache entries fall back to the store")
	assert.False(t, got.Data.FromCache)
	assert.Equal(t, []string{"decode"}, f.hooks.selfHeals)
}

func TestConsistencyWindowRetriesUntilStoreAnswers(t *testing.T) {
	ctx := context.Background()
	var failures atomic.Int32
	failures.Store(3)
	notReady := errors.New("bucket not visible yet")
	sl := &retrySleeper{clk: newTestClock()}

	f := newFixture(t, BucketConfig{}, []memory.Option{memory.WithFault(func(string, string) error {
		if failures.Add(-1) >= 0 {
			return notReady
		}
		return nil
	})}, sl.option(), WithRetryBaseDelay(100*time.Millisecond))

	res := f.kv.Put(ctx, "k", 1, PutOptions{})
	require.True(t, res.OK(), "%v", res.Error)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, sl.sleeps)
	assert.Len(t, f.hooks.retries, 3)

	// settled: a later failure surfaces immediately
	failures.Store(1)
	got := f.kv.Get(ctx, "missing")
	require.NotNil(t, got.Error)
	assert.ErrorIs(t, got.Error, notReady)
	assert.Len(t, sl.sleeps, 3)
}

func TestConsistencyWindowGivesUp(t *testing.T) {
	ctx := context.Background()
	sl := &retrySleeper{clk: newTestClock()}
	f := newFixture(t, BucketConfig{}, []memory.Option{memory.WithFault(func(op, _ string) error {
		if op == "list" {
			return errors.New("still syncing")
		}
		return nil
	})}, sl.option())

	res := f.kv.List(ctx, ListOptions{})
	require.NotNil(t, res.Error)
	_, err := res.Unwrap()
	var mre *MaxRetryExceededError
	require.ErrorAs(t, err, &mre)
	assert.ErrorIs(t, err, ErrMaxRetry)
}

func TestHashOpsOverKV(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, BucketConfig{}, nil)

	require.True(t, f.kv.HSet(ctx, "h", "b", "2").OK())
	require.True(t, f.kv.HSet(ctx, "h", "a", 1).OK())

	all := f.kv.HGetAll(ctx, "h")
	require.True(t, all.OK())
	assert.Equal(t, map[string]any{"a": float64(1), "b": "2"}, all.Data)

	vals := f.kv.HVals(ctx, "h")
	require.True(t, vals.OK())
	assert.Equal(t, []any{float64(1), "2"}, vals.Data)

	require.True(t, f.kv.Put(ctx, "scalar", 5, PutOptions{}).OK())
	all = f.kv.HGetAll(ctx, "scalar")
	require.True(t, all.OK())
	assert.Nil(t, all.Data, "non-object values read as no hash")

	missing := f.kv.HVals(ctx, "missing")
	require.True(t, missing.OK())
	assert.Nil(t, missing.Data)
}

func TestConcurrentHSetMayLoseAField(t *testing.T) {
	ctx := context.Background()
	var gets atomic.Int32
	var barrier sync.WaitGroup
	barrier.Add(2)
	f := newFixture(t, BucketConfig{CacheEnabled: Bool(false)}, []memory.Option{memory.WithFault(func(op, _ string) error {
		// hold the first two reads until both writers have read
		if op == "get" && gets.Add(1) <= 2 {
			barrier.Done()
			barrier.Wait()
		}
		return nil
	})})

	var wg sync.WaitGroup
	for _, field := range []string{"a", "b"} {
		wg.Add(1)
		go func(field string) {
			defer wg.Done()
			// the loser may also fail outright when both creates race
			_ = f.kv.HSet(ctx, "h", field, field)
		}(field)
	}
	wg.Wait()

	all := f.kv.HGetAll(ctx, "h")
	require.True(t, all.OK())
	assert.GreaterOrEqual(t, len(all.Data), 1, "at least one field survives")
	assert.Len(t, all.Data, 1, "both read an empty hash; the later write wins")
}

func TestResultUnwrapPassesTypedErrors(t *testing.T) {
	nf := &NotFoundError{Key: "k"}
	_, err := failResult[int]("get", nf).Unwrap()
	assert.Same(t, nf, err)

	plain := errors.New("x")
	r := failResult[int]("list", plain)
	assert.Equal(t, "list", r.Error.Operation)
	assert.Equal(t, "x", r.Error.Message)
	_, err = r.Unwrap()
	var soe *StorageOperationError
	require.ErrorAs(t, err, &soe)
	assert.Equal(t, "list", soe.Operation)
	assert.ErrorIs(t, err, plain)

	v, err := okResult(3).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

var _ storage.Client = (*memory.Client)(nil)
