package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/edgekv"
	"github.com/unkn0wn-root/edgekv/storage/memory"
)

type result struct {
	out, errOut string
	err         error
}

func run(t *testing.T, store *memory.Client, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Run(context.Background(), args, WithStorage(store), WithOutput(&out, &errOut))
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func mustRun(t *testing.T, store *memory.Client, args ...string) string {
	t.Helper()
	r := run(t, store, args...)
	require.NoError(t, r.err, r.errOut)
	return r.out
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"EDGEKV_BUCKET", "EDGEKV_NAMESPACE", "EDGEKV_REDIS_ADDR", "EDGEKV_LOCAL_CACHE", "EDGEKV_STORAGE"} {
		t.Setenv(k, "")
	}
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "edgekv v"+Version+"\n", mustRun(t, memory.New(), "version"))
}

func TestKVSetGet(t *testing.T) {
	clearEnv(t)
	store := memory.New()

	out := mustRun(t, store, "kv", "set", "--bucket", "b", "greeting", "hello")
	assert.Contains(t, out, "stored greeting (expires ")
	assert.Equal(t, "hello\n", mustRun(t, store, "kv", "get", "--bucket", "b", "greeting"))

	mustRun(t, store, "kv", "set", "--bucket", "b", "doc", `{"n":1}`, "--meta", "lang=en")
	var view map[string]any
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, store, "kv", "get", "--bucket", "b", "doc", "-o", "json")), &view))
	assert.Equal(t, "doc", view["key"])
	assert.Equal(t, map[string]any{"n": float64(1)}, view["value"])
	assert.Equal(t, map[string]any{"lang": "en"}, view["metadata"])
	assert.Equal(t, false, view["fromCache"])

	raw, ok := store.Bucket("b").Raw("kv:doc")
	require.True(t, ok)
	assert.Contains(t, string(raw), `"value":{"n":1}`)
}

func TestKVYAMLOutput(t *testing.T) {
	clearEnv(t)
	store := memory.New()
	mustRun(t, store, "kv", "set", "--bucket", "b", "k", "[1,2]", "--expires-in", "1h")

	var view struct {
		Key       string    `yaml:"key"`
		Value     []int     `yaml:"value"`
		ExpiresAt time.Time `yaml:"expiresAt"`
		FromCache bool      `yaml:"fromCache"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(mustRun(t, store, "kv", "get", "--bucket", "b", "k", "-o", "yaml")), &view))
	assert.Equal(t, "k", view.Key)
	assert.Equal(t, []int{1, 2}, view.Value)
	assert.WithinDuration(t, time.Now().Add(time.Hour), view.ExpiresAt, time.Minute)
	assert.False(t, view.FromCache)
}

func TestKVListHasDeleteClear(t *testing.T) {
	clearEnv(t)
	store := memory.New()
	for _, k := range []string{"c", "a", "b"} {
		mustRun(t, store, "kv", "set", "--bucket", "b", k, k)
	}

	assert.Equal(t, "a\nb\n... more keys, raise --limit\n", mustRun(t, store, "kv", "list", "--bucket", "b", "--limit", "2"))

	var list struct {
		Keys    []string `json:"keys"`
		HasMore bool     `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, store, "kv", "list", "--bucket", "b", "-o", "json")), &list))
	assert.Equal(t, []string{"a", "b", "c"}, list.Keys)
	assert.False(t, list.HasMore)

	assert.Equal(t, "true\n", mustRun(t, store, "kv", "has", "--bucket", "b", "a"))
	mustRun(t, store, "kv", "delete", "--bucket", "b", "a")
	assert.Equal(t, "false\n", mustRun(t, store, "kv", "has", "--bucket", "b", "a"))

	r := run(t, store, "kv", "clear", "--bucket", "b")
	assert.ErrorContains(t, r.err, "--yes")
	assert.Equal(t, "removed 2 objects\n", mustRun(t, store, "kv", "clear", "--bucket", "b", "--yes"))
	assert.Equal(t, 0, store.Bucket("b").Len())
}

func TestKVHashes(t *testing.T) {
	clearEnv(t)
	store := memory.New()
	mustRun(t, store, "kv", "hset", "--bucket", "b", "user", "name", "ada")
	mustRun(t, store, "kv", "hset", "--bucket", "b", "user", "age", "36")

	assert.Equal(t, "age=36\nname=ada\n", mustRun(t, store, "kv", "hgetall", "--bucket", "b", "user"))

	var vals []any
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, store, "kv", "hvals", "--bucket", "b", "user", "-o", "json")), &vals))
	assert.Equal(t, []any{float64(36), "ada"}, vals)

	mustRun(t, store, "kv", "set", "--bucket", "b", "scalar", "5")
	assert.Error(t, run(t, store, "kv", "hgetall", "--bucket", "b", "scalar").err)
}

func TestKVErrors(t *testing.T) {
	clearEnv(t)
	store := memory.New()

	r := run(t, store, "kv", "get", "k")
	assert.ErrorIs(t, r.err, errBucketRequired)

	r = run(t, store, "kv", "get", "--bucket", "b", "missing")
	assert.True(t, edgekv.IsNotFound(r.err))
	assert.Contains(t, r.errOut, "not found")

	r = run(t, store, "kv", "list", "--bucket", "b", "-o", "xml")
	assert.ErrorContains(t, r.err, "invalid output")

	r = run(t, store, "kv", "list", "--bucket", "b", "--storage", "disk")
	assert.ErrorContains(t, r.err, "invalid storage")
}

func TestKVLocalCaches(t *testing.T) {
	clearEnv(t)
	mr := miniredis.RunT(t)
	cases := [][]string{
		{"--local-cache", "none"},
		{"--local-cache", "ristretto", "--cache-size-mb", "8"},
		{"--local-cache", "bigcache", "--cache-size-mb", "8"},
		{"--local-cache", "memory", "--cache-codec", "cbor"},
		{"--local-cache", "memory", "--cache-codec", "msgpack"},
		{"--local-cache", "redis", "--redis-addr", mr.Addr(), "--cache-codec", "cbor"},
	}
	for _, flags := range cases {
		t.Run(flags[1]+"/"+flags[len(flags)-1], func(t *testing.T) {
			store := memory.New()
			set := append([]string{"kv", "set", "--bucket", "b", "k", `{"v":true}`}, flags...)
			mustRun(t, store, set...)
			get := append([]string{"kv", "get", "--bucket", "b", "k"}, flags...)
			assert.Equal(t, `{"v":true}`+"\n", mustRun(t, store, get...))
		})
	}
	assert.True(t, mr.Exists("edgekv:cache:b:kv_k"))
}

func TestKVLoggers(t *testing.T) {
	clearEnv(t)
	for _, logger := range []string{"slog", "logrus", "zap"} {
		t.Run(logger, func(t *testing.T) {
			r := run(t, memory.New(), "kv", "set", "--bucket", "b", "k", "v", "--debug", "--logger", logger)
			require.NoError(t, r.err)
			// the first write of a key falls back from update to create
			assert.Contains(t, r.errOut, "edgekv.upsert_fallback")
		})
	}
}

func TestNSWithRedisCapability(t *testing.T) {
	clearEnv(t)
	mr := miniredis.RunT(t)
	store := memory.New()
	ns := func(args ...string) []string {
		return append([]string{"ns", "--namespace", "app", "--redis-addr", mr.Addr()}, args...)
	}

	assert.Equal(t, "provider=native namespace=app\n", mustRun(t, store, ns("info")...))

	mustRun(t, store, ns("set", "k", "v", "--expiration-ttl", "60", "--meta", "o=cli")...)
	assert.Equal(t, 60*time.Second, mr.TTL("app:k"))
	assert.Equal(t, "v\n", mustRun(t, store, ns("get", "k")...))
	assert.Equal(t, "v\no=cli\n", mustRun(t, store, ns("get", "k", "--metadata")...))

	mustRun(t, store, ns("hset", "h", "a", "1")...)
	mustRun(t, store, ns("hset", "h", "b", `"x"`)...)
	assert.Equal(t, "a=1\nb=x\n", mustRun(t, store, ns("hgetall", "h")...))
	assert.Equal(t, "1\nx\n", mustRun(t, store, ns("hvals", "h")...))

	mustRun(t, store, ns("delete", "k")...)
	assert.Error(t, run(t, store, ns("get", "k")...).err)
}

func TestNSWithoutCapabilityUsesAPIProvider(t *testing.T) {
	clearEnv(t)
	store := memory.New()
	assert.Equal(t, "provider=api namespace=app\n", mustRun(t, store, "ns", "info", "--namespace", "app"))

	r := run(t, store, "ns", "get", "k", "--namespace", "app")
	assert.ErrorIs(t, r.err, edgekv.ErrNotImplemented)

	r = run(t, store, "ns", "info")
	assert.ErrorIs(t, r.err, edgekv.ErrNamespaceRequired)

	r = run(t, store, "ns", "info", "--namespace", "app", "--provider", "native")
	assert.ErrorIs(t, r.err, edgekv.ErrProviderUnavailable)
}
