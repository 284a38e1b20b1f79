// Package edgekv is a key-value access layer with two backends behind one
// vocabulary.
//
// Client talks to a KV capability the hosting runtime exposes natively
// (provider "native"), or to the remote REST provider (provider "api",
// not implemented yet). Provider selection happens once, in Connect.
//
// KV emulates key-value semantics on top of any object store that
// implements storage.Client: one JSON envelope per key, TTLs enforced on
// read (an expired object is deleted the next time it is read), and an
// optional local read-through cache.
//
// Envelope (one object per key, stored under KeyPrefix+key):
//
//	{"value":<json>,"expiresAt":<epoch ms>,"metadata":{...},"createdAt":<epoch ms>}
//
// Right after a bucket is provisioned, object stores may briefly answer
// with errors. Until the first successful call, every backing-store call of
// a KV is retried with exponential backoff for up to two minutes.
//
// Typical use:
//
//	res := edgekv.SetupKV(ctx, s3client, edgekv.BucketConfig{Name: "sessions"})
//	kv, err := res.Unwrap()
//	if err != nil { ... }
//	defer kv.Close(ctx)
//	kv.Put(ctx, "user:1", map[string]any{"name": "ada"}, edgekv.PutOptions{TTL: time.Hour})
//	got := kv.Get(ctx, "user:1")
package edgekv
