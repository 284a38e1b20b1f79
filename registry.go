package edgekv

import (
	"context"
	"errors"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/unkn0wn-root/edgekv/storage"
)

// Registry hands out one KV per bucket name over a shared storage client.
// The zero value is not usable; build one with NewRegistry and Close it
// when done.
type Registry struct {
	client storage.Client
	opts   []Option
	kvs    *xsync.MapOf[string, *KV]
}

// NewRegistry returns an empty registry. opts apply to every KV it opens.
func NewRegistry(client storage.Client, opts ...Option) *Registry {
	return &Registry{
		client: client,
		opts:   opts,
		kvs:    xsync.NewMapOf[string, *KV](),
	}
}

// Open returns the KV for cfg.Name, setting it up on first use. Later calls
// return the same KV and ignore cfg. Two racing first calls both provision;
// one KV wins and the other is closed.
func (r *Registry) Open(ctx context.Context, cfg BucketConfig, opts ...Option) Result[*KV] {
	if kv, ok := r.kvs.Load(cfg.Name); ok {
		return okResult(kv)
	}
	res := SetupKV(ctx, r.client, cfg, append(append([]Option(nil), r.opts...), opts...)...)
	if res.Error != nil {
		return res
	}
	kv, loaded := r.kvs.LoadOrStore(cfg.Name, res.Data)
	if loaded {
		_ = res.Data.Close(ctx)
	}
	return okResult(kv)
}

func (r *Registry) Lookup(name string) (*KV, bool) { return r.kvs.Load(name) }

// Drop removes and closes the KV for name. Stored data is untouched.
func (r *Registry) Drop(ctx context.Context, name string) error {
	kv, ok := r.kvs.LoadAndDelete(name)
	if !ok {
		return nil
	}
	return kv.Close(ctx)
}

// Names returns the bucket names of the open KVs, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.kvs.Size())
	r.kvs.Range(func(name string, _ *KV) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Close drops every KV.
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for _, name := range r.Names() {
		if err := r.Drop(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
