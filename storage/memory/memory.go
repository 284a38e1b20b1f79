// Package memory is an in-process storage.Client, used by tests and by the
// CLI when no remote object store is configured.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/edgekv/storage"
)

// FaultFunc is consulted before every bucket operation. A non-nil error is
// returned to the caller instead of running the operation.
type FaultFunc func(op, key string) error

type Client struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	now     func() time.Time
	fault   FaultFunc
}

var _ storage.Client = (*Client)(nil)

type Option func(*Client)

// WithFault installs a fault injector on every bucket of the client.
func WithFault(f FaultFunc) Option { return func(c *Client) { c.fault = f } }

// WithClock sets the clock used for LastModified.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func New(opts ...Option) *Client {
	c := &Client{buckets: make(map[string]*Bucket), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) GetBucket(_ context.Context, name string) (storage.Bucket, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[name]
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

func (c *Client) CreateBucket(_ context.Context, name string, policy storage.AccessPolicy) (storage.Bucket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buckets[name]; ok {
		return nil, storage.ErrBucketExists
	}
	b := &Bucket{name: name, policy: policy, objects: make(map[string]object), client: c}
	c.buckets[name] = b
	return b, nil
}

// Bucket returns the named bucket for inspection, or nil.
func (c *Client) Bucket(name string) *Bucket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buckets[name]
}

type object struct {
	data    []byte
	ctype   string
	modTime time.Time
}

type Bucket struct {
	name    string
	policy  storage.AccessPolicy
	client  *Client
	mu      sync.RWMutex
	objects map[string]object
}

var _ storage.Bucket = (*Bucket)(nil)

func (b *Bucket) Name() string                 { return b.name }
func (b *Bucket) Policy() storage.AccessPolicy { return b.policy }

func (b *Bucket) check(op, key string) error {
	if f := b.client.fault; f != nil {
		return f(op, key)
	}
	return nil
}

func (b *Bucket) ListObjects(_ context.Context, p storage.ListParams) ([]storage.Object, error) {
	if err := b.check("list", p.Prefix); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]storage.Object, 0, len(b.objects))
	for k, o := range b.objects {
		if strings.HasPrefix(k, p.Prefix) {
			out = append(out, storage.Object{Key: k, Size: int64(len(o.data)), LastModified: o.modTime})
		}
	}
	return out, nil
}

func (b *Bucket) GetObjectByKey(_ context.Context, key string) ([]byte, bool, error) {
	if err := b.check("get", key); err != nil {
		return nil, false, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.objects[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), o.data...), true, nil
}

func (b *Bucket) CreateObject(_ context.Context, key string, data []byte, opts storage.ObjectOptions) error {
	if err := b.check("create", key); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; ok {
		return storage.ErrObjectExists
	}
	b.objects[key] = b.newObject(data, opts)
	return nil
}

func (b *Bucket) UpdateObject(_ context.Context, key string, data []byte, opts storage.ObjectOptions) error {
	if err := b.check("update", key); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	b.objects[key] = b.newObject(data, opts)
	return nil
}

func (b *Bucket) DeleteObject(_ context.Context, key string) error {
	if err := b.check("delete", key); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.objects, key)
	b.mu.Unlock()
	return nil
}

// Len reports the number of stored objects.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Put writes an object unconditionally, bypassing faults. Test helper for
// seeding records written by other implementations.
func (b *Bucket) Put(key string, data []byte) {
	b.mu.Lock()
	b.objects[key] = b.newObject(data, storage.ObjectOptions{})
	b.mu.Unlock()
}

// Raw returns the stored bytes for key, bypassing faults.
func (b *Bucket) Raw(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.objects[key]
	return o.data, ok
}

func (b *Bucket) newObject(data []byte, opts storage.ObjectOptions) object {
	return object{data: append([]byte(nil), data...), ctype: opts.ContentType, modTime: b.client.now()}
}
