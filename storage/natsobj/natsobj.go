// Package natsobj implements storage.Client on a NATS JetStream object store.
//
// Object stores have no conditional put, so CreateObject and UpdateObject
// probe with GetInfo before writing. Concurrent writers race; the last
// write wins.
package natsobj

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/unkn0wn-root/edgekv/storage"
)

// JetStream is the subset of jetstream.JetStream used here.
type JetStream interface {
	ObjectStore(ctx context.Context, bucket string) (jetstream.ObjectStore, error)
	CreateObjectStore(ctx context.Context, cfg jetstream.ObjectStoreConfig) (jetstream.ObjectStore, error)
}

type Config struct {
	// Replicas and Storage are applied to buckets created by CreateBucket.
	Replicas int
	Storage  jetstream.StorageType
}

type Client struct {
	js   JetStream
	cfg  Config
	conn *nats.Conn
}

var _ storage.Client = (*Client)(nil)

// Connect dials url and opens JetStream. Close releases the connection.
func Connect(url string, cfg Config, opts ...nats.Option) (*Client, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Client{js: js, cfg: cfg, conn: nc}, nil
}

// New wraps an existing JetStream context. The caller keeps ownership of the
// underlying connection.
func New(js JetStream, cfg Config) *Client {
	return &Client{js: js, cfg: cfg}
}

func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) GetBucket(ctx context.Context, name string) (storage.Bucket, bool, error) {
	os, err := c.js.ObjectStore(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketNotFound) || errors.Is(err, jetstream.ErrStreamNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open object store %s: %w", name, err)
	}
	return &Bucket{os: os, name: name}, true, nil
}

// CreateBucket ignores the access policy: object store visibility is
// governed by NATS account permissions.
func (c *Client) CreateBucket(ctx context.Context, name string, _ storage.AccessPolicy) (storage.Bucket, error) {
	if _, found, err := c.GetBucket(ctx, name); err != nil {
		return nil, err
	} else if found {
		return nil, storage.ErrBucketExists
	}
	os, err := c.js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:   name,
		Replicas: c.cfg.Replicas,
		Storage:  c.cfg.Storage,
	})
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) || errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
			return nil, storage.ErrBucketExists
		}
		return nil, fmt.Errorf("create object store %s: %w", name, err)
	}
	return &Bucket{os: os, name: name}, nil
}

// objectStore is the subset of jetstream.ObjectStore used by Bucket.
type objectStore interface {
	GetBytes(ctx context.Context, name string, opts ...jetstream.GetObjectOpt) ([]byte, error)
	GetInfo(ctx context.Context, name string, opts ...jetstream.GetObjectInfoOpt) (*jetstream.ObjectInfo, error)
	PutBytes(ctx context.Context, name string, data []byte) (*jetstream.ObjectInfo, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, opts ...jetstream.ListObjectsOpt) ([]*jetstream.ObjectInfo, error)
}

type Bucket struct {
	os   objectStore
	name string
}

var _ storage.Bucket = (*Bucket)(nil)

func (b *Bucket) Name() string { return b.name }

func (b *Bucket) ListObjects(ctx context.Context, p storage.ListParams) ([]storage.Object, error) {
	infos, err := b.os.List(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", b.name, err)
	}
	out := make([]storage.Object, 0, len(infos))
	for _, info := range infos {
		if info.Deleted || !hasPrefix(info.Name, p.Prefix) {
			continue
		}
		out = append(out, storage.Object{Key: info.Name, Size: int64(info.Size), LastModified: info.ModTime})
	}
	return out, nil
}

func (b *Bucket) GetObjectByKey(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.os.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return data, true, nil
}

func (b *Bucket) CreateObject(ctx context.Context, key string, data []byte, _ storage.ObjectOptions) error {
	exists, err := b.exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return storage.ErrObjectExists
	}
	return b.put(ctx, key, data)
}

func (b *Bucket) UpdateObject(ctx context.Context, key string, data []byte, _ storage.ObjectOptions) error {
	exists, err := b.exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrObjectNotFound
	}
	return b.put(ctx, key, data)
}

func (b *Bucket) DeleteObject(ctx context.Context, key string) error {
	if err := b.os.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (b *Bucket) exists(ctx context.Context, key string) (bool, error) {
	info, err := b.os.GetInfo(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get info %s: %w", key, err)
	}
	return !info.Deleted, nil
}

func (b *Bucket) put(ctx context.Context, key string, data []byte) error {
	if _, err := b.os.PutBytes(ctx, key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
