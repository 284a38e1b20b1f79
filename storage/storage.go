// Package storage describes the object storage service the KV engine is
// emulated on. It is a collaborator contract: the engine only needs buckets
// holding opaque byte objects addressed by key.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrObjectExists   = errors.New("storage: object already exists")
	ErrObjectNotFound = errors.New("storage: object not found")
	ErrBucketExists   = errors.New("storage: bucket already exists")
)

// AccessPolicy is the visibility a bucket is created with.
type AccessPolicy string

const (
	AccessPrivate    AccessPolicy = "private"
	AccessPublicRead AccessPolicy = "public-read"
)

// Object is a listing entry.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ListParams narrows ListObjects to keys starting with Prefix.
type ListParams struct {
	Prefix string
}

// ObjectOptions are attached to CreateObject and UpdateObject.
type ObjectOptions struct {
	ContentType string
}

// Client provisions buckets.
type Client interface {
	// GetBucket returns (bucket, true, nil) when the bucket exists and
	// (nil, false, nil) when it does not.
	GetBucket(ctx context.Context, name string) (Bucket, bool, error)

	// CreateBucket fails with ErrBucketExists when name is taken.
	CreateBucket(ctx context.Context, name string, policy AccessPolicy) (Bucket, error)
}

// Bucket holds objects. Implementations must be safe for concurrent use.
type Bucket interface {
	Name() string

	// ListObjects returns every object matching params, following
	// pagination internally. Order is unspecified.
	ListObjects(ctx context.Context, params ListParams) ([]Object, error)

	// GetObjectByKey returns (data, true, nil) on hit and (nil, false, nil)
	// when the key does not exist.
	GetObjectByKey(ctx context.Context, key string) ([]byte, bool, error)

	// CreateObject fails with ErrObjectExists when key is present.
	CreateObject(ctx context.Context, key string, data []byte, opts ObjectOptions) error

	// UpdateObject fails with ErrObjectNotFound when key is absent.
	UpdateObject(ctx context.Context, key string, data []byte, opts ObjectOptions) error

	// DeleteObject removes key. Deleting a missing key is not an error.
	DeleteObject(ctx context.Context, key string) error
}
