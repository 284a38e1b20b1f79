package edgekv

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/edgekv/kverrors"
	"github.com/unkn0wn-root/edgekv/storage"
)

var errBucketNameRequired = errors.New("bucket name is required")

// SetupKV returns a KV for cfg.Name, creating the bucket when it does not
// exist. Concurrent callers may both try to create it; the loser re-reads
// the bucket instead of failing.
func SetupKV(ctx context.Context, client storage.Client, cfg BucketConfig, opts ...Option) Result[*KV] {
	const op = "setup"
	cfg = cfg.withDefaults()
	if cfg.Name == "" {
		return failResult[*KV](op, &kverrors.BucketProvisioningError{Err: errBucketNameRequired})
	}

	b, found, err := client.GetBucket(ctx, cfg.Name)
	if err != nil {
		return failResult[*KV](op, &kverrors.BucketProvisioningError{Bucket: cfg.Name, Err: err})
	}
	if !found {
		b, err = client.CreateBucket(ctx, cfg.Name, cfg.AccessPolicy)
		if errors.Is(err, storage.ErrBucketExists) {
			b, found, err = client.GetBucket(ctx, cfg.Name)
			if err == nil && !found {
				err = errors.New("bucket reported as existing but cannot be opened")
			}
		}
		if err != nil {
			return failResult[*KV](op, &kverrors.BucketProvisioningError{Bucket: cfg.Name, Err: err})
		}
	}
	return okResult(newKV(b, cfg, opts))
}

// CreateKV is SetupKV without the get: it fails with a
// BucketProvisioningError wrapping ErrBucketExists when the bucket is
// already there.
func CreateKV(ctx context.Context, client storage.Client, cfg BucketConfig, opts ...Option) Result[*KV] {
	const op = "create"
	cfg = cfg.withDefaults()
	if cfg.Name == "" {
		return failResult[*KV](op, &kverrors.BucketProvisioningError{Err: errBucketNameRequired})
	}

	_, found, err := client.GetBucket(ctx, cfg.Name)
	if err != nil {
		return failResult[*KV](op, &kverrors.BucketProvisioningError{Bucket: cfg.Name, Err: err})
	}
	if found {
		return failResult[*KV](op, &kverrors.BucketProvisioningError{Bucket: cfg.Name, Err: kverrors.ErrBucketExists})
	}
	b, err := client.CreateBucket(ctx, cfg.Name, cfg.AccessPolicy)
	if err != nil {
		if errors.Is(err, storage.ErrBucketExists) {
			err = errors.Join(kverrors.ErrBucketExists, err)
		}
		return failResult[*KV](op, &kverrors.BucketProvisioningError{Bucket: cfg.Name, Err: err})
	}
	return okResult(newKV(b, cfg, opts))
}
