// Package s3 implements storage.Client on Amazon S3 and S3-compatible
// services.
//
// CreateObject uses a conditional put (If-None-Match: *). UpdateObject
// probes the key with HeadObject first; the probe and the put are not
// atomic, which matches the last-writer-wins model of the KV engine.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/unkn0wn-root/edgekv/storage"
)

// API is the subset of *s3.Client used here.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Config struct {
	Region         string
	Endpoint       string // custom endpoint for MinIO, R2, etc.
	ForcePathStyle bool
	MaxRetries     int
}

type Client struct {
	api    API
	region string
}

var _ storage.Client = (*Client)(nil)

// New loads the default AWS configuration and builds a client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxRetries))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return &Client{api: client, region: awsCfg.Region}, nil
}

// NewWithAPI wraps an existing S3 API implementation.
func NewWithAPI(api API, region string) *Client {
	return &Client{api: api, region: region}
}

func (c *Client) GetBucket(ctx context.Context, name string) (storage.Bucket, bool, error) {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("HeadBucket failed for %s: %w", name, err)
	}
	return &Bucket{api: c.api, name: name}, true, nil
}

func (c *Client) CreateBucket(ctx context.Context, name string, policy storage.AccessPolicy) (storage.Bucket, error) {
	in := &s3.CreateBucketInput{
		Bucket: aws.String(name),
		ACL:    bucketACL(policy),
	}
	if c.region != "" && c.region != "us-east-1" {
		in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(c.region),
		}
	}
	if _, err := c.api.CreateBucket(ctx, in); err != nil {
		if isErrorType[*s3types.BucketAlreadyOwnedByYou](err) || isErrorType[*s3types.BucketAlreadyExists](err) {
			return nil, storage.ErrBucketExists
		}
		return nil, fmt.Errorf("CreateBucket failed for %s: %w", name, err)
	}
	return &Bucket{api: c.api, name: name}, nil
}

func bucketACL(p storage.AccessPolicy) s3types.BucketCannedACL {
	if p == storage.AccessPublicRead {
		return s3types.BucketCannedACLPublicRead
	}
	return s3types.BucketCannedACLPrivate
}

type Bucket struct {
	api  API
	name string
}

var _ storage.Bucket = (*Bucket)(nil)

func (b *Bucket) Name() string { return b.name }

func (b *Bucket) ListObjects(ctx context.Context, p storage.ListParams) ([]storage.Object, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(b.name)}
	if p.Prefix != "" {
		in.Prefix = aws.String(p.Prefix)
	}
	var out []storage.Object
	pager := s3.NewListObjectsV2Paginator(b.api, in)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, b.translateError(err, "ListObjectsV2", p.Prefix)
		}
		for _, o := range page.Contents {
			obj := storage.Object{Key: aws.ToString(o.Key), Size: aws.ToInt64(o.Size)}
			if o.LastModified != nil {
				obj.LastModified = *o.LastModified
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

func (b *Bucket) GetObjectByKey(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := b.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.name), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, b.translateError(err, "GetObject", key)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read object body %s: %w", key, err)
	}
	return data, true, nil
}

func (b *Bucket) CreateObject(ctx context.Context, key string, data []byte, opts storage.ObjectOptions) error {
	in := b.putInput(key, data, opts)
	in.IfNoneMatch = aws.String("*")
	if _, err := b.api.PutObject(ctx, in); err != nil {
		if isPreconditionFailed(err) {
			return storage.ErrObjectExists
		}
		return b.translateError(err, "PutObject", key)
	}
	return nil
}

func (b *Bucket) UpdateObject(ctx context.Context, key string, data []byte, opts storage.ObjectOptions) error {
	if _, err := b.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.name), Key: aws.String(key)}); err != nil {
		if isNotFound(err) {
			return storage.ErrObjectNotFound
		}
		return b.translateError(err, "HeadObject", key)
	}
	if _, err := b.api.PutObject(ctx, b.putInput(key, data, opts)); err != nil {
		return b.translateError(err, "PutObject", key)
	}
	return nil
}

func (b *Bucket) DeleteObject(ctx context.Context, key string) error {
	_, err := b.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.name), Key: aws.String(key)})
	if err != nil && !isNotFound(err) {
		return b.translateError(err, "DeleteObject", key)
	}
	return nil
}

func (b *Bucket) putInput(key string, data []byte, opts storage.ObjectOptions) *s3.PutObjectInput {
	ct := opts.ContentType
	if ct == "" {
		ct = "application/json"
	}
	return &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ct),
	}
}

func (b *Bucket) translateError(err error, operation, key string) error {
	if isErrorType[*s3types.NoSuchBucket](err) {
		return fmt.Errorf("bucket not found: %s: %w", b.name, err)
	}
	return fmt.Errorf("%s failed for %s: %w", operation, key, err)
}

func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func isNotFound(err error) bool {
	if isErrorType[*s3types.NoSuchKey](err) || isErrorType[*s3types.NotFound](err) || isErrorType[*s3types.NoSuchBucket](err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}
