// Package kverrors holds the error taxonomy shared by every edgekv layer.
//
// Provider-level code returns these types directly. The storage-backed engine
// reports failures as result values and converts them into these types only
// when the caller asks for a plain error (see edgekv.Result.Unwrap).
package kverrors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotConnected        = errors.New("edgekv: not connected")
	ErrNamespaceRequired   = errors.New("edgekv: namespace is required")
	ErrProviderUnavailable = errors.New("edgekv: provider unavailable")
	ErrNotImplemented      = errors.New("edgekv: not implemented")
	ErrNotFound            = errors.New("edgekv: key not found")
	ErrBucketExists        = errors.New("edgekv: bucket already exists")
	ErrMaxRetry            = errors.New("edgekv: max retry time reached")
)

// ConnectionError is returned when a client cannot resolve its namespace or
// provider, or when an operation runs on a client that is not connected.
type ConnectionError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ConnectionError) Error() string {
	switch {
	case e.Provider != "" && e.Reason != "":
		return fmt.Sprintf("edgekv connection (%s): %s", e.Provider, e.Reason)
	case e.Reason != "":
		return "edgekv connection: " + e.Reason
	case e.Err != nil:
		return "edgekv connection: " + e.Err.Error()
	default:
		return "edgekv connection failed"
	}
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotImplementedError marks an operation a provider does not support yet.
type NotImplementedError struct {
	Provider  string
	Operation string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("edgekv: %s provider: %s not implemented", e.Provider, e.Operation)
}

func (e *NotImplementedError) Unwrap() error { return ErrNotImplemented }

// NotFoundError reports a missing key. Expired is set when the key existed
// but was evicted on read.
type NotFoundError struct {
	Key     string
	Expired bool
}

func (e *NotFoundError) Error() string {
	if e.Expired {
		return fmt.Sprintf("edgekv: key %q expired", e.Key)
	}
	return fmt.Sprintf("edgekv: key %q not found", e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type BucketProvisioningError struct {
	Bucket string
	Err    error
}

func (e *BucketProvisioningError) Error() string {
	return fmt.Sprintf("edgekv: provision bucket %q: %v", e.Bucket, e.Err)
}

func (e *BucketProvisioningError) Unwrap() error { return e.Err }

// StorageOperationError wraps a failure of the backing object store.
type StorageOperationError struct {
	Operation string
	Key       string
	Err       error
}

func (e *StorageOperationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("edgekv: storage %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("edgekv: storage %s %q: %v", e.Operation, e.Key, e.Err)
}

func (e *StorageOperationError) Unwrap() error { return e.Err }

// MaxRetryExceededError is returned once the retry budget is spent.
// Last holds the error of the final attempt.
type MaxRetryExceededError struct {
	Attempts int
	Elapsed  time.Duration
	Last     error
}

func (e *MaxRetryExceededError) Error() string {
	return fmt.Sprintf("edgekv: max retry time reached after %d attempts (%s): %v",
		e.Attempts, e.Elapsed, e.Last)
}

func (e *MaxRetryExceededError) Unwrap() []error {
	errs := make([]error, 0, 2)
	errs = append(errs, ErrMaxRetry)
	if e.Last != nil {
		errs = append(errs, e.Last)
	}
	return errs
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
