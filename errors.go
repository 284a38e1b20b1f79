package edgekv

import (
	"fmt"

	"github.com/unkn0wn-root/edgekv/kverrors"
)

type (
	ConnectionError         = kverrors.ConnectionError
	NotImplementedError     = kverrors.NotImplementedError
	NotFoundError           = kverrors.NotFoundError
	BucketProvisioningError = kverrors.BucketProvisioningError
	StorageOperationError   = kverrors.StorageOperationError
	MaxRetryExceededError   = kverrors.MaxRetryExceededError
)

var (
	ErrNotConnected        = kverrors.ErrNotConnected
	ErrNamespaceRequired   = kverrors.ErrNamespaceRequired
	ErrProviderUnavailable = kverrors.ErrProviderUnavailable
	ErrNotImplemented      = kverrors.ErrNotImplemented
	ErrNotFound            = kverrors.ErrNotFound
	ErrBucketExists        = kverrors.ErrBucketExists
	ErrMaxRetry            = kverrors.ErrMaxRetry
)

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool { return kverrors.IsNotFound(err) }

// ClearError is returned by KV.Clear when a delete fails partway. Objects
// removed before the failure stay removed.
type ClearError struct {
	Removed int
	Key     string
	Err     error
}

func (e *ClearError) Error() string {
	return fmt.Sprintf("clear stopped at %q after removing %d objects: %v", e.Key, e.Removed, e.Err)
}

func (e *ClearError) Unwrap() error { return e.Err }
