package edgekv

import (
	"errors"

	"github.com/unkn0wn-root/edgekv/kverrors"
)

// OpError is the failure half of a Result. Err keeps the typed cause.
type OpError struct {
	Message   string
	Operation string
	Err       error
}

func (e *OpError) Error() string { return e.Operation + ": " + e.Message }
func (e *OpError) Unwrap() error { return e.Err }

// Result is what KV operations return: Data on success, Error otherwise.
// Callers branch on Error; Unwrap converts to the (value, error) form.
type Result[T any] struct {
	Data  T
	Error *OpError
}

func (r Result[T]) OK() bool { return r.Error == nil }

// Unwrap returns Data and a typed error. NotFoundError, BucketProvisioningError,
// MaxRetryExceededError and StorageOperationError pass through; any other
// cause is wrapped in a StorageOperationError for the failed operation.
func (r Result[T]) Unwrap() (T, error) {
	if r.Error == nil {
		return r.Data, nil
	}
	return r.Data, r.Error.typed()
}

func (e *OpError) typed() error {
	var (
		nf  *kverrors.NotFoundError
		bp  *kverrors.BucketProvisioningError
		mr  *kverrors.MaxRetryExceededError
		soe *kverrors.StorageOperationError
	)
	switch {
	case errors.As(e.Err, &nf), errors.As(e.Err, &bp), errors.As(e.Err, &mr), errors.As(e.Err, &soe):
		return e.Err
	default:
		return &kverrors.StorageOperationError{Operation: e.Operation, Err: e.Err}
	}
}

func okResult[T any](v T) Result[T] { return Result[T]{Data: v} }

func failResult[T any](op string, err error) Result[T] {
	return Result[T]{Error: &OpError{Message: err.Error(), Operation: op, Err: err}}
}
