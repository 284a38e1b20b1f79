// Package provider defines the operation set shared by the native and the
// API-backed KV providers.
//
// Providers report failures as typed errors from package kverrors.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/edgekv/capability"
)

// Kind names a provider implementation.
type Kind string

const (
	KindNative Kind = "native"
	KindAPI    Kind = "api"
	KindAuto   Kind = "auto"
)

// ParseKind accepts the kinds case-insensitively; empty means auto.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindNative, KindAPI, KindAuto:
		return k, nil
	default:
		return "", fmt.Errorf("edgekv: unknown provider %q", s)
	}
}

type GetOptions = capability.GetOptions

type ValueWithMetadata = capability.ValueWithMetadata

type SetOptions struct {
	Expiration *Expiration
	// ExpirationTTL, in seconds, overrides Expiration when positive.
	ExpirationTTL int64
	Metadata      map[string]any
}

// Provider is a connected KV backend. Get returns found=false for a
// missing key; it is not an error.
type Provider interface {
	Kind() Kind
	Get(ctx context.Context, key string, opts GetOptions) (any, bool, error)
	GetWithMetadata(ctx context.Context, key string, opts GetOptions) (ValueWithMetadata, bool, error)
	Set(ctx context.Context, key string, value any, opts SetOptions) error
	Delete(ctx context.Context, key string) error
}
