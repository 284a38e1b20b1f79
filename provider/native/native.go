// Package native adapts a host KV capability to provider.Provider.
package native

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/edgekv/capability"
	"github.com/unkn0wn-root/edgekv/kverrors"
	"github.com/unkn0wn-root/edgekv/provider"
)

const name = "native"

type Provider struct {
	h         capability.Handle
	namespace string
}

var _ provider.Provider = (*Provider)(nil)

// Open probes c and opens namespace on it.
func Open(ctx context.Context, c capability.Capability, namespace string) (*Provider, error) {
	if c == nil || !c.IsAvailable() {
		return nil, &kverrors.ConnectionError{
			Provider: name,
			Reason:   "native KV capability is not available in this runtime",
			Err:      kverrors.ErrProviderUnavailable,
		}
	}
	h, err := c.Open(ctx, namespace)
	if err != nil {
		return nil, &kverrors.ConnectionError{
			Provider: name,
			Reason:   fmt.Sprintf("open namespace %q: %v", namespace, err),
			Err:      err,
		}
	}
	return &Provider{h: h, namespace: namespace}, nil
}

func (p *Provider) Kind() provider.Kind { return provider.KindNative }

func (p *Provider) Namespace() string { return p.namespace }

func (p *Provider) Get(ctx context.Context, key string, opts provider.GetOptions) (any, bool, error) {
	if !opts.Type.Valid() {
		return nil, false, fmt.Errorf("edgekv: unknown value type %q", opts.Type)
	}
	return p.h.Get(ctx, key, opts)
}

// GetWithMetadata returns nil Metadata when the key has none. An empty map
// stored by the host comes back as an empty map.
func (p *Provider) GetWithMetadata(ctx context.Context, key string, opts provider.GetOptions) (provider.ValueWithMetadata, bool, error) {
	if !opts.Type.Valid() {
		return provider.ValueWithMetadata{}, false, fmt.Errorf("edgekv: unknown value type %q", opts.Type)
	}
	v, ok, err := p.h.GetWithMetadata(ctx, key, opts)
	if err != nil || !ok {
		return provider.ValueWithMetadata{}, ok, err
	}
	return v, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value any, opts provider.SetOptions) error {
	prim, err := provider.Translate(opts.Expiration, opts.ExpirationTTL)
	if err != nil {
		return err
	}
	return p.h.Put(ctx, key, value, capability.PutOptions{
		Expiration:    prim.Expiration,
		ExpirationTTL: prim.ExpirationTTL,
		Metadata:      opts.Metadata,
	})
}

func (p *Provider) Delete(ctx context.Context, key string) error {
	return p.h.Delete(ctx, key)
}
