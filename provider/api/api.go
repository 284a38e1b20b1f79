// Package api is the provider meant to reach a remote KV REST endpoint
// directly. It is not implemented: every operation fails with
// kverrors.NotImplementedError. Callers on hosts without the native
// capability should use the storage-backed KV (edgekv.SetupKV) instead.
//
// The client facade still selects this provider in auto mode when the
// native capability is missing, so Connect succeeds and the first data
// operation reports the gap.
package api

import (
	"context"

	"github.com/unkn0wn-root/edgekv/kverrors"
	"github.com/unkn0wn-root/edgekv/provider"
)

const name = "api"

// Config is retained for the REST implementation.
type Config struct {
	Namespace   string
	Token       string
	Environment string
	Debug       bool
}

type Provider struct {
	cfg Config
}

var _ provider.Provider = (*Provider)(nil)

func New(cfg Config) *Provider { return &Provider{cfg: cfg} }

func (p *Provider) Kind() provider.Kind { return provider.KindAPI }

func (p *Provider) Config() Config { return p.cfg }

func (p *Provider) Get(context.Context, string, provider.GetOptions) (any, bool, error) {
	return nil, false, notImplemented("get")
}

func (p *Provider) GetWithMetadata(context.Context, string, provider.GetOptions) (provider.ValueWithMetadata, bool, error) {
	return provider.ValueWithMetadata{}, false, notImplemented("getWithMetadata")
}

func (p *Provider) Set(context.Context, string, any, provider.SetOptions) error {
	return notImplemented("set")
}

func (p *Provider) Delete(context.Context, string) error {
	return notImplemented("delete")
}

func notImplemented(op string) error {
	return &kverrors.NotImplementedError{Provider: name, Operation: op}
}
