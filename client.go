package edgekv

import (
	"context"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/edgekv/capability"
	"github.com/unkn0wn-root/edgekv/config"
	"github.com/unkn0wn-root/edgekv/internal/hashmap"
	"github.com/unkn0wn-root/edgekv/kverrors"
	"github.com/unkn0wn-root/edgekv/provider"
	"github.com/unkn0wn-root/edgekv/provider/api"
	"github.com/unkn0wn-root/edgekv/provider/native"
)

// Client is the KV facade. Connect picks the provider once; data
// operations fail with a ConnectionError until it succeeds.
type Client struct {
	opts Options
	log  Logger

	mu        sync.RWMutex
	p         provider.Provider
	namespace string
}

// Connect resolves the namespace and the provider. Calling it on a
// connected client is a no-op.
func (c *Client) Connect(ctx context.Context) (*Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.p != nil {
		return c, nil
	}

	ns := c.opts.Namespace
	if ns == "" {
		lookup := c.opts.LookupNamespace
		if lookup == nil {
			lookup = config.Namespace
		}
		ns = lookup()
	}
	if ns == "" {
		return nil, &kverrors.ConnectionError{Reason: "namespace is required", Err: kverrors.ErrNamespaceRequired}
	}

	kind := coalesce(c.opts.Provider, provider.KindAuto)
	p, err := c.selectProvider(ctx, kind, ns)
	if err != nil {
		c.log.Error("connect failed", Fields{"provider": string(kind), "namespace": ns, "err": err})
		return nil, err
	}
	c.p = p
	c.namespace = ns
	c.log.Debug("connected", Fields{"provider": string(p.Kind()), "namespace": ns})
	return c, nil
}

func (c *Client) selectProvider(ctx context.Context, kind provider.Kind, ns string) (provider.Provider, error) {
	switch kind {
	case provider.KindNative:
		return native.Open(ctx, c.opts.Capability, ns)
	case provider.KindAPI:
		return c.apiProvider(ns), nil
	case provider.KindAuto:
		if nativeAvailable(c.opts.Capability) {
			return native.Open(ctx, c.opts.Capability, ns)
		}
		c.log.Debug("native KV not available, using api provider", Fields{"namespace": ns})
		return c.apiProvider(ns), nil
	default:
		return nil, &kverrors.ConnectionError{Provider: string(kind), Reason: fmt.Sprintf("unknown provider %q", kind)}
	}
}

func nativeAvailable(hc capability.Capability) bool {
	return hc != nil && hc.IsAvailable()
}

func (c *Client) apiProvider(ns string) provider.Provider {
	return api.New(api.Config{
		Namespace:   ns,
		Token:       c.opts.Token,
		Environment: c.opts.Environment,
		Debug:       c.opts.Debug,
	})
}

// Disconnect drops the provider. Idempotent.
func (c *Client) Disconnect(context.Context) error {
	c.mu.Lock()
	c.p = nil
	c.namespace = ""
	c.mu.Unlock()
	return nil
}

// ProviderType returns the kind of the connected provider, or "" before
// Connect.
func (c *Client) ProviderType() provider.Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.p == nil {
		return ""
	}
	return c.p.Kind()
}

func (c *Client) Namespace() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.namespace
}

func (c *Client) connected() (provider.Provider, error) {
	c.mu.RLock()
	p := c.p
	c.mu.RUnlock()
	if p == nil {
		return nil, &kverrors.ConnectionError{Reason: "not connected, call Connect first", Err: kverrors.ErrNotConnected}
	}
	return p, nil
}

func (c *Client) Get(ctx context.Context, key string, opts provider.GetOptions) (any, bool, error) {
	p, err := c.connected()
	if err != nil {
		return nil, false, err
	}
	return p.Get(ctx, key, opts)
}

// GetText reads key as text.
func (c *Client) GetText(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := c.Get(ctx, key, provider.GetOptions{Type: capability.TypeText})
	if err != nil || !ok {
		return "", ok, err
	}
	switch t := v.(type) {
	case string:
		return t, true, nil
	case []byte:
		return string(t), true, nil
	default:
		return fmt.Sprint(t), true, nil
	}
}

func (c *Client) GetWithMetadata(ctx context.Context, key string, opts provider.GetOptions) (provider.ValueWithMetadata, bool, error) {
	p, err := c.connected()
	if err != nil {
		return provider.ValueWithMetadata{}, false, err
	}
	return p.GetWithMetadata(ctx, key, opts)
}

func (c *Client) Set(ctx context.Context, key string, value any, opts provider.SetOptions) error {
	p, err := c.connected()
	if err != nil {
		return err
	}
	return p.Set(ctx, key, value, opts)
}

func (c *Client) Delete(ctx context.Context, key string) error {
	p, err := c.connected()
	if err != nil {
		return err
	}
	return p.Delete(ctx, key)
}

// HSet sets field in the JSON object stored under key. Not atomic: two
// concurrent HSet calls on one key may lose a field.
func (c *Client) HSet(ctx context.Context, key, field string, value any) error {
	if _, err := c.connected(); err != nil {
		return err
	}
	return hashmap.Set(ctx, clientHashStore{c}, key, field, value)
}

// HGetAll returns ok=false both for a missing key and for a value that is
// not a JSON object.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]any, bool, error) {
	if _, err := c.connected(); err != nil {
		return nil, false, err
	}
	return hashmap.GetAll(ctx, clientHashStore{c}, key)
}

func (c *Client) HVals(ctx context.Context, key string) ([]any, bool, error) {
	if _, err := c.connected(); err != nil {
		return nil, false, err
	}
	return hashmap.Vals(ctx, clientHashStore{c}, key)
}

type clientHashStore struct{ c *Client }

func (s clientHashStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := s.c.GetText(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte(v), true, nil
}

func (s clientHashStore) Save(ctx context.Context, key string, raw []byte) error {
	return s.c.Set(ctx, key, string(raw), provider.SetOptions{})
}
