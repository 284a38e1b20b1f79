package edgekv

import (
	"context"

	"github.com/unkn0wn-root/edgekv/capability"
	"github.com/unkn0wn-root/edgekv/provider"
)

// KeyValue is the operation set of a connected Client.
type KeyValue interface {
	Get(ctx context.Context, key string, opts provider.GetOptions) (any, bool, error)
	GetWithMetadata(ctx context.Context, key string, opts provider.GetOptions) (provider.ValueWithMetadata, bool, error)
	Set(ctx context.Context, key string, value any, opts provider.SetOptions) error
	Delete(ctx context.Context, key string) error

	HSet(ctx context.Context, key, field string, value any) error
	HGetAll(ctx context.Context, key string) (map[string]any, bool, error)
	HVals(ctx context.Context, key string) ([]any, bool, error)
}

var _ KeyValue = (*Client)(nil)

// Options configure a Client. Everything is optional; Namespace falls back
// to EDGEKV_NAMESPACE (environment or .env file).
type Options struct {
	Namespace string
	Provider  provider.Kind // "" => auto

	// Capability is the host's native KV. nil means the runtime has none.
	Capability capability.Capability

	Debug       bool
	Environment string // "production" | "stage", passed to the API provider
	Token       string

	Logger Logger // nil => NopLogger, or a slog-backed logger when Debug is set

	// LookupNamespace replaces the environment lookup. Mostly for tests.
	LookupNamespace func() string
}

// New returns an unconnected client. It does no I/O.
func New(opts Options) *Client {
	c := &Client{opts: opts}
	switch {
	case opts.Logger != nil:
		c.log = opts.Logger
	case opts.Debug:
		c.log = newDebugLogger()
	default:
		c.log = NopLogger{}
	}
	return c
}
