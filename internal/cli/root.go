// Package cli implements the edgekv command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/edgekv"
	"github.com/unkn0wn-root/edgekv/config"
	"github.com/unkn0wn-root/edgekv/storage"
)

const Version = "0.4.0"

type app struct {
	v      *viper.Viper
	cfg    config.Config
	output string

	out    io.Writer
	errOut io.Writer

	store  storage.Client
	rdb    *goredis.Client
	log    edgekv.Logger
	kv     *edgekv.KV
	client *edgekv.Client

	closers []func(context.Context) error
}

type Option func(*app)

// WithStorage makes every command use c instead of the configured store.
func WithStorage(c storage.Client) Option { return func(a *app) { a.store = c } }

// WithOutput redirects standard and error output.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *app) {
		a.out = out
		a.errOut = errOut
	}
}

// Run executes the command line args and releases every connection the
// command opened.
func Run(ctx context.Context, args []string, opts ...Option) error {
	a := &app{v: config.NewViper()}
	for _, o := range opts {
		o(a)
	}
	root := newRootCmd(a)
	root.SetArgs(args)
	if a.out != nil {
		root.SetOut(a.out)
	}
	if a.errOut != nil {
		root.SetErr(a.errOut)
	}
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.shutdown(context.WithoutCancel(ctx)))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "edgekv",
		Short: "key-value store on object storage",
		Long: fmt.Sprintf(`edgekv (v%s)

Key-value semantics with TTLs, metadata and hash helpers on top of an
object store bucket (S3, NATS object store or in-memory), fronted by a
local read-through cache.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	fl := root.PersistentFlags()
	fl.String(config.KeyNamespace, "", "namespace for the ns commands")
	fl.String(config.KeyProvider, "auto", "ns provider (native, api, auto)")
	fl.Bool(config.KeyDebug, false, "verbose logging")
	fl.String(config.KeyEnvironment, "production", "api provider environment (production, stage)")
	fl.String(config.KeyToken, "", "api provider token")
	fl.String(config.KeyBucket, "", "bucket for the kv commands")
	fl.String(config.KeyKeyPrefix, edgekv.DefaultKeyPrefix, "object key prefix")
	fl.Duration(config.KeyTTL, edgekv.DefaultTTL, "default ttl of stored keys")
	fl.String(config.KeyStorage, "memory", "object store (memory, s3, nats)")
	fl.String(config.KeyS3Region, "us-east-1", "s3 region")
	fl.String(config.KeyS3Endpoint, "", "custom s3 endpoint (MinIO, R2, ...)")
	fl.Bool(config.KeyS3PathStyle, false, "use path-style s3 addressing")
	fl.String(config.KeyNATSURL, "nats://127.0.0.1:4222", "nats server url")
	fl.String(config.KeyRedisAddr, "", "redis address for the redis local cache and the native ns provider")
	fl.String(config.KeyLocalCache, "memory", "local cache (memory, ristretto, bigcache, redis, none)")
	fl.Int(config.KeyCacheSizeMB, 64, "local cache size in MB (ristretto, bigcache)")
	fl.String(config.KeyCacheCodec, "json", "local cache entry codec (json, cbor, msgpack)")
	fl.String(config.KeyLogger, "slog", "logger (slog, logrus, zap)")
	fl.StringP("output", "o", "text", "output format (text, json, yaml)")

	root.AddCommand(newVersionCmd(), newKVCmd(a), newNSCmd(a))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of edgekv",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "edgekv v%s\n", Version)
		},
	}
}

// setup reads flags, environment and .env files into a.cfg.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	config.LoadDotEnv()
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.errOut = cmd.ErrOrStderr()
	a.output, _ = cmd.Flags().GetString("output")
	switch a.output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output %q (want text, json or yaml)", a.output)
	}

	log, flush := newLogger(cfg, cmd.ErrOrStderr())
	a.log = log
	a.onClose(func(context.Context) error {
		flush()
		return nil
	})
	return nil
}

func (a *app) onClose(fn func(context.Context) error) { a.closers = append(a.closers, fn) }

// shutdown runs the closers in reverse order.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
