// Package config reads edgekv settings from flags, EDGEKV_* environment
// variables and .env / .env.local files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "edgekv"

// Keys understood by Load. Flags bound to a viper instance use the same names.
const (
	KeyNamespace   = "namespace"
	KeyProvider    = "provider"
	KeyDebug       = "debug"
	KeyEnvironment = "environment"
	KeyToken       = "token"
	KeyBucket      = "bucket"
	KeyKeyPrefix   = "key-prefix"
	KeyTTL         = "ttl"
	KeyStorage     = "storage"
	KeyS3Region    = "s3-region"
	KeyS3Endpoint  = "s3-endpoint"
	KeyS3PathStyle = "s3-path-style"
	KeyNATSURL     = "nats-url"
	KeyRedisAddr   = "redis-addr"
	KeyLocalCache  = "local-cache"
	KeyCacheSizeMB = "cache-size-mb"
	KeyCacheCodec  = "cache-codec"
	KeyLogger      = "logger"
)

type Config struct {
	Namespace   string
	Provider    string
	Debug       bool
	Environment string
	Token       string

	Bucket    string
	KeyPrefix string
	TTL       time.Duration
	Storage   string // memory | s3 | nats

	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	NATSURL     string
	RedisAddr   string

	LocalCache  string // memory | ristretto | bigcache | redis | none
	CacheSizeMB int
	CacheCodec  string // json | cbor | msgpack

	Logger string // slog | logrus | zap
}

// LoadDotEnv loads .env and .env.local when present. Variables already set
// in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// NewViper returns a viper instance reading EDGEKV_* variables, with
// defaults set. "key-prefix" maps to EDGEKV_KEY_PREFIX.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyProvider, "auto")
	v.SetDefault(KeyEnvironment, "production")
	v.SetDefault(KeyKeyPrefix, "kv:")
	v.SetDefault(KeyTTL, "300s")
	v.SetDefault(KeyStorage, "memory")
	v.SetDefault(KeyS3Region, "us-east-1")
	v.SetDefault(KeyNATSURL, "nats://127.0.0.1:4222")
	v.SetDefault(KeyLocalCache, "memory")
	v.SetDefault(KeyCacheSizeMB, 64)
	v.SetDefault(KeyCacheCodec, "json")
	v.SetDefault(KeyLogger, "slog")
	return v
}

// Load reads a Config from v.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		Namespace:   v.GetString(KeyNamespace),
		Provider:    v.GetString(KeyProvider),
		Debug:       v.GetBool(KeyDebug),
		Environment: v.GetString(KeyEnvironment),
		Token:       v.GetString(KeyToken),
		Bucket:      v.GetString(KeyBucket),
		KeyPrefix:   v.GetString(KeyKeyPrefix),
		TTL:         v.GetDuration(KeyTTL),
		Storage:     strings.ToLower(v.GetString(KeyStorage)),
		S3Region:    v.GetString(KeyS3Region),
		S3Endpoint:  v.GetString(KeyS3Endpoint),
		S3PathStyle: v.GetBool(KeyS3PathStyle),
		NATSURL:     v.GetString(KeyNATSURL),
		RedisAddr:   v.GetString(KeyRedisAddr),
		LocalCache:  strings.ToLower(v.GetString(KeyLocalCache)),
		CacheSizeMB: v.GetInt(KeyCacheSizeMB),
		CacheCodec:  strings.ToLower(v.GetString(KeyCacheCodec)),
		Logger:      strings.ToLower(v.GetString(KeyLogger)),
	}
	if c.TTL < 0 {
		return Config{}, fmt.Errorf("invalid ttl %s", c.TTL)
	}
	switch c.Environment {
	case "production", "stage":
	default:
		return Config{}, fmt.Errorf("invalid environment %q (want production or stage)", c.Environment)
	}
	switch c.Storage {
	case "memory", "s3", "nats":
	default:
		return Config{}, fmt.Errorf("invalid storage %q (want memory, s3 or nats)", c.Storage)
	}
	switch c.LocalCache {
	case "memory", "ristretto", "bigcache", "none":
	case "redis":
		if c.RedisAddr == "" {
			return Config{}, fmt.Errorf("local cache redis needs %s", KeyRedisAddr)
		}
	default:
		return Config{}, fmt.Errorf("invalid local cache %q (want memory, ristretto, bigcache, redis or none)", c.LocalCache)
	}
	if c.CacheSizeMB <= 0 {
		return Config{}, fmt.Errorf("invalid cache size %d MB", c.CacheSizeMB)
	}
	switch c.CacheCodec {
	case "json", "cbor", "msgpack":
	default:
		return Config{}, fmt.Errorf("invalid cache codec %q (want json, cbor or msgpack)", c.CacheCodec)
	}
	switch c.Logger {
	case "slog", "logrus", "zap":
	default:
		return Config{}, fmt.Errorf("invalid logger %q (want slog, logrus or zap)", c.Logger)
	}
	return c, nil
}

// Namespace returns EDGEKV_NAMESPACE, or "" when unset. It only reads the
// process environment; programs that want .env files call LoadDotEnv once
// at startup, as cmd/edgekv does.
func Namespace() string {
	return NewViper().GetString(KeyNamespace)
}
