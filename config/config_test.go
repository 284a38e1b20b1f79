package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EDGEKV_NAMESPACE", "")
	c, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "auto", c.Provider)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, "kv:", c.KeyPrefix)
	assert.Equal(t, 300*time.Second, c.TTL)
	assert.Equal(t, "memory", c.Storage)
	assert.Equal(t, "memory", c.LocalCache)
	assert.Equal(t, 64, c.CacheSizeMB)
	assert.Equal(t, "json", c.CacheCodec)
	assert.Equal(t, "slog", c.Logger)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("EDGEKV_NAMESPACE", "sessions")
	t.Setenv("EDGEKV_KEY_PREFIX", "app:")
	t.Setenv("EDGEKV_TTL", "90s")
	t.Setenv("EDGEKV_DEBUG", "true")
	t.Setenv("EDGEKV_STORAGE", "S3")
	t.Setenv("EDGEKV_LOCAL_CACHE", "ristretto")
	t.Setenv("EDGEKV_LOGGER", "zap")

	c, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "sessions", c.Namespace)
	assert.Equal(t, "app:", c.KeyPrefix)
	assert.Equal(t, 90*time.Second, c.TTL)
	assert.True(t, c.Debug)
	assert.Equal(t, "s3", c.Storage)
	assert.Equal(t, "ristretto", c.LocalCache)
	assert.Equal(t, "zap", c.Logger)

	assert.Equal(t, "sessions", Namespace())
}

func TestNamespaceDoesNotLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EDGEKV_NAMESPACE=from-file\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("EDGEKV_NAMESPACE", "")
	require.NoError(t, os.Unsetenv("EDGEKV_NAMESPACE"))

	assert.Empty(t, Namespace())
	_, set := os.LookupEnv("EDGEKV_NAMESPACE")
	assert.False(t, set, "reading the namespace must not touch the environment")

	LoadDotEnv()
	assert.Equal(t, "from-file", Namespace())
}

func TestLoadRejectsBadValues(t *testing.T) {
	v := NewViper()
	v.Set(KeyEnvironment, "qa")
	_, err := Load(v)
	assert.Error(t, err)

	v = NewViper()
	v.Set(KeyStorage, "disk")
	_, err = Load(v)
	assert.Error(t, err)

	v = NewViper()
	v.Set(KeyLocalCache, "redis")
	_, err = Load(v)
	assert.ErrorContains(t, err, KeyRedisAddr)

	v.Set(KeyRedisAddr, "127.0.0.1:6379")
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "redis", c.LocalCache)
}
