package native

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/edgekv/capability"
	"github.com/unkn0wn-root/edgekv/kverrors"
	"github.com/unkn0wn-root/edgekv/provider"
)

type fakeCapability struct {
	available bool
	openErr   error
	h         *fakeHandle
	opened    string
}

func (f *fakeCapability) IsAvailable() bool { return f.available }

func (f *fakeCapability) Open(_ context.Context, ns string) (capability.Handle, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = ns
	return f.h, nil
}

type fakeHandle struct {
	lastPut capability.PutOptions
	lastGet capability.GetOptions
	meta    map[string]any
	values  map[string]any
	deleted []string
}

func (h *fakeHandle) Get(_ context.Context, key string, opts capability.GetOptions) (any, bool, error) {
	h.lastGet = opts
	v, ok := h.values[key]
	return v, ok, nil
}

func (h *fakeHandle) GetWithMetadata(_ context.Context, key string, opts capability.GetOptions) (capability.ValueWithMetadata, bool, error) {
	h.lastGet = opts
	v, ok := h.values[key]
	if !ok {
		return capability.ValueWithMetadata{}, false, nil
	}
	return capability.ValueWithMetadata{Value: v, Metadata: h.meta}, true, nil
}

func (h *fakeHandle) Put(_ context.Context, key string, value any, opts capability.PutOptions) error {
	h.lastPut = opts
	h.values[key] = value
	return nil
}

func (h *fakeHandle) Delete(_ context.Context, key string) error {
	h.deleted = append(h.deleted, key)
	delete(h.values, key)
	return nil
}

func newFake() *fakeCapability {
	return &fakeCapability{available: true, h: &fakeHandle{values: map[string]any{}}}
}

func TestOpenUnavailable(t *testing.T) {
	_, err := Open(context.Background(), &fakeCapability{}, "ns")
	var ce *kverrors.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, kverrors.ErrProviderUnavailable)

	_, err = Open(context.Background(), nil, "ns")
	assert.ErrorAs(t, err, &ce)
}

func TestOpenFailureIsConnectionError(t *testing.T) {
	boom := errors.New("denied")
	f := newFake()
	f.openErr = boom
	_, err := Open(context.Background(), f, "ns")
	var ce *kverrors.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, boom)
}

func TestSetTranslatesExpiration(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	p, err := Open(ctx, f, "ns")
	require.NoError(t, err)
	assert.Equal(t, "ns", f.opened)
	assert.Equal(t, provider.KindNative, p.Kind())

	require.NoError(t, p.Set(ctx, "k", "v", provider.SetOptions{Expiration: provider.InMillis(1500)}))
	assert.Equal(t, capability.PutOptions{ExpirationTTL: 2}, f.h.lastPut)

	require.NoError(t, p.Set(ctx, "k", "v", provider.SetOptions{Expiration: provider.AtMillis(1_700_000_000_500)}))
	assert.Equal(t, capability.PutOptions{Expiration: 1_700_000_000}, f.h.lastPut)

	require.NoError(t, p.Set(ctx, "k", "v", provider.SetOptions{Expiration: provider.At(1_700_000_000), ExpirationTTL: 60}))
	assert.Equal(t, capability.PutOptions{ExpirationTTL: 60}, f.h.lastPut)

	meta := map[string]any{"a": "b"}
	require.NoError(t, p.Set(ctx, "k", "v", provider.SetOptions{Expiration: provider.KeepExisting(), Metadata: meta}))
	assert.Equal(t, capability.PutOptions{Metadata: meta}, f.h.lastPut)
}

func TestGetPassesTypeAndHint(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	f.h.values["k"] = []byte("x")
	p, _ := Open(ctx, f, "ns")

	v, ok, err := p.Get(ctx, "k", provider.GetOptions{Type: capability.TypeBytes, CacheTTL: 60})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("x"), v)
	assert.Equal(t, capability.GetOptions{Type: capability.TypeBytes, CacheTTL: 60}, f.h.lastGet)

	_, _, err = p.Get(ctx, "k", provider.GetOptions{Type: "blob"})
	assert.Error(t, err)
}

func TestGetWithMetadataKeepsAbsentAndEmptyApart(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	f.h.values["k"] = "v"
	p, _ := Open(ctx, f, "ns")

	vm, ok, err := p.GetWithMetadata(ctx, "k", provider.GetOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, vm.Metadata)

	f.h.meta = map[string]any{}
	vm, _, _ = p.GetWithMetadata(ctx, "k", provider.GetOptions{})
	require.NotNil(t, vm.Metadata, "empty metadata is not absent metadata")
	assert.Empty(t, vm.Metadata)

	f.h.meta = map[string]any{"owner": "x"}
	vm, _, _ = p.GetWithMetadata(ctx, "k", provider.GetOptions{})
	assert.Equal(t, map[string]any{"owner": "x"}, vm.Metadata)
}

func TestDeleteIsPassthrough(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	p, _ := Open(ctx, f, "ns")
	require.NoError(t, p.Delete(ctx, "missing"))
	assert.Equal(t, []string{"missing"}, f.h.deleted)
}
