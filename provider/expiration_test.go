package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateModes(t *testing.T) {
	cases := []struct {
		name string
		exp  *Expiration
		ttl  int64
		want Primitives
	}{
		{"none", nil, 0, Primitives{}},
		{"relative seconds", In(30), 0, Primitives{ExpirationTTL: 30}},
		{"relative millis rounds up", InMillis(1500), 0, Primitives{ExpirationTTL: 2}},
		{"relative millis exact", InMillis(2000), 0, Primitives{ExpirationTTL: 2}},
		{"relative millis sub-second", InMillis(1), 0, Primitives{ExpirationTTL: 1}},
		{"absolute seconds", At(1_700_000_000), 0, Primitives{Expiration: 1_700_000_000}},
		{"absolute millis floors", AtMillis(1_700_000_000_999), 0, Primitives{Expiration: 1_700_000_000}},
		{"keep", KeepExisting(), 0, Primitives{}},
		{"override beats relative", In(30), 90, Primitives{ExpirationTTL: 90}},
		{"override beats absolute", At(1_700_000_000), 90, Primitives{ExpirationTTL: 90}},
		{"override alone", nil, 45, Primitives{ExpirationTTL: 45}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Translate(tc.exp, tc.ttl)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.False(t, got.Expiration != 0 && got.ExpirationTTL != 0, "at most one primitive")
		})
	}
}

func TestTranslateRejectsBadInput(t *testing.T) {
	_, err := Translate(&Expiration{Mode: ExpirationMode(42), Value: 1}, 0)
	assert.Error(t, err)
	_, err = Translate(In(-1), 0)
	assert.Error(t, err)

	for _, e := range []*Expiration{In(0), InMillis(0), At(0), AtMillis(0), AtMillis(999)} {
		p, err := Translate(e, 0)
		assert.Error(t, err, "%s(%d) must not silently mean no expiry", e.Mode, e.Value)
		assert.Equal(t, Primitives{}, p)
	}

	p, err := Translate(In(0), 30)
	require.NoError(t, err, "an explicit TTL overrides the descriptor")
	assert.Equal(t, Primitives{ExpirationTTL: 30}, p)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindAuto, k)
	k, err = ParseKind(" Native ")
	require.NoError(t, err)
	assert.Equal(t, KindNative, k)
	_, err = ParseKind("edge")
	assert.Error(t, err)
}
