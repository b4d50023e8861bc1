package cryptobox

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := newKey(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "draw numbers", plaintext: "1 2 3 4 5 6"},
		{name: "upper bound", plaintext: "0 10 20 30 40 60"},
		{name: "empty", plaintext: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Seal(tt.plaintext, key)
			require.NoError(t, err)

			got, err := Open(blob, key)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, got)
		})
	}
}

func TestSeal_RandomizedPerCall(t *testing.T) {
	key := newKey(t)

	a, err := Seal("1 2 3 4 5 6", key)
	require.NoError(t, err)
	b, err := Seal("1 2 3 4 5 6", key)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestOpen_Failures(t *testing.T) {
	key := newKey(t)
	blob, err := Seal("1 2 3 4 5 6", key)
	require.NoError(t, err)

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name string
		blob []byte
		key  []byte
	}{
		{name: "wrong key", blob: blob, key: newKey(t)},
		{name: "tampered tag", blob: tampered, key: key},
		{name: "truncated", blob: blob[:8], key: key},
		{name: "short key", blob: blob, key: key[:16]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Open(tt.blob, tt.key)
			assert.ErrorIs(t, err, ErrDecryption)
			assert.Empty(t, got)
		})
	}
}

func TestSeal_RejectsBadKey(t *testing.T) {
	_, err := Seal("1 2 3 4 5 6", []byte("short"))
	assert.ErrorIs(t, err, ErrEncryption)
	assert.ErrorIs(t, err, ErrKeySize)
}

type staticSecrets map[uint]string

func (s staticSecrets) PinKey(_ context.Context, userID uint) (string, error) {
	secret, ok := s[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return secret, nil
}

func TestKeyRing_Key(t *testing.T) {
	ring := NewKeyRing(staticSecrets{
		1: "BFB5S34STBLZCOB22K6PPYDCMZMH46OJ",
		2: "BFB5S34STBLZCOB22K6PPYDCMZMH46OJ",
		3: "",
	})
	ctx := context.Background()

	k1, err := ring.Key(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, k1, KeySize)

	again, err := ring.Key(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, k1, again)

	// same secret, different owner
	k2, err := ring.Key(ctx, 2)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	_, err = ring.Key(ctx, 3)
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = ring.Key(ctx, 42)
	assert.Error(t, err)
}

func TestKeyRing_OtherOwnersKeyCannotOpen(t *testing.T) {
	ring := NewKeyRing(staticSecrets{
		1: "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP",
		2: "KRSXG5CTMVRXEZLUKRSXG5CTMVRXEZLU",
	})
	ctx := context.Background()

	owner, err := ring.Key(ctx, 1)
	require.NoError(t, err)
	other, err := ring.Key(ctx, 2)
	require.NoError(t, err)

	blob, err := Seal("4 8 15 16 23 42", owner)
	require.NoError(t, err)

	_, err = Open(blob, other)
	assert.ErrorIs(t, err, ErrDecryption)
}
