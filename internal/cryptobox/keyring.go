package cryptobox

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/crypto/hkdf"
)

var ErrNoSecret = errors.New("no key material for owner")

const drawKeyInfo = "lottery/draw-key/v1"

// SecretSource returns the per-user secret that draw keys are derived from.
type SecretSource interface {
	PinKey(ctx context.Context, userID uint) (string, error)
}

// KeyRing derives draw keys from each owner's secret. Keys are derived on
// every lookup and never stored next to the records they protect.
type KeyRing struct {
	secrets SecretSource
}

func NewKeyRing(secrets SecretSource) *KeyRing {
	return &KeyRing{secrets: secrets}
}

// Key returns the draw key owned by userID.
func (k *KeyRing) Key(ctx context.Context, userID uint) ([]byte, error) {
	secret, err := k.secrets.PinKey(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup secret for user %d: %w", userID, err)
	}
	if secret == "" {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNoSecret)
	}

	return DeriveKey(secret, userID)
}

// DeriveKey expands secret into a KeySize key bound to userID with HKDF-SHA256.
func DeriveKey(secret string, userID uint) ([]byte, error) {
	salt := []byte(strconv.FormatUint(uint64(userID), 10))
	r := hkdf.New(sha256.New, []byte(secret), salt, []byte(drawKeyInfo))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
