// Package cryptobox seals short plaintexts with AES-256-GCM under per-user
// keys. A sealed blob is the random nonce followed by the ciphertext and tag,
// so a single column holds everything Open needs.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// KeySize is the length of every key accepted by Seal and Open.
const KeySize = 32

var (
	ErrEncryption = errors.New("encryption failed")
	// ErrDecryption covers wrong keys, truncated blobs and tampered
	// ciphertexts alike; GCM cannot tell them apart.
	ErrDecryption = errors.New("decryption failed")
	ErrKeySize    = errors.New("invalid key size")
)

// Seal encrypts plaintext under key. A fresh nonce is drawn for every call,
// so sealing the same plaintext twice yields different blobs.
func Seal(plaintext string, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}

	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Open reverses Seal. It fails with ErrDecryption unless blob was produced by
// Seal under the same key and has not been modified since.
func Open(blob, key []byte) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	nonceSize := aead.NonceSize()
	if len(blob) < nonceSize+aead.Overhead() {
		return "", fmt.Errorf("%w: blob too short", ErrDecryption)
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	return string(plaintext), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
