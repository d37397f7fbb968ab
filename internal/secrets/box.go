// Package secrets seals OAuth provider tokens before they are stored.
// Provider tokens have to stay recoverable so the media proxies can call
// upstream APIs on the user's behalf, so this is AEAD rather than a hash.
package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrSealedTooShort = errors.New("sealed value too short")

type Box struct {
	key []byte
}

// NewBox builds a Box from a 64-char hex key (32 bytes).
func NewBox(hexKey string) (*Box, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode seal key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("seal key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Box{key: key}, nil
}

// Seal encrypts plaintext with a random nonce prepended to the output.
func (b *Box) Seal(plaintext string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (b *Box) Open(sealed []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", ErrSealedTooShort
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plaintext), nil
}

// NewHexKey generates a fresh key in the format NewBox accepts. Intended
// for one-off setup, not runtime use.
func NewHexKey() string {
	key := make([]byte, chacha20poly1305.KeySize)
	_, _ = rand.Read(key)
	return hex.EncodeToString(key)
}
