package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns an unguessable random identifier, optionally prefixed.
// Used for tokens and other opaque handles.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewUUID returns a v4 UUID string. Used for database row identifiers.
func NewUUID() string {
	return uuid.NewString()
}
