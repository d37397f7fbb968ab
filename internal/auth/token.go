package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StateClaims is the signed payload carried through an OAuth authorization
// round trip. The nonce binds the callback to the login request that
// started it.
type StateClaims struct {
	Provider string `json:"provider"`
	Nonce    string `json:"nonce"`
	Redirect string `json:"redirect,omitempty"`
	Exp      int64  `json:"exp"`
}

var (
	ErrInvalidState = errors.New("invalid state token")
	ErrExpiredState = errors.New("expired state token")
)

func IssueState(secret []byte, claims StateClaims) (string, error) {
	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	signature := sign(secret, payload)
	return payload + "." + signature, nil
}

func ParseState(secret []byte, token string) (StateClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return StateClaims{}, ErrInvalidState
	}
	payload := parts[0]
	signature := parts[1]

	expected := sign(secret, payload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return StateClaims{}, ErrInvalidState
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return StateClaims{}, ErrInvalidState
	}

	var claims StateClaims
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return StateClaims{}, ErrInvalidState
	}
	if claims.Provider == "" || claims.Nonce == "" || claims.Exp == 0 {
		return StateClaims{}, ErrInvalidState
	}
	if time.Now().Unix() >= claims.Exp {
		return StateClaims{}, ErrExpiredState
	}
	return claims, nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}

// HashToken derives the storage key for a session token. Only the hash is
// ever persisted.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
