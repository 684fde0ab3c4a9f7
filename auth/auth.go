// Package auth covers the server's credential surface: opaque bearer
// tokens, the short-code pairing flow, and the HTTP middleware that
// guards the API.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
)

// NewToken generates an opaque bearer token: 32 random bytes,
// URL-safe base64.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// pairing codes use an unambiguous uppercase alphabet (no 0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewPairingCode generates an 8-character pairing code.
func NewPairingCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}

// BearerToken extracts the token from an Authorization header, or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
