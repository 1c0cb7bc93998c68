// Package auth implements the shared-token access control applied to the
// HTTP surface and the distribution channel. One process-wide secret,
// generated at startup or supplied externally, gates everything.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// NewToken generates a random access token.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Equal compares a presented token against the configured one in constant
// time.
func Equal(token, candidate string) bool {
	if token == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1
}

// FromRequest extracts the presented token from the X-Auth-Token header,
// an Authorization Bearer header, or the token query parameter, in that
// order. Returns "" when none is present.
func FromRequest(r *http.Request) string {
	if t := r.Header.Get("X-Auth-Token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
