// Package snapshot defines the captured application state, its fingerprint,
// and the change-detecting cache that holds the latest published snapshot.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
)

// Snapshot is one captured rendering of the target application's visible
// state. Immutable once produced — the cache replaces it wholesale, never
// mutates it in place.
type Snapshot struct {
	Markup          string `json:"markup"`
	Style           string `json:"style"`
	BackgroundColor string `json:"backgroundColor"`
	Color           string `json:"color"`
	FontFamily      string `json:"fontFamily"`
	ThemeClass      string `json:"themeClass,omitempty"`
	ThemeAttr       string `json:"themeAttr,omitempty"`
	ColorScheme     string `json:"colorScheme,omitempty"`
	BodyBackground  string `json:"bodyBackground,omitempty"`
	BodyColor       string `json:"bodyColor,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Fingerprint returns a deterministic digest of the snapshot's markup.
// Used purely for equality testing across polling cycles, not for security.
func Fingerprint(s *Snapshot) string {
	sum := sha256.Sum256([]byte(s.Markup))
	return hex.EncodeToString(sum[:])
}
