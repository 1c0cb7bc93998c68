package mirror

import (
	"github.com/hazyhaar/appmirror/mirror/internal/config"
	"github.com/hazyhaar/appmirror/mirror/internal/discovery"
	"github.com/hazyhaar/appmirror/mirror/internal/inject"
	"github.com/hazyhaar/appmirror/mirror/internal/snapshot"
)

// Config is the top-level appmirror configuration. Re-exported from internal.
type Config = config.Config

// Snapshot is one captured rendering of application state.
type Snapshot = snapshot.Snapshot

// Cache holds the latest published snapshot and its fingerprint.
type Cache = snapshot.Cache

// Result reports how an injection was delivered.
type Result = inject.Result

// NewCache creates an empty snapshot cache.
func NewCache() *Cache {
	return snapshot.NewCache()
}

// ErrEndpointNotFound means discovery exhausted every candidate port.
var ErrEndpointNotFound = discovery.ErrEndpointNotFound

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	return config.Default()
}

// Fingerprint returns the deterministic digest of a snapshot's markup.
func Fingerprint(s *Snapshot) string {
	return snapshot.Fingerprint(s)
}
