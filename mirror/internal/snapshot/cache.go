package snapshot

import "sync"

// Cache holds the latest known-good snapshot and its fingerprint, and
// decides whether a fresh capture represents a change worth publishing.
// Snapshot and fingerprint are always replaced as a pair, so a reader
// never observes a fingerprint without its matching snapshot.
type Cache struct {
	mu          sync.RWMutex
	current     *Snapshot
	fingerprint string
}

// NewCache creates an empty cache. The zero value is also usable.
func NewCache() *Cache {
	return &Cache{}
}

// Update compares snap against the cached fingerprint. If it differs (or
// nothing was cached yet) the snapshot becomes current and Update reports
// true. A nil or error-flagged snapshot never touches the cache — the
// previous snapshot remains the latest-known-good value.
func (c *Cache) Update(snap *Snapshot) bool {
	if snap == nil || snap.Error != "" {
		return false
	}

	fp := Fingerprint(snap)

	c.mu.Lock()
	defer c.mu.Unlock()

	if fp == c.fingerprint {
		return false
	}
	c.current = snap
	c.fingerprint = fp
	return true
}

// Current returns the cached snapshot, or ok=false if nothing has been
// captured yet.
func (c *Cache) Current() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil, false
	}
	return c.current, true
}

// Fingerprint returns the fingerprint of the cached snapshot, or "" when
// the cache is empty.
func (c *Cache) Fingerprint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fingerprint
}
