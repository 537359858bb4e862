package cookie

import (
	"sync"
	"time"

	"wgcore/internal/wgcrypto"
)

// CacheTTL is how long a received cookie remains usable as a mac2 key
// before the initiator must request a fresh one, per spec.md §4.4
// ("cache the 16-byte cookie with a 120-second TTL").
const CacheTTL = 120 * time.Second

// Cache holds the most recently received cookie for one peer.
//
// Supplements spec.md's single "store the cookie" instruction with
// an explicit expiry, grounded on original_source/src/utils.rs's
// Instant-based deadline bookkeeping (SPEC_FULL.md §12): a cookie
// past its TTL must not be used as a mac2 key, it must instead prompt
// the initiator to wait for a fresh cookie reply.
type Cache struct {
	mu      sync.Mutex
	value   [wgcrypto.MacSize]byte
	expires time.Time
	valid   bool
}

// Store records a freshly received cookie, valid until now+CacheTTL.
func (c *Cache) Store(value [wgcrypto.MacSize]byte, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.expires = now.Add(CacheTTL)
	c.valid = true
}

// Get returns the cached cookie if present and unexpired at now.
func (c *Cache) Get(now time.Time) ([wgcrypto.MacSize]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || now.After(c.expires) {
		var zero [wgcrypto.MacSize]byte
		return zero, false
	}
	return c.value, true
}

// Clear forgets any cached cookie.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.value = [wgcrypto.MacSize]byte{}
}
