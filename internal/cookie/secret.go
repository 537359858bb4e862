// Package cookie implements WireGuard's DoS-mitigation cookie
// subprotocol: spec.md §4.4. The rotating host secret, the mac1/mac2
// tails on every handshake message, and cookie-reply issuance and
// consumption all live here.
//
// Grounded directly on infrastructure/cryptography/noise/{cookie.go,
// mac.go,load_monitor.go}: the rotating-secret-plus-time-bucket
// design, the BLAKE2s-128 keyed MAC, and the XChaCha20-Poly1305
// cookie-reply encryption are the teacher's, generalized from its
// single "cookie_value" bucket MAC to spec.md's explicit 120s
// CookieSecret type with hard rotation (no time-bucket windowing —
// the spec wants one active secret, not the teacher's current/previous
// bucket tolerance).
package cookie

import (
	"crypto/rand"
	"sync"
	"time"

	"wgcore/internal/mem"
	"wgcore/internal/wgcrypto"
)

// SecretTTL is COOKIE_SECRET_TTL from spec.md §4.8.
const SecretTTL = 120 * time.Second

// Secret is the host-wide rotating value cookies are MACed with.
// Safe for concurrent use; spec.md §5 confines this to one shard,
// but the mutex costs nothing and matches the teacher's
// CookieManager, which is also mutex-protected.
type Secret struct {
	mu      sync.RWMutex
	value   [32]byte
	rotated time.Time
	nowFn   func() time.Time
}

// NewSecret creates a Secret with a fresh random value.
func NewSecret(now time.Time) (*Secret, error) {
	s := &Secret{rotated: now, nowFn: time.Now}
	if _, err := rand.Read(s.value[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// SetClock replaces the Secret's stored clock function. DueForRotation
// and Rotate take the time as an argument and do not read it.
func (s *Secret) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

// DueForRotation reports whether SecretTTL has elapsed since the last rotation.
func (s *Secret) DueForRotation(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.rotated) >= SecretTTL
}

// Rotate replaces the secret with fresh randomness, scrubbing the old value.
func (s *Secret) Rotate(now time.Time) error {
	var fresh [32]byte
	if _, err := rand.Read(fresh[:]); err != nil {
		return err
	}
	s.mu.Lock()
	old := s.value
	s.value = fresh
	s.rotated = now
	s.mu.Unlock()
	mem.Zero32(&old)
	return nil
}

// Compute returns cookie_local = Mac(CookieSecret, srcAddr), spec.md §4.4.
func (s *Secret) Compute(srcAddr []byte) [wgcrypto.MacSize]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return wgcrypto.Mac(s.value[:], srcAddr)
}
