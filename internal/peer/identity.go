// Package peer is the C7 peer-and-session registry of spec.md §5: one
// entry per configured remote static public key, the three transport
// session slots (previous/current/next) that key rotation slides
// through, and the host-wide local_index space sessions are looked up
// by on receive.
//
// Grounded on infrastructure/cryptography/noise/epoch_ring.go's
// fixed-capacity, zeroize-on-evict slot bookkeeping, generalized from
// its single ring per connection to spec.md's named three-slot model
// and a registry that spans every configured peer.
package peer

import (
	"wgcore/internal/wgcrypto"

	"golang.org/x/crypto/curve25519"
)

// StaticIdentity is this host's own long-term Noise identity.
type StaticIdentity struct {
	PrivateKey [wgcrypto.KeySize]byte
	PublicKey  [wgcrypto.KeySize]byte
}

// NewStaticIdentity derives the public key for a private key clamped
// the way X25519 keys are generated (spec.md §4.1).
func NewStaticIdentity(sk [wgcrypto.KeySize]byte) (StaticIdentity, error) {
	id := StaticIdentity{PrivateKey: sk}
	pub, err := curve25519.X25519(sk[:], curve25519.Basepoint)
	if err != nil {
		return StaticIdentity{}, err
	}
	copy(id.PublicKey[:], pub)
	return id, nil
}
