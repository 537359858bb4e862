package handshake

import (
	"crypto/rand"

	"wgcore/internal/wgcrypto"

	"golang.org/x/crypto/curve25519"
)

// generateEphemeral draws a fresh X25519 keypair for one handshake
// message, spec.md §4.5's per-message ephemeral.
func generateEphemeral() (sk, pk [wgcrypto.KeySize]byte, err error) {
	if _, err = rand.Read(sk[:]); err != nil {
		return sk, pk, err
	}
	pub, err := curve25519.X25519(sk[:], curve25519.Basepoint)
	if err != nil {
		return sk, pk, err
	}
	copy(pk[:], pub)
	return sk, pk, nil
}
