// Package noisestate implements the (chain, hash) symmetric state
// WireGuard's variant of Noise IKpsk2 is built from: spec.md §4.2.
//
// The teacher delegates its entire handshake to github.com/flynn/noise
// (infrastructure/cryptography/noise/ik_handshake.go's
// noiselib.NewHandshakeState), which hard-codes SHA-256 and has no
// notion of WireGuard's extra MixChain step or a pre-shared key mixed
// in via MixKeyHash. Neither is expressible by configuring that
// library, so this package hand-rolls the symmetric state the same
// way flynn/noise's internal symmetricState does (mixHash/mixKey/split
// in that shape) but over BLAKE2s and with the WireGuard-specific
// operations spec.md names.
package noisestate

import (
	"wgcore/internal/mem"
	"wgcore/internal/wgcrypto"
)

const (
	constructionName = "Noise_IKpsk2_25519_ChaChaPoly_BLAKE2s"
	identifierString = "WireGuard v1 zx2c4 Jason@zx2c4.com"
)

// State is the handshake's evolving (chain, hash) pair. It carries no
// mutex: exactly one handshake owns a State at a time, per spec.md §5.
type State struct {
	chain [wgcrypto.KeySize]byte
	hash  [wgcrypto.KeySize]byte
}

// New returns the initial state both IKpsk2 roles start from.
func New() *State {
	s := &State{}
	s.chain = wgcrypto.Hash([]byte(constructionName))
	s.hash = wgcrypto.Hash(s.chain[:], []byte(identifierString))
	return s
}

// Hash returns the current transcript hash, used as AEAD associated data.
func (s *State) Hash() [wgcrypto.KeySize]byte { return s.hash }

// MixHash folds b into the transcript hash: hash := Hash(hash || b).
func (s *State) MixHash(b []byte) {
	s.hash = wgcrypto.Hash(s.hash[:], b)
}

// MixChain folds b into the chaining key without producing a key.
// This is WireGuard's extension beyond plain Noise (spec.md §4.2).
func (s *State) MixChain(b []byte) {
	s.chain = wgcrypto.Hkdf1(s.chain[:], b)
}

// MixDh performs chain := Hkdf1(chain, DH(sk, pk)) without returning a key.
func (s *State) MixDh(sk, pk *[wgcrypto.KeySize]byte) bool {
	dh, ok := wgcrypto.DH(sk, pk)
	if !ok {
		return false
	}
	s.chain = wgcrypto.Hkdf1(s.chain[:], dh[:])
	mem.Zero(dh[:])
	return true
}

// MixKeyDh performs (chain, k) := Hkdf2(chain, DH(sk, pk)) and returns k.
func (s *State) MixKeyDh(sk, pk *[wgcrypto.KeySize]byte) (k [wgcrypto.KeySize]byte, ok bool) {
	dh, ok := wgcrypto.DH(sk, pk)
	if !ok {
		return k, false
	}
	s.chain, k = wgcrypto.Hkdf2(s.chain[:], dh[:])
	mem.Zero(dh[:])
	return k, true
}

// MixKeyHash performs (chain, t, k) := Hkdf3(chain, b); MixHash(t); returns k.
// Used once, to mix in the pre-shared key (spec.md §4.5 step 9).
func (s *State) MixKeyHash(b []byte) [wgcrypto.KeySize]byte {
	chain, t, k := wgcrypto.Hkdf3(s.chain[:], b)
	s.chain = chain
	s.MixHash(t[:])
	mem.Zero(t[:])
	return k
}

// EncryptAndHash seals pt under k using the current hash as AAD, then
// mixes the ciphertext (including tag) into the hash.
func (s *State) EncryptAndHash(dst []byte, k *[wgcrypto.KeySize]byte, pt []byte) []byte {
	out := wgcrypto.AEADSeal(dst, k, 0, s.hash[:], pt)
	s.MixHash(out[len(dst):])
	return out
}

// DecryptAndHash opens ct under k using the current hash as AAD and,
// only if that succeeds, mixes ct into the hash. On failure it returns
// the error and leaves the hash unchanged.
func (s *State) DecryptAndHash(dst []byte, k *[wgcrypto.KeySize]byte, ct []byte) ([]byte, error) {
	pt, err := wgcrypto.AEADOpen(dst, k, 0, s.hash[:], ct)
	if err != nil {
		return nil, err
	}
	s.MixHash(ct)
	return pt, nil
}

// Split derives the two transport keys and destroys the chaining key
// and hash, per spec.md §4.2 ("then zeroise state"). Both sides of a
// handshake reach the same chain and so get the identical (k1, k2)
// pair back; it is the caller's job to swap them on one side (the
// responder, by convention) so tx_key and rx_key end up paired
// correctly, per spec.md's Session model.
func (s *State) Split() (k1, k2 [wgcrypto.KeySize]byte) {
	k1, k2 = wgcrypto.Hkdf2(s.chain[:], nil)
	s.Zero()
	return k1, k2
}

// Zero scrubs the chain and hash. Safe to call more than once.
func (s *State) Zero() {
	mem.Zero(s.chain[:])
	mem.Zero(s.hash[:])
}
