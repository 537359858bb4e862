// Package wgcrypto implements the cryptographic primitives WireGuard's
// Noise construction is built from: BLAKE2s hashing and keyed MAC,
// an HMAC-BLAKE2s based KDF, X25519 Diffie-Hellman, and
// ChaCha20-Poly1305 / XChaCha20-Poly1305 AEAD.
//
// Grounded on infrastructure/cryptography/primitives/crypto.go's
// X25519-keypair-plus-HKDF pattern and
// infrastructure/cryptography/noise/mac.go's keyed-BLAKE2s usage;
// generalized here into the exact primitive set and the WireGuard
// recursive KDF (not RFC 5869 HKDF-Expand, which carries a constant
// "info" across every block — WireGuard's Kdf has none) spec.md §4.1
// requires.
package wgcrypto

import (
	"crypto/hmac"
	"crypto/subtle"
	"hash"

	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

const (
	// KeySize is the size in bytes of X25519 keys, chain/hash state and symmetric keys.
	KeySize = 32

	// MacSize is the size in bytes of a BLAKE2s-128 keyed MAC.
	MacSize = 16

	// AEADOverhead is the Poly1305 tag length appended by Seal.
	AEADOverhead = chacha20poly1305.Overhead

	// AEADNonceSize is the nonce length for ChaCha20-Poly1305.
	AEADNonceSize = chacha20poly1305.NonceSize

	// XAEADNonceSize is the nonce length for XChaCha20-Poly1305.
	XAEADNonceSize = chacha20poly1305.NonceSizeX
)

func newBlake2s256() hash.Hash {
	h, err := blake2s.New256(nil)
	if err != nil {
		// blake2s.New256(nil) only fails for an oversized key; nil never triggers it.
		panic(err)
	}
	return h
}

// Hash returns BLAKE2s-256(concat(parts...)).
func Hash(parts ...[]byte) [KeySize]byte {
	h := newBlake2s256()
	for _, p := range parts {
		h.Write(p)
	}
	var out [KeySize]byte
	h.Sum(out[:0])
	return out
}

// Mac returns the 16-byte keyed BLAKE2s-128 MAC of concat(parts...) under key.
func Mac(key []byte, parts ...[]byte) [MacSize]byte {
	h, err := blake2s.New128(key)
	if err != nil {
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out [MacSize]byte
	h.Sum(out[:0])
	return out
}

// Hmac is HMAC-BLAKE2s(key, concat(parts...)), truncated to nothing —
// it returns the full 32-byte BLAKE2s digest, as the WireGuard Kdf needs.
func Hmac(key []byte, parts ...[]byte) [KeySize]byte {
	mac := hmac.New(newBlake2s256, key)
	for _, p := range parts {
		mac.Write(p)
	}
	var out [KeySize]byte
	mac.Sum(out[:0])
	return out
}

// Hkdf1 derives a single 32-byte output from key and input, following
// the WireGuard Kdf recursion: T0 = Hmac(key, input); T1 = Hmac(T0, 0x1).
func Hkdf1(key, input []byte) [KeySize]byte {
	t0 := Hmac(key, input)
	t1 := Hmac(t0[:], []byte{0x1})
	zero(t0[:])
	return t1
}

// Hkdf2 derives two 32-byte outputs: T1 as above, then
// T2 = Hmac(T0, T1 || 0x2).
func Hkdf2(key, input []byte) (t1, t2 [KeySize]byte) {
	t0 := Hmac(key, input)
	t1 = Hmac(t0[:], []byte{0x1})
	t2 = Hmac(t0[:], t1[:], []byte{0x2})
	zero(t0[:])
	return t1, t2
}

// Hkdf3 derives three 32-byte outputs, extending Hkdf2 with
// T3 = Hmac(T0, T2 || 0x3).
func Hkdf3(key, input []byte) (t1, t2, t3 [KeySize]byte) {
	t0 := Hmac(key, input)
	t1 = Hmac(t0[:], []byte{0x1})
	t2 = Hmac(t0[:], t1[:], []byte{0x2})
	t3 = Hmac(t0[:], t2[:], []byte{0x3})
	zero(t0[:])
	return t1, t2, t3
}

// DH performs X25519(sk, pk) and rejects a contributory-zero result,
// as required by spec.md §4.1 ("if the output is all-zero the caller
// must reject").
func DH(sk, pk *[KeySize]byte) (out [KeySize]byte, ok bool) {
	shared, err := curve25519.X25519(sk[:], pk[:])
	if err != nil {
		return out, false
	}
	copy(out[:], shared)
	if subtle.ConstantTimeCompare(out[:], make([]byte, KeySize)) == 1 {
		zero(out[:])
		return out, false
	}
	return out, true
}

// Basepoint is the X25519 base point, re-exported for key generation.
var Basepoint = curve25519.Basepoint

// AEADSeal seals pt with ChaCha20-Poly1305 under key using nonce
// 0^4 || LE64(counter), per spec.md §4.1.
func AEADSeal(dst []byte, key *[KeySize]byte, counter uint64, aad, pt []byte) []byte {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		panic(err)
	}
	var nonce [AEADNonceSize]byte
	putCounterLE(nonce[:], counter)
	return aead.Seal(dst, nonce[:], pt, aad)
}

// AEADOpen opens ct with ChaCha20-Poly1305 under key using nonce
// 0^4 || LE64(counter).
func AEADOpen(dst []byte, key *[KeySize]byte, counter uint64, aad, ct []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	var nonce [AEADNonceSize]byte
	putCounterLE(nonce[:], counter)
	return aead.Open(dst, nonce[:], ct, aad)
}

// XAEADSeal seals pt with XChaCha20-Poly1305 under key using a caller
// supplied random 24-byte nonce.
func XAEADSeal(dst []byte, key *[KeySize]byte, nonce *[XAEADNonceSize]byte, aad, pt []byte) []byte {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		panic(err)
	}
	return aead.Seal(dst, nonce[:], pt, aad)
}

// XAEADOpen opens ct with XChaCha20-Poly1305 under key and nonce.
func XAEADOpen(dst []byte, key *[KeySize]byte, nonce *[XAEADNonceSize]byte, aad, ct []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(dst, nonce[:], ct, aad)
}

func putCounterLE(nonce []byte, counter uint64) {
	// nonce is 12 bytes: 4 zero bytes followed by little-endian counter.
	nonce[0], nonce[1], nonce[2], nonce[3] = 0, 0, 0, 0
	for i := 0; i < 8; i++ {
		nonce[4+i] = byte(counter >> (8 * i))
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare reports whether a and b are equal, in time
// independent of their contents (but not their lengths).
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
