// Package mem holds the key-material scrubbing helper shared by every
// package that carries Noise or session key state.
//
// Adapted from infrastructure/cryptography/mem/zero.go verbatim: the
// runtime.KeepAlive call is the load-bearing part, not the loop.
package mem

import "runtime"

// Zero overwrites b with zeros.
//
// The Go GC may already have copied b's backing array before this
// runs; this is best-effort scrubbing, not a guarantee, matching the
// documented limitation of the teacher's implementation. runtime.KeepAlive
// prevents the compiler from eliminating the loop as a dead store.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// Zero32 overwrites a fixed 32-byte key buffer.
func Zero32(b *[32]byte) {
	if b == nil {
		return
	}
	Zero(b[:])
}
