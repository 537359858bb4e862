// Package handshake implements the Noise IKpsk2 handshake of spec.md
// §4.5: initiator and responder processing of Init/Response messages,
// TAI64N timestamp anti-replay, and the mac1/mac2/cookie gate that
// guards every message before any DH is performed.
//
// Grounded on infrastructure/cryptography/noise/ik_handshake.go for
// the phase structure (verify cheap MAC before expensive crypto, look
// up the peer only after the static key decrypts). The TAI64N
// encoding itself follows the format spec.md §4.5 names, the same one
// golang.zx2c4.com/wireguard/device uses, reimplemented here taking
// an explicit time.Time rather than sampling the clock internally so
// the handshake engine stays deterministic and testable.
package handshake

import (
	"encoding/binary"
	"time"
)

// tai64Epoch is the TAI64 label offset for the conventional epoch:
// seconds are encoded as 2^62 + 10 + unix_seconds.
const tai64Epoch = uint64(0x400000000000000a)

// Timestamp returns the TAI64N encoding of t: 8 big-endian seconds
// bytes followed by 4 big-endian nanosecond bytes.
func Timestamp(t time.Time) [12]byte {
	var out [12]byte
	binary.BigEndian.PutUint64(out[:8], tai64Epoch+uint64(t.Unix()))
	binary.BigEndian.PutUint32(out[8:12], uint32(t.Nanosecond()))
	return out
}

// Now is Timestamp(time.Now()), split out so tests can substitute a
// deterministic clock by calling Timestamp directly.
func Now() [12]byte { return Timestamp(time.Now()) }
