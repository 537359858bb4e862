package cookie

import "wgcore/internal/wgcrypto"

// Labels from spec.md §3: mac1_key = H("mac1----" || spk), cookie_key = H("cookie--" || spk).
const (
	mac1Label   = "mac1----"
	cookieLabel = "cookie--"
)

// Mac1Key derives the per-peer mac1 key from a static public key.
func Mac1Key(spk []byte) [wgcrypto.KeySize]byte {
	return wgcrypto.Hash([]byte(mac1Label), spk)
}

// KeyFor derives the per-peer cookie-reply encryption key from a static public key.
func KeyFor(spk []byte) [wgcrypto.KeySize]byte {
	return wgcrypto.Hash([]byte(cookieLabel), spk)
}

// Mac1 computes mac1 = Mac(mac1Key, bytesBeforeMac1), spec.md §4.4.
func Mac1(mac1Key *[wgcrypto.KeySize]byte, bytesBeforeMac1 []byte) [wgcrypto.MacSize]byte {
	return wgcrypto.Mac(mac1Key[:], bytesBeforeMac1)
}

// Mac2 computes mac2 = Mac(lastCookie, bytesBeforeMac2), spec.md §4.4.
// Callers without a cached cookie must send 16 zero bytes instead of calling this.
func Mac2(lastCookie *[wgcrypto.MacSize]byte, bytesBeforeMac2 []byte) [wgcrypto.MacSize]byte {
	return wgcrypto.Mac(lastCookie[:], bytesBeforeMac2)
}

// VerifyMac1 constant-time compares a received mac1 against the expected value.
func VerifyMac1(mac1Key *[wgcrypto.KeySize]byte, bytesBeforeMac1 []byte, got [wgcrypto.MacSize]byte) bool {
	want := Mac1(mac1Key, bytesBeforeMac1)
	return wgcrypto.ConstantTimeCompare(want[:], got[:])
}

// VerifyMac2 constant-time compares a received mac2 against the expected value
// computed from cookieLocal (the responder's own Mac(CookieSecret, srcAddr)).
func VerifyMac2(cookieLocal *[wgcrypto.MacSize]byte, bytesBeforeMac2 []byte, got [wgcrypto.MacSize]byte) bool {
	want := Mac2(cookieLocal, bytesBeforeMac2)
	return wgcrypto.ConstantTimeCompare(want[:], got[:])
}
