package cookie

import (
	"crypto/rand"
	"errors"

	"wgcore/internal/wgcrypto"
	"wgcore/internal/wiremsg"
)

// ErrInvalidReply is returned when a cookie reply fails to decrypt.
var ErrInvalidReply = errors.New("cookie: invalid reply")

// CreateReply builds the encrypted cookie-reply payload a responder
// under load sends back instead of doing the expensive DH step:
// spec.md §4.4, XAEAD_Seal(peer.cookie_key, random_24, mac1, cookie_local).
func CreateReply(cookieKey *[wgcrypto.KeySize]byte, mac1 [wgcrypto.MacSize]byte, cookieLocal [wgcrypto.MacSize]byte) (*wiremsg.Cookie, error) {
	var nonce [wgcrypto.XAEADNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	m := &wiremsg.Cookie{Nonce: nonce}
	ct := wgcrypto.XAEADSeal(nil, cookieKey, &nonce, mac1[:], cookieLocal[:])
	copy(m.EncCookie[:], ct)
	return m, nil
}

// ConsumeReply decrypts a cookie reply on the initiator side, using
// the mac1 of the most recently sent message as AAD, per spec.md §4.4.
func ConsumeReply(cookieKey *[wgcrypto.KeySize]byte, m *wiremsg.Cookie, lastSentMac1 [wgcrypto.MacSize]byte) ([wgcrypto.MacSize]byte, error) {
	var out [wgcrypto.MacSize]byte
	pt, err := wgcrypto.XAEADOpen(nil, cookieKey, &m.Nonce, lastSentMac1[:], m.EncCookie[:])
	if err != nil {
		return out, ErrInvalidReply
	}
	copy(out[:], pt)
	return out, nil
}
