// Package transport implements the data-message layer of spec.md §4.6:
// per-session transport keys, the monotonic send counter, the replay
// window, and sealing/opening of Data messages.
//
// Grounded on infrastructure/cryptography/chacha20/udp_session.go for
// the session shape (paired tx/rx keys plus a counter) and on
// sliding_window.go for the replay bitmap, generalized from TunGo's
// ad hoc AEAD framing to the wire layout wiremsg.Data already decodes.
package transport

import (
	"errors"
	"time"

	"wgcore/internal/mem"
	"wgcore/internal/wgcrypto"
)

// Role records which side of the handshake produced this session.
// NeedsRekey consults it, since only the initiator rekeys proactively.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// Limits from spec.md §4.8. The message-count limits are built from
// untyped constant expressions, matching how math.MaxUint64 itself is
// defined, since a typed uint64(1) shifted by 64 overflows at compile
// time.
const (
	RejectAfterMessages = 1<<64 - 1<<13
	RejectAfterTime     = 180 * time.Second
	RekeyAfterTime      = 120 * time.Second
	RekeyAfterMessages  = 1 << 60
)

var (
	// ErrCounterExhausted is returned by Seal once the send
	// counter has reached RejectAfterMessages; the session must be
	// retired and a new handshake started.
	ErrCounterExhausted = errors.New("transport: send counter exhausted")
	// ErrReplay is returned by Open when the receive counter fails the
	// replay window check.
	ErrReplay = errors.New("transport: replay")
)

// Session is one installed transport key pair, per spec.md §5's
// three-slot (previous/current/next) session model. A Session belongs
// to exactly one Peer slot at a time; the peer table is responsible
// for zeroing evicted sessions.
type Session struct {
	LocalIndex  uint32
	RemoteIndex uint32
	Role        Role
	CreatedAt   time.Time

	txKey [wgcrypto.KeySize]byte
	rxKey [wgcrypto.KeySize]byte

	txCounter uint64
	rxWindow  Window
}

// NewSession wraps the two keys Noise Split() produced into a Session
// ready for sealing and opening. sendKey/recvKey must already be in
// this side's perspective (initiator and responder see them swapped).
func NewSession(localIndex, remoteIndex uint32, role Role, sendKey, recvKey [wgcrypto.KeySize]byte, now time.Time) *Session {
	return &Session{
		LocalIndex:  localIndex,
		RemoteIndex: remoteIndex,
		Role:        role,
		CreatedAt:   now,
		txKey:       sendKey,
		rxKey:       recvKey,
	}
}

// Zero scrubs both transport keys. Called when a session is evicted
// from a peer's slots.
func (s *Session) Zero() {
	mem.Zero32(&s.txKey)
	mem.Zero32(&s.rxKey)
}

// TxCounter returns the next counter to consume, without consuming it.
func (s *Session) TxCounter() uint64 { return s.txCounter }

// Seal encrypts pt as the payload of a Data message, consuming the
// next send counter. dst is the output buffer (may be nil); the
// returned slice holds ciphertext || tag, and counter is the nonce
// that must be written into the Data header.
func (s *Session) Seal(dst []byte, pt []byte) (ct []byte, counter uint64, err error) {
	if s.txCounter >= RejectAfterMessages {
		return nil, 0, ErrCounterExhausted
	}
	counter = s.txCounter
	s.txCounter++
	ct = wgcrypto.AEADSeal(dst, &s.txKey, counter, nil, pt)
	return ct, counter, nil
}

// Open checks counter against the replay window, decrypts ct, and on
// success marks counter as seen. A counter that was already accepted,
// or that lies behind the window, returns ErrReplay; a failed decrypt
// leaves the window unchanged.
func (s *Session) Open(dst []byte, counter uint64, ct []byte) ([]byte, error) {
	if !s.rxWindow.Check(counter) {
		return nil, ErrReplay
	}
	pt, err := wgcrypto.AEADOpen(dst, &s.rxKey, counter, nil, ct)
	if err != nil {
		return nil, err
	}
	s.rxWindow.Accept(counter)
	return pt, nil
}

// RejectAfterExpired reports whether this session is past
// REJECT_AFTER_TIME and must stop sending and receiving entirely.
func (s *Session) RejectAfterExpired(now time.Time) bool {
	return now.Sub(s.CreatedAt) >= RejectAfterTime
}

// NeedsRekey reports whether, from the initiator's side, this session
// has crossed REKEY_AFTER_TIME or REKEY_AFTER_MESSAGES and a new
// handshake should be initiated proactively.
func (s *Session) NeedsRekey(now time.Time) bool {
	if s.Role != RoleInitiator {
		return false
	}
	if now.Sub(s.CreatedAt) >= RekeyAfterTime {
		return true
	}
	return s.txCounter >= RekeyAfterMessages
}
