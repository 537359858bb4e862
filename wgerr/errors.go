// Package wgerr defines the error kinds the core surfaces to its driver.
//
// External responses must stay uniform: the driver gets a Kind for
// logging and policy decisions, never the underlying cryptographic
// detail, so a bad actor probing the wire can't distinguish "bad mac1"
// from "bad tag" from timing or error text.
package wgerr

import "errors"

// Kind classifies why an operation on the core failed.
type Kind int

const (
	// KindNone is the zero value; never returned from a failing call.
	KindNone Kind = iota

	// KindMalformed means length/alignment/tag parsing failed.
	KindMalformed

	// KindRejected means mac1 or mac2 verification failed.
	KindRejected

	// KindUnknownPeer means an Init decrypted to an spk not in the registry.
	KindUnknownPeer

	// KindUnknownSession means a Data receiver index is not live.
	KindUnknownSession

	// KindReplay means a timestamp regression or replay-window rejection.
	KindReplay

	// KindBadTag means AEAD authentication failed after window checks passed.
	KindBadTag

	// KindRateLimited means the handshake rate limiter rejected this source.
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindRejected:
		return "rejected"
	case KindUnknownPeer:
		return "unknown_peer"
	case KindUnknownSession:
		return "unknown_session"
	case KindReplay:
		return "replay"
	case KindBadTag:
		return "bad_tag"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "none"
	}
}

// Error wraps an internal cause with the Kind the driver is allowed to see.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for op/kind, wrapping cause (which may be nil).
func New(op string, kind Kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrHandshakeFailed is the uniform external error for any handshake
// failure a driver might choose to log without inspecting Kind.
var ErrHandshakeFailed = errors.New("wgcore: handshake failed")
