package handshake

import (
	"time"

	"wgcore/internal/cookie"
	"wgcore/internal/peer"
	"wgcore/internal/wgcrypto"
	"wgcore/wglog"
)

// RetransmitTimeout and AttemptTimeout are REKEY_TIMEOUT and
// REKEY_ATTEMPT_TIME from spec.md §4.8.
const (
	RetransmitTimeout = 5 * time.Second
	AttemptTimeout    = 90 * time.Second
)

// Engine runs the Noise IKpsk2 handshake for one host identity across
// every configured peer. It holds no I/O state: callers hand it
// received bytes and a source address, and get back bytes to send (or
// nothing, or an error), per spec.md §6's sans-I/O contract.
type Engine struct {
	identity peer.StaticIdentity
	table    *peer.Table
	secret   *cookie.Secret
	log      wglog.Logger

	ownMac1Key   [wgcrypto.KeySize]byte
	ownCookieKey [wgcrypto.KeySize]byte

	// UnderLoad, when non-nil, is consulted on every Init to decide
	// whether mac2/cookie enforcement is active. A nil func means
	// never under load, matching spec.md's Open Question resolution
	// that overload policy is the driver's to set, not the core's to
	// infer (SPEC_FULL.md §9).
	UnderLoad func() bool

	// RateLimiter, when non-nil, is consulted once mac1 has passed, to
	// allow a driver to cap expensive handshake processing per source
	// address independent of the load-triggered cookie mechanism
	// (SPEC_FULL.md §12).
	RateLimiter interface {
		Allow(srcAddr []byte) bool
	}
}

// NewEngine constructs a handshake Engine for one local identity.
func NewEngine(identity peer.StaticIdentity, table *peer.Table, secret *cookie.Secret, log wglog.Logger) *Engine {
	return &Engine{
		identity:     identity,
		table:        table,
		secret:       secret,
		log:          log,
		ownMac1Key:   cookie.Mac1Key(identity.PublicKey[:]),
		ownCookieKey: cookie.KeyFor(identity.PublicKey[:]),
	}
}

func (e *Engine) isUnderLoad() bool {
	return e.UnderLoad != nil && e.UnderLoad()
}

func (e *Engine) allowed(srcAddr []byte) bool {
	if e.RateLimiter == nil {
		return true
	}
	return e.RateLimiter.Allow(srcAddr)
}
