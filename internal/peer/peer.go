package peer

import (
	"net"
	"sync"
	"time"

	"wgcore/internal/cookie"
	"wgcore/internal/mem"
	"wgcore/internal/noisestate"
	"wgcore/internal/transport"
	"wgcore/internal/wgcrypto"
)

// Config is the static, operator-supplied description of one remote
// peer: spec.md §5's PeerConfig.
type Config struct {
	PublicKey         [wgcrypto.KeySize]byte
	PresharedKey      [wgcrypto.KeySize]byte // all-zero if none configured
	KeepaliveInterval time.Duration          // 0 disables persistent keepalive

	mac1Key   [wgcrypto.KeySize]byte
	cookieKey [wgcrypto.KeySize]byte
}

// NewConfig derives the per-peer mac1/cookie keys once up front, per
// spec.md §4.4, so the handshake hot path never recomputes them.
func NewConfig(pub, psk [wgcrypto.KeySize]byte, keepalive time.Duration) *Config {
	return &Config{
		PublicKey:         pub,
		PresharedKey:      psk,
		KeepaliveInterval: keepalive,
		mac1Key:           cookie.Mac1Key(pub[:]),
		cookieKey:         cookie.KeyFor(pub[:]),
	}
}

func (c *Config) Mac1Key() *[wgcrypto.KeySize]byte   { return &c.mac1Key }
func (c *Config) CookieKey() *[wgcrypto.KeySize]byte { return &c.cookieKey }

// slotCount is the three named slots of spec.md §5: previous, current, next.
const slotCount = 3

const (
	slotPrevious = 0
	slotCurrent  = 1
	slotNext     = 2
)

// InitiationState holds everything an in-flight handshake needs to
// survive across RecvMessage/Tick calls. It lives on the Peer rather
// than in the handshake package to avoid a package cycle: the
// handshake engine reads and writes these fields, but ownership and
// zeroing belong to the peer registry.
type InitiationState struct {
	Active        bool
	LocalIndex    uint32
	EphemeralSK   [wgcrypto.KeySize]byte
	EphemeralPK   [wgcrypto.KeySize]byte
	Noise         *noisestate.State
	LastSentMac1  [wgcrypto.MacSize]byte
	LastInitBytes []byte
	FirstSentAt   time.Time
	SentAt        time.Time
	Attempts      int
}

// Peer is the mutable, per-peer runtime state: spec.md §5's PeerState.
type Peer struct {
	Config *Config

	mu sync.Mutex

	endpoint net.Addr

	lastReceivedTimestamp [12]byte
	haveTimestamp         bool

	cookieCache cookie.Cache

	init InitiationState

	slots [slotCount]*transport.Session

	lastHandshakeCompleted time.Time
	lastDataReceived       time.Time
	lastDataSent           time.Time
}

// NewPeer constructs a Peer with no established sessions.
func NewPeer(cfg *Config) *Peer {
	return &Peer{Config: cfg}
}

// Endpoint returns the last address a valid, authenticated message
// arrived from.
func (p *Peer) Endpoint() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoint
}

// UpdateEndpoint records a new source address. Per spec.md's roaming
// resolution (SPEC_FULL.md §9 Open Question), this is called after
// ANY successfully authenticated message from the peer, handshake or
// data, not only after a completed handshake.
func (p *Peer) UpdateEndpoint(addr net.Addr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoint = addr
}

// CheckTimestamp reports whether ts is strictly newer than the last
// accepted handshake-initiation timestamp, per spec.md §4.5 step 8. On
// acceptance it records ts as the new floor.
func (p *Peer) CheckTimestamp(ts [12]byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.haveTimestamp && tai64nCompare(ts, p.lastReceivedTimestamp) <= 0 {
		return false
	}
	p.lastReceivedTimestamp = ts
	p.haveTimestamp = true
	return true
}

// tai64nCompare orders two 12-byte TAI64N timestamps lexicographically,
// which matches numeric order since both fields are big-endian.
func tai64nCompare(a, b [12]byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// CookieCache exposes the peer's cached-cookie store to the cookie package.
func (p *Peer) CookieCache() *cookie.Cache { return &p.cookieCache }

// BeginInitiation resets and returns the peer's in-progress handshake
// state for a fresh Init the local side is about to send.
func (p *Peer) BeginInitiation(now time.Time) *InitiationState {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init = InitiationState{Active: true, FirstSentAt: now, SentAt: now}
	return &p.init
}

// Initiation returns the current in-progress handshake state, or nil
// if none is active.
func (p *Peer) Initiation() *InitiationState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.init.Active {
		return nil
	}
	return &p.init
}

// TouchInitiation applies fn to the in-progress handshake state under
// the peer's lock, for timer-driven bookkeeping (retransmit counts,
// last-sent timestamps) that must not race RecvMessage handling. fn is
// skipped if no initiation is active.
func (p *Peer) TouchInitiation(fn func(*InitiationState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.init.Active {
		return
	}
	fn(&p.init)
}

// ClearInitiation scrubs and deactivates any in-progress handshake state.
func (p *Peer) ClearInitiation() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.init.Noise != nil {
		p.init.Noise.Zero()
	}
	mem.Zero32(&p.init.EphemeralSK)
	p.init = InitiationState{}
}

// CurrentSession returns the active session for sending data, if any.
func (p *Peer) CurrentSession() *transport.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[slotCurrent]
}

// SessionByLocalIndex finds whichever slot currently holds idx as its
// LocalIndex, used by the receive path to dispatch Data and handshake
// Response/Cookie messages without a second lookup structure per peer.
func (p *Peer) SessionByLocalIndex(idx uint32) *transport.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.slots {
		if s != nil && s.LocalIndex == idx {
			return s
		}
	}
	return nil
}

// InstallNext places a freshly split session into the "next" slot,
// per spec.md §4.5 step 11 (responder) and the initiator's symmetric
// step on receiving a valid Response.
func (p *Peer) InstallNext(s *transport.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old := p.slots[slotNext]; old != nil {
		old.Zero()
	}
	p.slots[slotNext] = s
}

// PromoteNext retires "current" into "previous" (zeroing whatever was
// in "previous") and promotes "next" into "current", per spec.md §5's
// slot rotation on handshake completion.
func (p *Peer) PromoteNext(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old := p.slots[slotPrevious]; old != nil {
		old.Zero()
	}
	p.slots[slotPrevious] = p.slots[slotCurrent]
	p.slots[slotCurrent] = p.slots[slotNext]
	p.slots[slotNext] = nil
	p.lastHandshakeCompleted = now
}

// Sessions returns the three slots in previous/current/next order, for
// timer sweeps that need to examine all live sessions.
func (p *Peer) Sessions() [slotCount]*transport.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots
}

// EvictExpired zeroes and clears any slot whose session has passed
// REJECT_AFTER_TIME, per spec.md §4.8's session retirement rule.
func (p *Peer) EvictExpired(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.slots {
		if s != nil && s.RejectAfterExpired(now) {
			s.Zero()
			p.slots[i] = nil
		}
	}
}

// LastDataReceived reports when a Data message was last accepted from this peer.
func (p *Peer) LastDataReceived() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDataReceived
}

// MarkDataReceived records that a Data message was just accepted, for keepalive timing.
func (p *Peer) MarkDataReceived(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastDataReceived = now
}

// LastDataSent reports when a Data message (payload or keepalive) was
// last sent to this peer.
func (p *Peer) LastDataSent() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDataSent
}

// MarkDataSent records that a Data message was just sent, for
// persistent-keepalive timing.
func (p *Peer) MarkDataSent(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastDataSent = now
}
