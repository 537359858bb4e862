// Package wgcore is the sans-I/O WireGuard protocol core of spec.md
// §6: a Sessions value owns one host identity, its configured peers,
// and every piece of handshake/transport/timer state, but performs no
// network I/O itself. A driver owns the socket, calls RecvMessage on
// every datagram it reads and SendMessage for every payload it wants
// to transmit, and calls Tick periodically to drive retransmits,
// rekeys, keepalives, and session retirement.
//
// Grounded on infrastructure/cryptography/chacha20/udp_session.go and
// its caller (the transport layer that owns the UDP socket while
// handing parsed messages to session objects that never touch the
// network themselves) — the same separation of concerns, generalized
// from TunGo's single-peer client/server split to spec.md's full
// multi-peer registry.
package wgcore

import (
	"encoding/binary"
	"errors"
	"net"
	"time"

	"wgcore/config"
	"wgcore/internal/cookie"
	"wgcore/internal/handshake"
	"wgcore/internal/peer"
	"wgcore/internal/ratelimit"
	"wgcore/internal/timers"
	"wgcore/internal/transport"
	"wgcore/internal/wgcrypto"
	"wgcore/internal/wiremsg"
	"wgcore/wgerr"
	"wgcore/wglog"
)

// dataHeaderSize mirrors wiremsg's unexported Data-header length.
const dataHeaderSize = 16

// RateLimiter caps expensive handshake processing per source address,
// independent of the load-triggered cookie mechanism. *ratelimit.Limiter
// satisfies this; a driver may supply its own.
type RateLimiter interface {
	Allow(srcAddr []byte) bool
}

// Inbound is the result of processing one received datagram.
type Inbound struct {
	// Peer identifies which configured peer this message belongs to.
	// Nil for every received cookie reply (its only effect is on the
	// matching peer's cookie cache), and for an Init answered with a
	// cookie reply under load, which is sent before the peer is looked up.
	Peer *peer.Peer

	// Reply, if non-nil, must be sent back to the same source address
	// (a handshake Response, or a cookie reply).
	Reply []byte

	// Payload, if non-nil, is decrypted application data from a Data
	// message (empty but non-nil for a keepalive).
	Payload []byte
}

// Sessions is the public entry point: spec.md §6's New/RecvMessage/
// SendMessage/Tick surface.
type Sessions struct {
	identity peer.StaticIdentity
	table    *peer.Table
	secret   *cookie.Secret
	engine   *handshake.Engine
	wheel    *timers.Wheel
	log      wglog.Logger
}

// Options configures an optional rate limiter and logger; the zero
// value is a valid Options (no rate limiting, no-op logging).
type Options struct {
	RateLimiter RateLimiter
	Logger      wglog.Logger
}

// New constructs a Sessions for one host private key. now seeds the
// cookie secret's rotation clock.
func New(privateKey [32]byte, opts Options, now time.Time) (*Sessions, error) {
	identity, err := peer.NewStaticIdentity(privateKey)
	if err != nil {
		return nil, err
	}
	secret, err := cookie.NewSecret(now)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = wglog.NewNop()
	}

	table := peer.NewTable()
	engine := handshake.NewEngine(identity, table, secret, log)
	if opts.RateLimiter != nil {
		engine.RateLimiter = opts.RateLimiter
	}
	wheel := timers.NewWheel(table, engine, secret)

	return &Sessions{
		identity: identity,
		table:    table,
		secret:   secret,
		engine:   engine,
		wheel:    wheel,
		log:      log,
	}, nil
}

// NewRateLimiter is a convenience constructor so a driver doesn't need
// to import internal/ratelimit directly to get the default limiter.
func NewRateLimiter() RateLimiter { return ratelimit.New() }

// SetUnderLoad installs the driver-supplied overload signal the
// handshake engine consults to decide whether mac2/cookie enforcement
// is active, per spec.md's Open Question resolution (SPEC_FULL.md
// §9): the core never guesses its own load, the driver tells it.
func (s *Sessions) SetUnderLoad(fn func() bool) {
	s.engine.UnderLoad = fn
}

// AddPeer registers a new peer from a parsed config.PeerConfig.
func (s *Sessions) AddPeer(pc config.PeerConfig) (*peer.Peer, error) {
	pub, err := config.DecodeKey(pc.PublicKey)
	if err != nil {
		return nil, err
	}
	var psk [32]byte
	if pc.PresharedKey != "" {
		psk, err = config.DecodeKey(pc.PresharedKey)
		if err != nil {
			return nil, err
		}
	}
	cfg := peer.NewConfig(pub, psk, pc.Keepalive())
	p := peer.NewPeer(cfg)
	if pc.Endpoint != "" {
		addr, err := net.ResolveUDPAddr("udp", pc.Endpoint)
		if err == nil {
			p.UpdateEndpoint(addr)
		}
	}
	s.table.Add(p)
	return p, nil
}

// RemovePeer deregisters a peer and frees its local indices.
func (s *Sessions) RemovePeer(publicKey [32]byte) {
	s.table.Remove(publicKey)
}

// Peer looks up a configured peer by its static public key.
func (s *Sessions) Peer(publicKey [32]byte) (*peer.Peer, bool) {
	return s.table.ByPublicKey(publicKey)
}

// InitiateHandshake builds and returns a fresh Init message for p. The
// driver is responsible for sending the returned bytes to p's endpoint.
func (s *Sessions) InitiateHandshake(p *peer.Peer, now time.Time) ([]byte, error) {
	return s.engine.BuildInit(p, now)
}

// RecvMessage processes one datagram received from srcAddr.
func (s *Sessions) RecvMessage(buf []byte, srcAddr net.Addr, now time.Time) (Inbound, error) {
	if !wiremsg.Aligned(buf) {
		return Inbound{}, wgerr.New("wgcore.RecvMessage", wgerr.KindMalformed, nil)
	}
	if len(buf) < 4 {
		return Inbound{}, wgerr.New("wgcore.RecvMessage", wgerr.KindMalformed, nil)
	}

	srcBytes := addrBytes(srcAddr)
	switch binary.LittleEndian.Uint32(buf[0:4]) {
	case wiremsg.TypeInit:
		return s.recvInit(buf, srcBytes, srcAddr, now)
	case wiremsg.TypeResponse:
		return s.recvResponse(buf, srcAddr, now)
	case wiremsg.TypeCookie:
		return s.recvCookie(buf, now)
	case wiremsg.TypeData:
		return s.recvData(buf, srcAddr, now)
	default:
		return Inbound{}, wgerr.New("wgcore.RecvMessage", wgerr.KindMalformed, nil)
	}
}

func (s *Sessions) recvInit(buf, srcBytes []byte, srcAddr net.Addr, now time.Time) (Inbound, error) {
	reply, p, err := s.engine.HandleInit(buf, srcBytes, now)
	if err != nil {
		return Inbound{}, err
	}
	if p != nil {
		p.UpdateEndpoint(srcAddr)
	}
	return Inbound{Peer: p, Reply: reply}, nil
}

func (s *Sessions) recvResponse(buf []byte, srcAddr net.Addr, now time.Time) (Inbound, error) {
	p, err := s.engine.HandleResponse(buf, now)
	if err != nil {
		return Inbound{}, err
	}
	p.UpdateEndpoint(srcAddr)
	return Inbound{Peer: p}, nil
}

func (s *Sessions) recvCookie(buf []byte, now time.Time) (Inbound, error) {
	if err := s.engine.HandleCookie(buf, now); err != nil {
		return Inbound{}, err
	}
	return Inbound{}, nil
}

func (s *Sessions) recvData(buf []byte, srcAddr net.Addr, now time.Time) (Inbound, error) {
	data, err := wiremsg.DecodeData(buf)
	if err != nil {
		return Inbound{}, err
	}
	p, found := s.table.ByIndex(data.Receiver)
	if !found {
		return Inbound{}, wgerr.New("wgcore.RecvMessage", wgerr.KindUnknownSession, nil)
	}
	sess := p.SessionByLocalIndex(data.Receiver)
	if sess == nil {
		return Inbound{}, wgerr.New("wgcore.RecvMessage", wgerr.KindUnknownSession, nil)
	}
	if sess.RejectAfterExpired(now) {
		return Inbound{}, wgerr.New("wgcore.RecvMessage", wgerr.KindReplay, nil)
	}
	pt, err := sess.Open(nil, data.Counter, data.Payload)
	if errors.Is(err, transport.ErrReplay) {
		return Inbound{}, wgerr.New("wgcore.RecvMessage", wgerr.KindReplay, err)
	}
	if err != nil {
		return Inbound{}, wgerr.New("wgcore.RecvMessage", wgerr.KindBadTag, err)
	}
	p.UpdateEndpoint(srcAddr)
	p.MarkDataReceived(now)
	return Inbound{Peer: p, Payload: pt}, nil
}

// ErrNoSession is returned by SendMessage when a peer has no
// established transport session to seal data under.
var ErrNoSession = errors.New("wgcore: no established session")

// SendMessage seals payload for delivery to p over its current
// session. The returned bytes are ready to send as-is.
func (s *Sessions) SendMessage(p *peer.Peer, payload []byte, now time.Time) ([]byte, error) {
	sess := p.CurrentSession()
	if sess == nil {
		return nil, ErrNoSession
	}
	if sess.RejectAfterExpired(now) {
		return nil, ErrNoSession
	}
	padded := wiremsg.PadData(nil, payload)
	ct, counter, err := sess.Seal(nil, padded)
	if err != nil {
		return nil, err
	}
	out := make([]byte, dataHeaderSize+len(padded)+wgcrypto.AEADOverhead)
	wiremsg.EncodeDataHeader(out, sess.RemoteIndex, counter)
	copy(out[16:], ct)
	p.MarkDataSent(now)
	return out, nil
}

// Tick runs one round of timer-driven maintenance and returns every
// message that must now be sent, per spec.md §4.8.
func (s *Sessions) Tick(now time.Time) []timers.Action {
	return s.wheel.Tick(now)
}

func addrBytes(addr net.Addr) []byte {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	default:
		return []byte(addr.String())
	}
}
