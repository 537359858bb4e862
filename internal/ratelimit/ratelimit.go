// Package ratelimit provides an optional per-source-address token
// bucket a driver can plug into the handshake engine to bound
// expensive Init processing independent of the load-triggered cookie
// mechanism, per SPEC_FULL.md §12.
//
// Grounded on awenaw-wireguard-go/ratelimiter/ratelimiter.go's
// token-bucket-per-source-IP design, adapted from its fixed
// per-device budget to a pluggable component the core only calls
// through an interface — the core itself never opens a gate it
// didn't set up, so a driver that never configures a Limiter gets
// the original unthrottled behavior.
package ratelimit

import (
	"net/netip"
	"sync"
	"time"
)

const (
	packetsPerSecond  = 20
	packetsBurstable  = 5
	garbageCollectTTL = 10 * time.Second
)

type entry struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter is a token bucket keyed by source address, satisfying
// handshake.Engine's RateLimiter interface.
type Limiter struct {
	mu      sync.Mutex
	buckets map[netip.Addr]*entry
	nowFn   func() time.Time
	lastGC  time.Time
}

// New constructs a Limiter ready to use.
func New() *Limiter {
	return &Limiter{buckets: make(map[netip.Addr]*entry), nowFn: time.Now}
}

// SetClock overrides the clock, for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nowFn = now
}

// Allow reports whether a handshake message from srcAddr may proceed,
// consuming one token if so. srcAddr is the raw address bytes (4 for
// IPv4, 16 for IPv6); malformed lengths are always allowed since this
// limiter only protects an optimization, not correctness.
func (l *Limiter) Allow(srcAddr []byte) bool {
	addr, ok := netip.AddrFromSlice(srcAddr)
	if !ok {
		return true
	}
	addr = addr.Unmap()

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn()
	l.maybeGC(now)

	e, found := l.buckets[addr]
	if !found {
		e = &entry{tokens: packetsBurstable - 1, lastSeen: now}
		l.buckets[addr] = e
		return true
	}
	elapsed := now.Sub(e.lastSeen).Seconds()
	e.lastSeen = now
	e.tokens += elapsed * packetsPerSecond
	if e.tokens > packetsBurstable {
		e.tokens = packetsBurstable
	}
	if e.tokens < 1 {
		return false
	}
	e.tokens--
	return true
}

// maybeGC evicts buckets idle long enough that nothing useful is left
// to rate limit, bounding memory for a host that sees many transient
// source addresses. Must be called with l.mu held.
func (l *Limiter) maybeGC(now time.Time) {
	if now.Sub(l.lastGC) < garbageCollectTTL {
		return
	}
	l.lastGC = now
	for addr, e := range l.buckets {
		if now.Sub(e.lastSeen) >= garbageCollectTTL {
			delete(l.buckets, addr)
		}
	}
}
