package peer

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"

	"wgcore/internal/wgcrypto"
)

// ErrIndexSpaceExhausted is returned by the rare case where repeated
// random draws keep colliding; practically unreachable at any sane
// peer count but kept as a hard bound rather than an infinite loop.
var ErrIndexSpaceExhausted = errors.New("peer: local index space exhausted")

const maxIndexAttempts = 64

// Table is the host-wide peer registry: lookup by static public key
// for incoming Init messages, and by local_index for every other
// message type, per spec.md §5.
//
// Grounded on epoch_ring.go's random-with-retry slot allocation,
// widened from one ring's slot indices to a 32-bit index space shared
// by every peer's sessions on the host.
type Table struct {
	mu      sync.RWMutex
	byKey   map[[wgcrypto.KeySize]byte]*Peer
	byIndex map[uint32]*Peer
}

// NewTable constructs an empty registry.
func NewTable() *Table {
	return &Table{
		byKey:   make(map[[wgcrypto.KeySize]byte]*Peer),
		byIndex: make(map[uint32]*Peer),
	}
}

// Add registers a peer under its configured public key. Replaces any
// existing entry for that key.
func (t *Table) Add(p *Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byKey[p.Config.PublicKey] = p
}

// Remove deletes a peer and releases any local indices it still holds.
func (t *Table) Remove(pub [wgcrypto.KeySize]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byKey[pub]
	if !ok {
		return
	}
	delete(t.byKey, pub)
	for idx, owner := range t.byIndex {
		if owner == p {
			delete(t.byIndex, idx)
		}
	}
}

// ByPublicKey looks up a peer by its static public key.
func (t *Table) ByPublicKey(pub [wgcrypto.KeySize]byte) (*Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byKey[pub]
	return p, ok
}

// ByIndex looks up which peer owns a given local_index.
func (t *Table) ByIndex(idx uint32) (*Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byIndex[idx]
	return p, ok
}

// AllocateIndex draws a random, currently-unused 32-bit local index
// and registers it as belonging to p. Spec.md §5: "a freshly generated
// random value, retried on collision, never reused while the session
// using it is live."
func (t *Table) AllocateIndex(p *Peer) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var buf [4]byte
	for i := 0; i < maxIndexAttempts; i++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}
		idx := binary.LittleEndian.Uint32(buf[:])
		if idx == 0 {
			continue
		}
		if _, taken := t.byIndex[idx]; taken {
			continue
		}
		t.byIndex[idx] = p
		return idx, nil
	}
	return 0, ErrIndexSpaceExhausted
}

// ReleaseIndex frees idx for reuse once its session is retired.
func (t *Table) ReleaseIndex(idx uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byIndex, idx)
}

// Range calls fn for every registered peer. fn must not call back into
// the Table.
func (t *Table) Range(fn func(*Peer)) {
	t.mu.RLock()
	peers := make([]*Peer, 0, len(t.byKey))
	for _, p := range t.byKey {
		peers = append(peers, p)
	}
	t.mu.RUnlock()
	for _, p := range peers {
		fn(p)
	}
}
