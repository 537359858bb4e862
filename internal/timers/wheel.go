// Package timers sweeps every peer on a single tick, per spec.md §4.8:
// cookie-secret rotation, Init retransmission and attempt timeout,
// proactive rekey initiation, persistent keepalive, and session
// retirement, in that priority order.
//
// Grounded on infrastructure/cryptography/noise/rekey.go's
// MaybeAbortPending(now)-on-every-tick shape (check deadlines, act,
// move on) generalized from its single rekey deadline to the five
// deadlines spec.md §4.8 names for one peer.
package timers

import (
	"time"

	"wgcore/internal/cookie"
	"wgcore/internal/handshake"
	"wgcore/internal/peer"
	"wgcore/internal/wiremsg"
)

// Action is something the driver must send on the wire as a result of
// a Tick. The core performs no I/O itself: spec.md §6's sans-I/O
// contract extends to timer-driven sends as much as to application
// data.
type Action struct {
	Peer  *peer.Peer
	Bytes []byte
}

// Wheel drives the periodic maintenance work the handshake and
// transport layers cannot trigger themselves.
type Wheel struct {
	table  *peer.Table
	engine *handshake.Engine
	secret *cookie.Secret
}

// NewWheel constructs a Wheel over the shared peer table, handshake
// engine, and cookie secret a wgcore.Sessions wires together.
func NewWheel(table *peer.Table, engine *handshake.Engine, secret *cookie.Secret) *Wheel {
	return &Wheel{table: table, engine: engine, secret: secret}
}

// Tick runs one maintenance sweep and returns the bytes, if any, that
// must be sent to each peer's current endpoint.
func (w *Wheel) Tick(now time.Time) []Action {
	var actions []Action

	if w.secret.DueForRotation(now) {
		_ = w.secret.Rotate(now)
	}

	w.table.Range(func(p *peer.Peer) {
		if a, ok := w.tickInitiation(p, now); ok {
			actions = append(actions, a)
		} else if a, ok := w.tickRekey(p, now); ok {
			actions = append(actions, a)
		}

		if a, ok := w.tickKeepalive(p, now); ok {
			actions = append(actions, a)
		}

		p.EvictExpired(now)
	})

	return actions
}

// tickInitiation retransmits an in-progress Init past RetransmitTimeout,
// or gives up once AttemptTimeout has elapsed since the first attempt.
func (w *Wheel) tickInitiation(p *peer.Peer, now time.Time) (Action, bool) {
	init := p.Initiation()
	if init == nil {
		return Action{}, false
	}
	if now.Sub(init.FirstSentAt) >= handshake.AttemptTimeout {
		p.ClearInitiation()
		return Action{}, false
	}
	if now.Sub(init.SentAt) < handshake.RetransmitTimeout {
		return Action{}, false
	}
	var resend []byte
	p.TouchInitiation(func(s *peer.InitiationState) {
		resend = append([]byte(nil), s.LastInitBytes...)
		s.SentAt = now
		s.Attempts++
	})
	if resend == nil {
		return Action{}, false
	}
	return Action{Peer: p, Bytes: resend}, true
}

// tickRekey starts a fresh handshake once the current session crosses
// REKEY_AFTER_TIME or REKEY_AFTER_MESSAGES, per spec.md §4.8. Skipped
// if an initiation is already in flight.
func (w *Wheel) tickRekey(p *peer.Peer, now time.Time) (Action, bool) {
	if p.Initiation() != nil {
		return Action{}, false
	}
	sess := p.CurrentSession()
	if sess == nil || !sess.NeedsRekey(now) {
		return Action{}, false
	}
	buf, err := w.engine.BuildInit(p, now)
	if err != nil {
		return Action{}, false
	}
	return Action{Peer: p, Bytes: buf}, true
}

// tickKeepalive sends an empty Data message once KeepaliveInterval has
// elapsed since the last Data message was sent to this peer, or since
// the current session was created if nothing has been sent since then.
func (w *Wheel) tickKeepalive(p *peer.Peer, now time.Time) (Action, bool) {
	interval := p.Config.KeepaliveInterval
	if interval <= 0 {
		return Action{}, false
	}
	sess := p.CurrentSession()
	if sess == nil {
		return Action{}, false
	}
	last := p.LastDataSent()
	if last.Before(sess.CreatedAt) {
		last = sess.CreatedAt
	}
	if now.Sub(last) < interval {
		return Action{}, false
	}
	ct, counter, err := sess.Seal(nil, nil)
	if err != nil {
		return Action{}, false
	}
	out := make([]byte, wiremsg.DataMinSize)
	wiremsg.EncodeDataHeader(out, sess.RemoteIndex, counter)
	copy(out[16:], ct)
	p.MarkDataSent(now)
	return Action{Peer: p, Bytes: out}, true
}
