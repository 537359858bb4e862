package timers

import (
	"testing"
	"time"

	"wgcore/internal/cookie"
	"wgcore/internal/handshake"
	"wgcore/internal/peer"
	"wgcore/internal/transport"
	"wgcore/wglog"
)

func newTestWheel(t *testing.T, now time.Time) (*Wheel, *peer.Table, *peer.Peer) {
	t.Helper()
	var sk [32]byte
	sk[0] = 1
	id, err := peer.NewStaticIdentity(sk)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	table := peer.NewTable()
	secret, err := cookie.NewSecret(now)
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	engine := handshake.NewEngine(id, table, secret, wglog.NewNop())

	var pub, psk [32]byte
	pub[0] = 2
	p := peer.NewPeer(peer.NewConfig(pub, psk, 0))
	table.Add(p)

	return NewWheel(table, engine, secret), table, p
}

func TestTickRetransmitsInitAfterTimeout(t *testing.T) {
	now := time.Unix(1000, 0)
	wheel, _, p := newTestWheel(t, now)

	init := p.BeginInitiation(now)
	init.LastInitBytes = []byte("stand-in-init-bytes")

	if actions := wheel.Tick(now.Add(time.Second)); len(actions) != 0 {
		t.Fatalf("should not retransmit before RetransmitTimeout")
	}
	actions := wheel.Tick(now.Add(handshake.RetransmitTimeout))
	if len(actions) != 1 {
		t.Fatalf("expected one retransmit action, got %d", len(actions))
	}
	if string(actions[0].Bytes) != "stand-in-init-bytes" {
		t.Fatalf("retransmit should resend the original Init bytes")
	}
}

func TestTickAbandonsAfterAttemptTimeout(t *testing.T) {
	now := time.Unix(1000, 0)
	wheel, _, p := newTestWheel(t, now)

	init := p.BeginInitiation(now)
	init.LastInitBytes = []byte("stand-in-init-bytes")

	wheel.Tick(now.Add(handshake.AttemptTimeout))
	if p.Initiation() != nil {
		t.Fatalf("an in-progress initiation should be cleared after AttemptTimeout")
	}
}

func TestTickSendsKeepalive(t *testing.T) {
	now := time.Unix(1000, 0)
	wheel, _, p := newTestWheel(t, now)
	p.Config.KeepaliveInterval = 5 * time.Second

	var k1, k2 [32]byte
	sess := transport.NewSession(1, 2, transport.RoleInitiator, k1, k2, now)
	p.InstallNext(sess)
	p.PromoteNext(now)

	if actions := wheel.Tick(now.Add(time.Second)); len(actions) != 0 {
		t.Fatalf("should not send keepalive before KeepaliveInterval elapses")
	}
	actions := wheel.Tick(now.Add(6 * time.Second))
	if len(actions) != 1 {
		t.Fatalf("expected one keepalive action, got %d", len(actions))
	}
}

func TestTickEvictsExpiredSession(t *testing.T) {
	now := time.Unix(1000, 0)
	wheel, _, p := newTestWheel(t, now)

	var k1, k2 [32]byte
	sess := transport.NewSession(1, 2, transport.RoleResponder, k1, k2, now)
	p.InstallNext(sess)
	p.PromoteNext(now)

	wheel.Tick(now.Add(transport.RejectAfterTime))
	if p.CurrentSession() != nil {
		t.Fatalf("Tick should evict a session past RejectAfterTime")
	}
}
