package driver

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"golang.org/x/crypto/curve25519"

	"wgcore"
	"wgcore/config"
)

func pubKeyFor(t *testing.T, privateKey [32]byte) string {
	t.Helper()
	pub, err := curve25519.X25519(privateKey[:], curve25519.Basepoint)
	if err != nil {
		t.Fatalf("derive public key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(pub)
}

func TestDriverHandshakeOverLoopback(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	var iKey, rKey [32]byte
	iKey[0], rKey[0] = 0x61, 0x62

	initSessions, err := wgcore.New(iKey, wgcore.Options{}, now)
	if err != nil {
		t.Fatalf("wgcore.New initiator: %v", err)
	}
	respSessions, err := wgcore.New(rKey, wgcore.Options{}, now)
	if err != nil {
		t.Fatalf("wgcore.New responder: %v", err)
	}

	respDriver, err := Listen("127.0.0.1:0", respSessions, Options{Clock: clock})
	if err != nil {
		t.Fatalf("Listen responder: %v", err)
	}
	defer respDriver.Close()

	initDriver, err := Listen("127.0.0.1:0", initSessions, Options{Clock: clock})
	if err != nil {
		t.Fatalf("Listen initiator: %v", err)
	}
	defer initDriver.Close()

	respPeer, err := initSessions.AddPeer(config.PeerConfig{PublicKey: pubKeyFor(t, rKey)})
	if err != nil {
		t.Fatalf("initiator AddPeer: %v", err)
	}
	respPeer.UpdateEndpoint(respDriver.LocalAddr())
	if _, err := respSessions.AddPeer(config.PeerConfig{PublicKey: pubKeyFor(t, iKey)}); err != nil {
		t.Fatalf("responder AddPeer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go respDriver.Run(ctx)
	go initDriver.Run(ctx)

	if err := initDriver.SendTo(respPeer, []byte("hello over udp")); err != nil {
		t.Fatalf("SendTo (triggers handshake): %v", err)
	}

	// The first SendTo only kicks off the handshake (its payload is not
	// sent); give both read loops time to process the Init/Response
	// exchange before asserting the session came up.
	deadline := time.Now().Add(2 * time.Second)
	for respPeer.CurrentSession() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if respPeer.CurrentSession() == nil {
		t.Fatalf("initiator should have an established session after SendTo completes the handshake")
	}
}
