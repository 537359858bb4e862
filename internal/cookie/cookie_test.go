package cookie

import (
	"testing"
	"time"
)

func TestSecretRotation(t *testing.T) {
	now := time.Unix(1000, 0)
	s, err := NewSecret(now)
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	if s.DueForRotation(now.Add(SecretTTL - time.Second)) {
		t.Fatalf("secret should not be due for rotation before SecretTTL")
	}
	if !s.DueForRotation(now.Add(SecretTTL)) {
		t.Fatalf("secret should be due for rotation at SecretTTL")
	}

	before := s.Compute([]byte("1.2.3.4"))
	if err := s.Rotate(now.Add(SecretTTL)); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	after := s.Compute([]byte("1.2.3.4"))
	if before == after {
		t.Fatalf("Compute should change after Rotate")
	}
	if s.DueForRotation(now.Add(SecretTTL)) {
		t.Fatalf("secret should not be due for rotation immediately after Rotate")
	}
}

func TestMac1KeyDependsOnPeerKey(t *testing.T) {
	spkA := []byte("peer-a-static-public-key-------")
	spkB := []byte("peer-b-static-public-key-------")
	ka := Mac1Key(spkA)
	kb := Mac1Key(spkB)
	if ka == kb {
		t.Fatalf("Mac1Key should differ between distinct static public keys")
	}
}

func TestVerifyMac1(t *testing.T) {
	key := Mac1Key([]byte("some-static-public-key---------"))
	body := []byte("handshake-init-prefix-bytes")
	mac := Mac1(&key, body)
	if !VerifyMac1(&key, body, mac) {
		t.Fatalf("VerifyMac1 should accept a correctly computed mac1")
	}
	mac[0] ^= 0xff
	if VerifyMac1(&key, body, mac) {
		t.Fatalf("VerifyMac1 should reject a corrupted mac1")
	}
}

func TestVerifyMac2(t *testing.T) {
	var cookieLocal [16]byte
	cookieLocal[0] = 0x11
	body := []byte("handshake-init-prefix-plus-mac1")
	mac := Mac2(&cookieLocal, body)
	if !VerifyMac2(&cookieLocal, body, mac) {
		t.Fatalf("VerifyMac2 should accept a correctly computed mac2")
	}
}

func TestCookieReplyRoundTrip(t *testing.T) {
	spk := []byte("responder-static-public-key----")
	key := KeyFor(spk)

	var mac1 [16]byte
	mac1[0] = 0xaa
	var cookieLocal [16]byte
	cookieLocal[0] = 0xbb

	reply, err := CreateReply(&key, mac1, cookieLocal)
	if err != nil {
		t.Fatalf("CreateReply: %v", err)
	}

	got, err := ConsumeReply(&key, reply, mac1)
	if err != nil {
		t.Fatalf("ConsumeReply: %v", err)
	}
	if got != cookieLocal {
		t.Fatalf("got cookie %x, want %x", got, cookieLocal)
	}
}

func TestConsumeReplyRejectsWrongMac1(t *testing.T) {
	spk := []byte("responder-static-public-key----")
	key := KeyFor(spk)

	var mac1, wrongMac1 [16]byte
	mac1[0] = 1
	wrongMac1[0] = 2
	var cookieLocal [16]byte

	reply, err := CreateReply(&key, mac1, cookieLocal)
	if err != nil {
		t.Fatalf("CreateReply: %v", err)
	}
	if _, err := ConsumeReply(&key, reply, wrongMac1); err == nil {
		t.Fatalf("ConsumeReply should fail when the AAD (lastSentMac1) doesn't match")
	}
}

func TestCacheExpiry(t *testing.T) {
	var c Cache
	now := time.Unix(1000, 0)
	var val [16]byte
	val[0] = 1

	if _, ok := c.Get(now); ok {
		t.Fatalf("an empty cache should not return a value")
	}
	c.Store(val, now)
	got, ok := c.Get(now.Add(CacheTTL - time.Second))
	if !ok || got != val {
		t.Fatalf("cached value should be retrievable before expiry")
	}
	if _, ok := c.Get(now.Add(CacheTTL + time.Second)); ok {
		t.Fatalf("cached value should expire after CacheTTL")
	}
	c.Store(val, now)
	c.Clear()
	if _, ok := c.Get(now); ok {
		t.Fatalf("Clear should forget the cached value")
	}
}
