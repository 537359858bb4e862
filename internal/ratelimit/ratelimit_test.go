package ratelimit

import (
	"testing"
	"time"
)

func TestAllowBurstThenThrottles(t *testing.T) {
	l := New()
	now := time.Unix(1000, 0)
	l.SetClock(func() time.Time { return now })

	src := []byte{192, 0, 2, 1}
	for i := 0; i < packetsBurstable; i++ {
		if !l.Allow(src) {
			t.Fatalf("request %d within the burst should be allowed", i)
		}
	}
	if l.Allow(src) {
		t.Fatalf("exceeding the burst without any elapsed time should be throttled")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	l := New()
	now := time.Unix(1000, 0)
	l.SetClock(func() time.Time { return now })

	src := []byte{192, 0, 2, 2}
	for i := 0; i < packetsBurstable; i++ {
		l.Allow(src)
	}
	if l.Allow(src) {
		t.Fatalf("bucket should be empty")
	}

	now = now.Add(time.Second)
	if !l.Allow(src) {
		t.Fatalf("a full second should refill enough tokens to allow one more request")
	}
}

func TestAllowIsPerSourceAddress(t *testing.T) {
	l := New()
	now := time.Unix(1000, 0)
	l.SetClock(func() time.Time { return now })

	a := []byte{192, 0, 2, 3}
	b := []byte{192, 0, 2, 4}
	for i := 0; i < packetsBurstable; i++ {
		l.Allow(a)
	}
	if !l.Allow(b) {
		t.Fatalf("a distinct source address should have its own independent bucket")
	}
}

func TestAllowMalformedAddressAlwaysAllowed(t *testing.T) {
	l := New()
	if !l.Allow([]byte{1, 2, 3}) {
		t.Fatalf("a malformed address length should never be throttled")
	}
}
