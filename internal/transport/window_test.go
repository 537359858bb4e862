package transport

import "testing"

func TestWindowAcceptsInOrder(t *testing.T) {
	var w Window
	for i := uint64(0); i < 10; i++ {
		if !w.Check(i) {
			t.Fatalf("counter %d should be accepted before it's ever seen", i)
		}
		w.Accept(i)
	}
}

func TestWindowRejectsDuplicate(t *testing.T) {
	var w Window
	w.Accept(5)
	if w.Check(5) {
		t.Fatalf("a duplicate counter must be rejected")
	}
}

func TestWindowAcceptsOutOfOrderWithinRange(t *testing.T) {
	var w Window
	w.Accept(100)
	if !w.Check(95) {
		t.Fatalf("a counter within the window behind the high-water mark should be accepted")
	}
	w.Accept(95)
	if w.Check(95) {
		t.Fatalf("95 should now be rejected as a duplicate")
	}
}

func TestWindowRejectsTooOld(t *testing.T) {
	var w Window
	w.Accept(WindowSize * 2)
	if w.Check(0) {
		t.Fatalf("a counter older than the window width must be rejected")
	}
}

func TestWindowSlidesForward(t *testing.T) {
	var w Window
	w.Accept(0)
	w.Accept(WindowSize + 1)
	if w.Check(0) {
		t.Fatalf("counter 0 should fall off the trailing edge after sliding")
	}
	if w.Check(WindowSize + 1) {
		t.Fatalf("the just-accepted high-water counter should now read as a duplicate")
	}
}

func TestWindowFirstCounterZeroAccepted(t *testing.T) {
	var w Window
	if !w.Check(0) {
		t.Fatalf("counter 0 must be acceptable as the very first message")
	}
	w.Accept(0)
	if w.Check(0) {
		t.Fatalf("counter 0 should be rejected once seen")
	}
}
