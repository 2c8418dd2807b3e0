package interview

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestClockFiresOnce(t *testing.T) {
	c := NewClock(nil)
	var fired atomic.Int32
	done := make(chan uint64, 1)

	token := c.Arm(10*time.Millisecond, func(tok uint64) {
		fired.Add(1)
		done <- tok
	})

	select {
	case got := <-done:
		if got != token {
			t.Fatalf("expected token %d, got %d", token, got)
		}
	case <-time.After(time.Second):
		t.Fatal("clock did not fire")
	}

	time.Sleep(20 * time.Millisecond)
	if n := fired.Load(); n != 1 {
		t.Fatalf("expected one expiry, got %d", n)
	}
	c.mu.Lock()
	pending := c.timer != nil
	c.mu.Unlock()
	if pending {
		t.Fatal("clock still armed after expiry")
	}
	if !c.Current(token) {
		t.Fatal("token should stay current until cancel or re-arm")
	}
}

func TestClockCancelIsIdempotent(t *testing.T) {
	c := NewClock(nil)
	var fired atomic.Bool

	token := c.Arm(10*time.Millisecond, func(uint64) { fired.Store(true) })
	c.Cancel()
	c.Cancel()

	time.Sleep(30 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancelled clock fired")
	}
	if c.Current(token) {
		t.Fatal("cancelled token is still current")
	}

	// cancelling a clock that was never armed is fine too
	NewClock(nil).Cancel()
}

func TestClockRearmReplacesCountdown(t *testing.T) {
	fc := &fakeClock{}
	c := NewClock(fc.AfterFunc)

	var first, second atomic.Int32
	c.Arm(time.Minute, func(uint64) { first.Add(1) })
	stale := fc.latest(time.Minute)
	token := c.Arm(time.Minute, func(uint64) { second.Add(1) })

	if fc.activeCount(time.Minute) != 1 {
		t.Fatalf("expected exactly one pending countdown, got %d", fc.activeCount(time.Minute))
	}

	stale.f()
	fc.fire(t, time.Minute)

	if first.Load() != 0 {
		t.Fatal("replaced countdown fired")
	}
	if second.Load() != 1 {
		t.Fatalf("expected current countdown to fire once, got %d", second.Load())
	}
	if !c.Current(token) {
		t.Fatal("expected latest token to be current")
	}
}
