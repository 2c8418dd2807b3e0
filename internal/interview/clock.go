package interview

import (
	"sync"
	"time"
)

// Timer is the part of *time.Timer the clock needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once adapted by RealAfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc schedules f on the runtime timer.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Clock is a single cancellable countdown. Arming replaces any armed countdown, so at most
// one expiry can be pending. Every arming is identified by a token; a token stops being
// current as soon as the clock is cancelled or re-armed, which lets the consumer discard an
// expiry that was already in flight when the countdown was cancelled.
type Clock struct {
	mu    sync.Mutex
	after AfterFunc
	timer Timer
	token uint64
}

// NewClock returns a disarmed clock. A nil after uses the runtime timer.
func NewClock(after AfterFunc) *Clock {
	if after == nil {
		after = RealAfterFunc
	}
	return &Clock{after: after}
}

// Arm schedules exactly one call of onExpire after d and returns the arming token.
func (c *Clock) Arm(d time.Duration, onExpire func(token uint64)) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.token++
	token := c.token

	c.timer = c.after(d, func() {
		c.mu.Lock()
		live := c.token == token && c.timer != nil
		if live {
			c.timer = nil
		}
		c.mu.Unlock()

		if live {
			onExpire(token)
		}
	})

	return token
}

// Cancel disarms the clock. Safe to call any number of times, armed or not.
func (c *Clock) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.token++
}

// Current reports whether token still identifies the latest arming.
func (c *Clock) Current(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return token != 0 && c.token == token
}

func (c *Clock) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
