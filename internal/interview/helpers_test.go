package interview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) activeCount(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if t.d == d && !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// latest returns the most recent timer armed for d, fired or not.
func (c *fakeClock) latest(d time.Duration) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.timers) - 1; i >= 0; i-- {
		if c.timers[i].d == d {
			return c.timers[i]
		}
	}
	return nil
}

func (c *fakeClock) fire(t *testing.T, d time.Duration) {
	t.Helper()
	if !c.tryFire(d) {
		t.Fatalf("no active timer for %s", d)
	}
}

// tryFire fires the latest active timer for d and reports whether there was one.
func (c *fakeClock) tryFire(d time.Duration) bool {
	c.mu.Lock()
	var target *fakeTimer
	for i := len(c.timers) - 1; i >= 0; i-- {
		tm := c.timers[i]
		if tm.d == d && !tm.stopped && !tm.fired {
			target = tm
			break
		}
	}
	if target == nil {
		c.mu.Unlock()
		return false
	}
	target.fired = true
	c.mu.Unlock()

	target.f()
	return true
}

// fireTimer fires tm unless it was already stopped or fired, and reports whether it ran.
func (c *fakeClock) fireTimer(tm *fakeTimer) bool {
	c.mu.Lock()
	if tm.stopped || tm.fired {
		c.mu.Unlock()
		return false
	}
	tm.fired = true
	c.mu.Unlock()

	tm.f()
	return true
}

type evaluatorFunc func(ctx context.Context, q Question, transcript string) (*Evaluation, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, q Question, transcript string) (*Evaluation, error) {
	return f(ctx, q, transcript)
}

func scoreByLength() Evaluator {
	return evaluatorFunc(func(_ context.Context, _ Question, transcript string) (*Evaluation, error) {
		return &Evaluation{Score: float64(len(transcript)), Feedback: "ok", Provider: "stub"}, nil
	})
}

type speakerFunc func(ctx context.Context, text, voiceID string) error

func (f speakerFunc) Speak(ctx context.Context, text, voiceID string) error {
	return f(ctx, text, voiceID)
}

func newTestOrchestrator(t *testing.T, cfg Config, deps Deps) *Orchestrator {
	t.Helper()

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return "sess_test" }
	}
	if cfg.EventBuffer == 0 {
		cfg.EventBuffer = 64
	}

	o, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(o.Close)

	return o
}

// drain reads the stream until it is closed.
func drain(t *testing.T, ch <-chan StageChange) []StageChange {
	t.Helper()

	var out []StageChange
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("stream not closed, got %d events", len(out))
		}
	}
}

func stages(events []StageChange) []Stage {
	out := make([]Stage, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Stage)
	}
	return out
}

func waitFor(t *testing.T, o *Orchestrator, cond func(Status) bool) Status {
	t.Helper()

	var (
		mu      sync.Mutex
		matched Status
	)
	ok := assert.Eventually(t, func() bool {
		st := o.Status()
		if !cond(st) {
			return false
		}
		mu.Lock()
		matched = st
		mu.Unlock()
		return true
	}, 2*time.Second, 5*time.Millisecond)
	if !ok {
		t.Fatalf("condition not met, status: %+v", o.Status())
	}

	mu.Lock()
	defer mu.Unlock()
	return matched
}

func questions(texts ...string) []Question {
	qs := make([]Question, 0, len(texts))
	for _, text := range texts {
		qs = append(qs, Question{Text: text})
	}
	return qs
}
