// Package countdown runs the fixed pre-roll count before capture begins.
// It owns no audio hardware; its only side effects are the tick and
// completion callbacks.
package countdown

import (
	"sync"
	"time"
)

// Callbacks are invoked from the timer goroutine. OnTick fires with the value
// about to be shown (initial..1); OnComplete fires exactly once after the
// final tick elapses.
type Callbacks struct {
	OnTick     func(count int)
	OnComplete func()
}

// Timer is a decrementing one-second countdown. Start restarts from the full
// initial value; any pending tick from a previous start is cancelled first,
// so a double-start never leaks a timer.
type Timer struct {
	initial  int
	interval time.Duration
	cb       Callbacks

	mu      sync.Mutex
	count   int
	active  bool
	pending *time.Timer
	gen     uint64
}

// New creates a countdown from initial with a tick interval. A non-positive
// initial is clamped to 1; a non-positive interval defaults to one second.
func New(initial int, interval time.Duration, cb Callbacks) *Timer {
	if initial <= 0 {
		initial = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{initial: initial, interval: interval, cb: cb, count: initial}
}

// Start resets the count to the initial value and begins ticking. Calling
// Start while active restarts from full duration; that is the chosen policy,
// not an error.
func (t *Timer) Start() {
	t.mu.Lock()
	t.cancelLocked()
	t.count = t.initial
	t.active = true
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	t.notifyTick(t.initial)
	t.schedule(gen)
}

// Cancel clears any pending tick and resets the count without invoking the
// completion callback. Safe to call when inactive.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.count = t.initial
	t.active = false
}

// Count returns the value currently displayed.
func (t *Timer) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Active reports whether a countdown is in progress.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Timer) schedule(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active || gen != t.gen {
		return
	}
	t.pending = time.AfterFunc(t.interval, func() { t.tick(gen) })
}

func (t *Timer) tick(gen uint64) {
	t.mu.Lock()
	if !t.active || gen != t.gen {
		t.mu.Unlock()
		return
	}
	if t.count > 1 {
		t.count--
		count := t.count
		t.mu.Unlock()

		t.notifyTick(count)
		t.schedule(gen)
		return
	}
	t.active = false
	t.pending = nil
	t.mu.Unlock()

	if t.cb.OnComplete != nil {
		t.cb.OnComplete()
	}
}

func (t *Timer) cancelLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.gen++
}

func (t *Timer) notifyTick(count int) {
	if t.cb.OnTick != nil {
		t.cb.OnTick(count)
	}
}
