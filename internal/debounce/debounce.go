// pattern: Imperative Shell

// Package debounce coalesces bursts of triggers into single calls.
package debounce

import (
	"sync"
	"time"
)

// Debouncer calls fn once, window after the last Trigger of a burst.
type Debouncer struct {
	window time.Duration
	fn     func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New creates a trailing-edge Debouncer.
func New(window time.Duration, fn func()) *Debouncer {
	return &Debouncer{window: window, fn: fn}
}

// Trigger (re)starts the quiet window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending call. Later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Keyed debounces independently per key: a burst for one key never delays
// another.
type Keyed[K comparable] struct {
	window time.Duration
	fn     func(K)

	mu      sync.Mutex
	timers  map[K]*time.Timer
	stopped bool
}

// NewKeyed creates a per-key trailing-edge debouncer.
func NewKeyed[K comparable](window time.Duration, fn func(K)) *Keyed[K] {
	return &Keyed[K]{window: window, fn: fn, timers: make(map[K]*time.Timer)}
}

// Trigger (re)starts the quiet window for key.
func (k *Keyed[K]) Trigger(key K) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stopped {
		return
	}
	if t, ok := k.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(k.window, func() {
		k.mu.Lock()
		if k.stopped || k.timers[key] != t {
			k.mu.Unlock()
			return
		}
		delete(k.timers, key)
		k.mu.Unlock()
		k.fn(key)
	})
	k.timers[key] = t
}

// Stop cancels all pending calls.
func (k *Keyed[K]) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stopped = true
	for key, t := range k.timers {
		t.Stop()
		delete(k.timers, key)
	}
}

// Throttler runs fn at most once per window. The first Trigger of a quiet
// period runs immediately; Triggers inside the window collapse into one call
// at its end.
type Throttler struct {
	window time.Duration
	fn     func()

	mu       sync.Mutex
	timer    *time.Timer
	trailing bool
	stopped  bool
}

// NewThrottler creates a leading-edge Throttler with trailing catch-up.
func NewThrottler(window time.Duration, fn func()) *Throttler {
	return &Throttler{window: window, fn: fn}
}

// Trigger requests a call.
func (t *Throttler) Trigger() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.timer != nil {
		t.trailing = true
		t.mu.Unlock()
		return
	}
	t.timer = time.AfterFunc(t.window, t.windowEnd)
	t.mu.Unlock()
	t.fn()
}

func (t *Throttler) windowEnd() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if !t.trailing {
		t.timer = nil
		t.mu.Unlock()
		return
	}
	t.trailing = false
	t.timer = time.AfterFunc(t.window, t.windowEnd)
	t.mu.Unlock()
	t.fn()
}

// Stop cancels any trailing call. Later Triggers are ignored.
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
