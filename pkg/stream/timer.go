package stream

import (
	"sync"
	"time"
)

// TimerSlot holds at most one pending callback. Arming the slot cancels the
// previous callback; a callback that already fired but lost the race with
// Reset or Stop is skipped.
type TimerSlot struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// Reset cancels any pending callback and schedules fn after d.
func (t *TimerSlot) Reset(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		current := t.gen == gen
		if current {
			t.timer = nil
		}
		t.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Stop cancels the pending callback. It reports whether one was pending.
func (t *TimerSlot) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.timer == nil {
		return false
	}
	t.timer.Stop()
	t.timer = nil
	return true
}

// Pending reports whether a callback is armed.
func (t *TimerSlot) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
