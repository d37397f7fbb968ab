package prefs

import (
	"sync"
	"time"
)

// Scheduler abstracts delayed execution so the debounce window is
// deterministic under test. Schedule runs fn after d unless the returned
// cancel func is called first.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler is the production Scheduler.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, fn)
	return func() { timer.Stop() }
}

// Debouncer holds at most one pending callback. Each Trigger cancels the
// previous slot, so only the latest callback fires when the window
// elapses.
type Debouncer struct {
	window time.Duration
	sched  Scheduler

	mu     sync.Mutex
	cancel func()
}

func NewDebouncer(window time.Duration, sched Scheduler) *Debouncer {
	return &Debouncer{window: window, sched: sched}
}

func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = d.sched.Schedule(d.window, func() {
		d.mu.Lock()
		d.cancel = nil
		d.mu.Unlock()
		fn()
	})
}

// Stop drops any pending callback without firing it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
