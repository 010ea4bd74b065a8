package app

import (
	"sync"
	"time"
)

// Remaining derives the time left from the absolute start anchor. It never
// goes below zero.
func Remaining(anchor time.Time, budget time.Duration, now time.Time) time.Duration {
	left := budget - now.Sub(anchor)
	if left < 0 {
		return 0
	}
	return left
}

// Timer is the single session-wide countdown. It is owned by a Session and
// has an explicit Start/Cancel lifecycle; callbacks run on the timer goroutine.
type Timer struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	stop chan struct{}
}

func NewTimer(interval time.Duration, now func() time.Time) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Timer{interval: interval, now: now}
}

// Start (re)arms the countdown. Any previous countdown is canceled first.
// onTick receives the remaining time on every interval; onExpire fires once
// when the remaining time reaches zero.
func (t *Timer) Start(anchor time.Time, budget time.Duration, onTick func(time.Duration), onExpire func()) {
	t.mu.Lock()
	t.cancelLocked()
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.run(stop, anchor, budget, onTick, onExpire)
}

// Cancel stops further ticks. It does not wait for a callback already running.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

// Active reports whether a countdown is armed.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Timer) cancelLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Timer) run(stop chan struct{}, anchor time.Time, budget time.Duration, onTick func(time.Duration), onExpire func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		remaining := Remaining(anchor, budget, t.now())
		if remaining > 0 {
			if t.armed(stop) && onTick != nil {
				onTick(remaining)
			}
			continue
		}

		t.mu.Lock()
		if t.stop != stop {
			t.mu.Unlock()
			return
		}
		t.cancelLocked()
		t.mu.Unlock()
		if onExpire != nil {
			onExpire()
		}
		return
	}
}

func (t *Timer) armed(stop chan struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop == stop
}
