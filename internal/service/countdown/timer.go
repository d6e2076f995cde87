// Package countdown provides the auto-escalation countdown shared by the
// pre-triage confirmation and fall-detection flows.
package countdown

import (
	"context"
	"sync"
	"time"
)

// Timer counts down a fixed number of ticks and fires onZero exactly
// once when it reaches zero, unless cancelled first.
//
// Tick and Cancel serialize on one mutex, and onZero runs while the
// mutex is held: once Cancel returns, onZero can no longer fire, even if
// a tick was already in flight. Callbacks must not call back into the
// Timer.
type Timer struct {
	mu        sync.Mutex
	remaining int
	interval  time.Duration
	onTick    func(remaining int)
	onZero    func()
	cancelled bool
	fired     bool
	stop      chan struct{}
	started   bool
}

// New creates a timer with the given number of ticks. interval is the
// wall-clock spacing used by Start; tests drive Tick directly and may
// pass any interval.
func New(ticks int, interval time.Duration, onTick func(remaining int), onZero func()) *Timer {
	return &Timer{
		remaining: ticks,
		interval:  interval,
		onTick:    onTick,
		onZero:    onZero,
		stop:      make(chan struct{}),
	}
}

// Remaining returns the current countdown value.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Done reports whether the timer has fired or been cancelled.
func (t *Timer) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired || t.cancelled
}

// Tick decrements the countdown by one. On reaching zero it fires
// onZero. Ticks after cancellation or firing are no-ops.
func (t *Timer) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelled || t.fired || t.remaining <= 0 {
		return
	}

	t.remaining--
	if t.onTick != nil {
		t.onTick(t.remaining)
	}
	if t.remaining == 0 {
		t.fired = true
		if t.onZero != nil {
			t.onZero()
		}
	}
}

// Cancel stops the countdown. After Cancel returns, onZero is guaranteed
// never to fire. Idempotent.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelled || t.fired {
		return
	}
	t.cancelled = true
	close(t.stop)
}

// Start runs the tick loop on the configured interval until the timer
// fires, is cancelled, or the context ends. Start may be called at most
// once.
func (t *Timer) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started || t.cancelled || t.fired {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				t.Cancel()
				return
			case <-t.stop:
				return
			case <-ticker.C:
				t.Tick()
				if t.Done() {
					return
				}
			}
		}
	}()
}
