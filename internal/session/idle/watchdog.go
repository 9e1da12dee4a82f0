// Package idle fires a callback when no user activity has been observed for a timeout.
package idle

import (
	"sync"
	"time"

	"continuous-auth/backend/internal/behavior/capture"
)

// DefaultTimeout is the idle period.
const DefaultTimeout = 60 * time.Second

// Watchdog tracks the time since the last activity signal. OnIdle fires at most once per idle
// period; Reset (or an observed activity event) re-arms it. It is independent of behavioral
// analysis: resetting it does not touch any scheduler.
type Watchdog struct {
	timeout time.Duration
	onIdle  func(lastActivity time.Time)
	nowF    func() time.Time

	// callMu is held across OnIdle so Stop can wait for a callback in progress.
	callMu sync.Mutex

	mu           sync.Mutex
	timer        *time.Timer
	gen          uint64
	running      bool
	lastActivity time.Time
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithClock overrides time.Now for the recorded activity time (tests).
func WithClock(now func() time.Time) Option {
	return func(w *Watchdog) { w.nowF = now }
}

// New returns a stopped watchdog. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration, onIdle func(lastActivity time.Time), opts ...Option) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	w := &Watchdog{timeout: timeout, onIdle: onIdle, nowF: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start arms the timer. Starting a running watchdog is a no-op.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.lastActivity = w.nowF()
	w.armLocked()
}

// Reset records activity now and restarts the idle period. It is ignored when stopped.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.lastActivity = w.nowF()
	w.armLocked()
}

// Observe resets the watchdog for activity events (pointer move, key down, touch, scroll) and
// ignores the rest. It has the capture.Source handler signature.
func (w *Watchdog) Observe(ev capture.Event) {
	if ev.IsActivity() {
		w.Reset()
	}
}

// Stop disarms the timer and waits for an OnIdle call in progress. No OnIdle call runs after it
// returns. It must not be called from inside OnIdle. Idempotent.
func (w *Watchdog) Stop() {
	w.callMu.Lock()
	defer w.callMu.Unlock()
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// LastActivity returns the time of the most recent activity (or Start).
func (w *Watchdog) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActivity
}

func (w *Watchdog) armLocked() {
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
	}
	gen := w.gen
	w.timer = time.AfterFunc(w.timeout, func() { w.fire(gen) })
}

func (w *Watchdog) fire(gen uint64) {
	w.callMu.Lock()
	defer w.callMu.Unlock()

	w.mu.Lock()
	if !w.running || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	last := w.lastActivity
	w.mu.Unlock()

	if w.onIdle != nil {
		w.onIdle(last)
	}
}
