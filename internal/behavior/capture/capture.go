// Package capture accumulates raw keyboard and pointer events for one user context and derives
// behavioral metric snapshots from them.
package capture

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"continuous-auth/backend/internal/behavior/domain"
)

// DefaultPointerSampleInterval is the minimum spacing between recorded pointer-move samples.
const DefaultPointerSampleInterval = 50 * time.Millisecond

// Report is the final result of a stopped capture.
type Report struct {
	Snapshot  domain.Snapshot
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration is the wall-clock length of the capture.
func (r Report) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Baseline returns the enrollment summary of the report.
func (r Report) Baseline() domain.Baseline {
	return domain.BaselineFromSnapshot(r.Snapshot, r.EndedAt)
}

// Option configures a Capture.
type Option func(*Capture)

// WithPointerSampleInterval sets the pointer-move rate limit. Non-positive values disable it.
func WithPointerSampleInterval(d time.Duration) Option {
	return func(c *Capture) { c.pointerInterval = d }
}

// WithClock sets the clock used for start/stop times and for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Capture) {
		if now != nil {
			c.nowF = now
		}
	}
}

// Capture records interaction events from a Source between Start and Stop.
type Capture struct {
	source          Source
	pointerInterval time.Duration
	nowF            func() time.Time

	mu          sync.Mutex
	capturing   bool
	unsubscribe func()
	startedAt   time.Time
	report      *Report

	pressed       map[string]time.Time
	holds         []domain.TypingSample
	trail         []domain.PointerSample
	text          []rune
	backspaces    int
	firstKeyAt    time.Time
	lastKeyAt     time.Time
	lastPointerAt time.Time
}

// New returns a stopped capture bound to source.
func New(source Source, opts ...Option) *Capture {
	c := &Capture{
		source:          source,
		pointerInterval: DefaultPointerSampleInterval,
		nowF:            func() time.Time { return time.Now().UTC() },
		pressed:         make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start resets accumulated state and begins listening. No-op if already capturing.
func (c *Capture) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capturing {
		return
	}
	c.reset()
	c.capturing = true
	c.startedAt = c.nowF()
	if c.source != nil {
		c.unsubscribe = c.source.Subscribe(c.handle)
	}
}

// Stop detaches from the source, freezes accumulation and returns the final report.
// Calling Stop on a stopped capture returns the last report (zero Report if never started).
func (c *Capture) Stop() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		if c.report != nil {
			return *c.report
		}
		return Report{}
	}
	c.capturing = false
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	r := Report{
		Snapshot:  c.snapshotLocked(),
		StartedAt: c.startedAt,
		EndedAt:   c.nowF(),
	}
	c.report = &r
	return r
}

// Capturing reports whether the capture is between Start and Stop.
func (c *Capture) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capturing
}

// Snapshot returns the metrics derived from everything accumulated so far. It does not stop
// the capture and returns identical values when no input arrived in between.
func (c *Capture) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Record feeds one event directly, bypassing the source. Ignored unless capturing.
func (c *Capture) Record(ev Event) {
	c.handle(ev)
}

func (c *Capture) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = c.nowF()
	}
	switch ev.Type {
	case EventKeyDown:
		c.keyDown(ev.Key, at)
	case EventKeyUp:
		c.keyUp(ev.Key, at)
	case EventPointerMove:
		if c.pointerInterval > 0 && !c.lastPointerAt.IsZero() && at.Sub(c.lastPointerAt) < c.pointerInterval {
			return
		}
		c.lastPointerAt = at
		c.trail = append(c.trail, domain.PointerSample{X: ev.X, Y: ev.Y, At: at})
	case EventPointerClick:
		c.trail = append(c.trail, domain.PointerSample{X: ev.X, Y: ev.Y, At: at, Click: true})
	}
}

func (c *Capture) keyDown(key string, at time.Time) {
	if key == "" {
		return
	}
	c.touchKeyTime(at)
	// Auto-repeat keeps the original press time.
	if _, held := c.pressed[key]; !held {
		c.pressed[key] = at
	}
	switch key {
	case "Backspace":
		c.backspaces++
		if n := len(c.text); n > 0 {
			c.text = c.text[:n-1]
		}
	default:
		if r, ok := printable(key); ok {
			c.text = append(c.text, r)
		}
	}
}

func (c *Capture) keyUp(key string, at time.Time) {
	pressedAt, ok := c.pressed[key]
	if !ok {
		return
	}
	delete(c.pressed, key)
	c.touchKeyTime(at)
	hold := at.Sub(pressedAt)
	if hold < 0 {
		hold = 0
	}
	c.holds = append(c.holds, domain.TypingSample{
		Key:       key,
		PressedAt: pressedAt,
		HoldMs:    float64(hold) / float64(time.Millisecond),
	})
}

func (c *Capture) touchKeyTime(at time.Time) {
	if c.firstKeyAt.IsZero() || at.Before(c.firstKeyAt) {
		c.firstKeyAt = at
	}
	if at.After(c.lastKeyAt) {
		c.lastKeyAt = at
	}
}

func (c *Capture) snapshotLocked() domain.Snapshot {
	s := domain.Snapshot{
		BackspaceCount: c.backspaces,
		SampleCount:    len(c.holds),
		RawHolds:       make([]domain.TypingSample, len(c.holds)),
		PointerTrail:   make([]domain.PointerSample, len(c.trail)),
	}
	copy(s.RawHolds, c.holds)
	copy(s.PointerTrail, c.trail)

	if len(c.holds) > 0 {
		var total float64
		for _, h := range c.holds {
			total += h.HoldMs
		}
		s.AvgKeyHoldDurationMs = total / float64(len(c.holds))
	}

	words := len(strings.Fields(string(c.text)))
	minutes := c.lastKeyAt.Sub(c.firstKeyAt).Minutes()
	if words > 0 && minutes > 0 {
		s.TypingSpeedWPM = float64(words) / minutes
	}
	return s
}

func (c *Capture) reset() {
	c.report = nil
	c.pressed = make(map[string]time.Time)
	c.holds = nil
	c.trail = nil
	c.text = nil
	c.backspaces = 0
	c.firstKeyAt = time.Time{}
	c.lastKeyAt = time.Time{}
	c.lastPointerAt = time.Time{}
}

// printable maps a key name to the rune it adds to the text buffer.
func printable(key string) (rune, bool) {
	switch key {
	case "Enter":
		return '\n', true
	case "Tab":
		return '\t', true
	}
	if utf8.RuneCountInString(key) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError || r < 0x20 || r == 0x7f {
		return 0, false
	}
	return r, true
}
