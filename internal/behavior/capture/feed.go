package capture

import (
	"sync"
	"sync/atomic"
)

// Source delivers raw interaction events to subscribed handlers. The returned function removes
// the handler; it is idempotent and, once it returns, the handler is not invoked by any
// Publish that starts afterwards.
type Source interface {
	Subscribe(handler func(Event)) (unsubscribe func())
}

type feedHandler struct {
	id     uint64
	fn     func(Event)
	active atomic.Bool
}

// Feed is an in-process Source. Publish fans each event out to the handlers registered at the
// time of the call, in registration order, outside the feed lock.
type Feed struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []*feedHandler
}

var _ Source = (*Feed)(nil)

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Subscribe registers handler and returns its unsubscribe function.
func (f *Feed) Subscribe(handler func(Event)) func() {
	if handler == nil {
		return func() {}
	}
	f.mu.Lock()
	f.nextID++
	h := &feedHandler{id: f.nextID, fn: handler}
	h.active.Store(true)
	f.handlers = append(f.handlers, h)
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.active.Store(false)
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, cur := range f.handlers {
				if cur.id == h.id {
					f.handlers = append(f.handlers[:i:i], f.handlers[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every active handler.
func (f *Feed) Publish(ev Event) {
	f.mu.RLock()
	hs := make([]*feedHandler, len(f.handlers))
	copy(hs, f.handlers)
	f.mu.RUnlock()
	for _, h := range hs {
		if h.active.Load() {
			h.fn(ev)
		}
	}
}

// Len returns the number of registered handlers.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.handlers)
}
