package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"continuous-auth/backend/internal/telemetry/domain"
)

// emitTimeout bounds a single background emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is the longest shutdown should wait in Drain. It covers one emitTimeout.
const ShutdownDrainDuration = emitTimeout

// Async emits in the background and tracks what is in flight so shutdown can wait for it
// before closing the sinks.
type Async struct {
	next EventEmitter

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

var _ EventEmitter = (*Async)(nil)

// NewAsync wraps next. A nil next yields an emitter that drops everything.
func NewAsync(next EventEmitter) *Async {
	return &Async{next: next}
}

// Go emits event on its own goroutine with emitTimeout. Events offered after Drain has started
// are dropped.
func (a *Async) Go(event *domain.Event) {
	if a == nil || a.next == nil || event == nil {
		return
	}
	a.mu.Lock()
	if a.draining {
		a.mu.Unlock()
		return
	}
	a.inflight.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.inflight.Done()
		send(a.next, event)
	}()
}

// Emit implements EventEmitter without blocking. It always returns nil.
func (a *Async) Emit(_ context.Context, event *domain.Event) error {
	a.Go(event)
	return nil
}

// Drain stops accepting events and waits for in-flight emits or ctx, whichever ends first.
func (a *Async) Drain(ctx context.Context) error {
	a.mu.Lock()
	a.draining = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EmitAsync hands event to emitter without blocking the caller. An *Async emitter tracks the
// emit for Drain; any other emitter gets an untracked goroutine. Nil arguments are ignored.
func EmitAsync(emitter EventEmitter, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	if a, ok := emitter.(*Async); ok {
		a.Go(event)
		return
	}
	go send(emitter, event)
}

// send uses a fresh context so caller cancellation does not abort the emit.
func send(emitter EventEmitter, event *domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()
	if err := emitter.Emit(ctx, event); err != nil {
		zap.S().Warnw("telemetry: async emit failed", "event_type", event.EventType, "error", err)
	}
}
