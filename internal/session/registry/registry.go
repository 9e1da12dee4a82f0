// Package registry holds one session per user and notifies subscribers of transitions.
package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	behavior "continuous-auth/backend/internal/behavior/domain"
	"continuous-auth/backend/internal/logger"
	"continuous-auth/backend/internal/session/domain"
	"continuous-auth/backend/internal/telemetry"
	teldomain "continuous-auth/backend/internal/telemetry/domain"
)

const eventSource = "session_registry"

// Listener receives session transitions for the user it subscribed to.
type Listener func(domain.Event)

// SubscriptionID identifies one subscription for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id     SubscriptionID
	fn     Listener
	active atomic.Bool
}

// Registry is the single owner of session records and their subscriptions. All methods are
// safe for concurrent use. Listeners run synchronously on the goroutine that caused the
// transition, in registration order, outside the registry lock, so they may call back into
// the registry.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	subs     map[string][]*subscription
	nextSub  SubscriptionID

	log     *logger.Logger
	emitter telemetry.EventEmitter
	metrics *telemetry.Metrics
	nowF    func() time.Time
	newID   func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for listener failures and transitions.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = logger.OrNop(l) }
}

// WithEmitter forwards every transition to e, asynchronously and best-effort.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(r *Registry) { r.emitter = e }
}

// WithMetrics counts transitions in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.nowF = now }
}

// WithIDGenerator overrides session ID generation (tests).
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*domain.Session),
		subs:     make(map[string][]*subscription),
		log:      logger.Nop(),
		nowF:     time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateSession starts a new active session for userID, replacing any prior record, and
// notifies the user's subscribers. Subscriptions survive the replacement.
func (r *Registry) CreateSession(ctx context.Context, userID string, baseline behavior.Baseline) domain.Session {
	now := r.nowF().UTC()
	sess := &domain.Session{
		ID:        r.newID(),
		UserID:    userID,
		Status:    domain.StatusActive,
		Baseline:  baseline,
		CreatedAt: now,
	}

	r.mu.Lock()
	prev := r.sessions[userID]
	r.sessions[userID] = sess
	listeners := r.listenersLocked(userID)
	out := *sess
	r.mu.Unlock()

	if prev != nil && prev.Status == domain.StatusActive {
		r.log.Info("session replaced", "user_id", userID, "previous_session_id", prev.ID, "session_id", sess.ID)
	} else {
		r.log.Info("session active", "user_id", userID, "session_id", sess.ID)
	}
	r.metrics.SessionStarted(ctx)
	r.emit(out, teldomain.EventSessionActive, nil)
	r.notify(listeners, domain.Event{UserID: userID, SessionID: sess.ID, Status: domain.StatusActive, At: now})
	return out
}

// ExpireSession expires the user's current session regardless of its ID, for external callers
// such as an auth layer. It reports whether a transition happened.
func (r *Registry) ExpireSession(ctx context.Context, userID, reason string) bool {
	return r.expire(ctx, userID, "", domain.CauseExternal, reason)
}

// Expire expires the user's session only if it is still sessionID and active. Components bound
// to one session (scheduler, idle watchdog, sign-out) use it so they never expire a replacement.
func (r *Registry) Expire(ctx context.Context, userID, sessionID string, cause domain.Cause, reason string) bool {
	if sessionID == "" {
		return false
	}
	return r.expire(ctx, userID, sessionID, cause, reason)
}

func (r *Registry) expire(ctx context.Context, userID, sessionID string, cause domain.Cause, reason string) bool {
	now := r.nowF().UTC()

	r.mu.Lock()
	sess := r.sessions[userID]
	if sess == nil || sess.Status != domain.StatusActive || (sessionID != "" && sess.ID != sessionID) {
		r.mu.Unlock()
		return false
	}
	sess.Status = domain.StatusExpired
	sess.ExpiredAt = now
	sess.Cause = cause
	sess.Reason = reason
	listeners := r.listenersLocked(userID)
	out := *sess
	r.mu.Unlock()

	r.log.Info("session expired", "user_id", userID, "session_id", out.ID, "cause", string(cause), "reason", reason)
	r.metrics.SessionExpired(ctx, string(cause))
	r.emit(out, teldomain.EventSessionExpired, map[string]any{"cause": string(cause), "reason": reason})
	r.notify(listeners, domain.Event{
		UserID:    userID,
		SessionID: out.ID,
		Status:    domain.StatusExpired,
		Cause:     cause,
		Reason:    reason,
		At:        now,
	})
	return true
}

// Session returns a copy of the user's current record.
func (r *Registry) Session(userID string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[userID]
	if !ok {
		return domain.Session{}, false
	}
	return *sess, true
}

// Subscribe registers fn for userID's transitions. A nil fn is ignored and yields ID 0.
func (r *Registry) Subscribe(userID string, fn Listener) SubscriptionID {
	if fn == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	sub := &subscription{id: r.nextSub, fn: fn}
	sub.active.Store(true)
	r.subs[userID] = append(r.subs[userID], sub)
	return sub.id
}

// Unsubscribe removes a subscription. Unknown IDs are ignored. Once it returns, later
// deliveries skip the listener, including the rest of a fan-out the caller is running inside.
func (r *Registry) Unsubscribe(userID string, id SubscriptionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.subs[userID]
	for i, sub := range list {
		if sub.id != id {
			continue
		}
		sub.active.Store(false)
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(r.subs, userID)
		} else {
			r.subs[userID] = list
		}
		return
	}
}

// SubscriberCount returns the number of live subscriptions for userID.
func (r *Registry) SubscriberCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[userID])
}

func (r *Registry) listenersLocked(userID string) []*subscription {
	return append([]*subscription(nil), r.subs[userID]...)
}

func (r *Registry) notify(listeners []*subscription, ev domain.Event) {
	for _, sub := range listeners {
		if !sub.active.Load() {
			continue
		}
		r.deliver(sub, ev)
	}
}

func (r *Registry) deliver(sub *subscription, ev domain.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("session listener panicked",
				"user_id", ev.UserID, "subscription", uint64(sub.id), "status", string(ev.Status), "panic", fmt.Sprint(p))
		}
	}()
	sub.fn(ev)
}

func (r *Registry) emit(s domain.Session, eventType string, metadata map[string]any) {
	if r.emitter == nil {
		return
	}
	telemetry.EmitAsync(r.emitter, telemetry.NewEvent(eventType, eventSource, s.UserID, s.ID, metadata, r.nowF()))
}
