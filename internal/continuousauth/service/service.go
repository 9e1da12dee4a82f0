// Package service runs enrollment captures and guards live sessions with behavioral analysis
// and an idle watchdog.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	baselinerepo "continuous-auth/backend/internal/baseline/repository"
	"continuous-auth/backend/internal/behavior/capture"
	"continuous-auth/backend/internal/behavior/classifier"
	behavior "continuous-auth/backend/internal/behavior/domain"
	"continuous-auth/backend/internal/logger"
	"continuous-auth/backend/internal/session/domain"
	"continuous-auth/backend/internal/session/idle"
	"continuous-auth/backend/internal/session/registry"
	"continuous-auth/backend/internal/session/scheduler"
	"continuous-auth/backend/internal/telemetry"
)

var (
	// ErrInvalidUser is returned when the user id is empty.
	ErrInvalidUser = errors.New("user id is required")
	// ErrNoBaseline is returned by StartSession for users who never completed enrollment.
	ErrNoBaseline = errors.New("no baseline enrolled for user")
	// ErrNotEnrolling is returned when no enrollment capture is running for the user.
	ErrNotEnrolling = errors.New("no enrollment in progress")
	// ErrInsufficientSamples is returned by CompleteEnrollment below the minimum sample count.
	ErrInsufficientSamples = errors.New("not enough typing samples to enroll")
	// ErrNoSession is returned when the caller's session is not the user's current active session.
	ErrNoSession = errors.New("no active session")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("service closed")
)

const defaultSignOutReason = "signed out"

// Config holds the analysis tunables. Zero values take the package defaults.
type Config struct {
	PointerSampleInterval time.Duration
	AnalysisInterval      time.Duration
	IdleTimeout           time.Duration
	MinSamples            int
}

func (c Config) normalized() Config {
	if c.PointerSampleInterval <= 0 {
		c.PointerSampleInterval = capture.DefaultPointerSampleInterval
	}
	if c.AnalysisInterval <= 0 {
		c.AnalysisInterval = scheduler.DefaultInterval
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = idle.DefaultTimeout
	}
	if c.MinSamples <= 0 {
		c.MinSamples = classifier.DefaultMinSamples
	}
	return c
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets timing and sampling parameters; zero fields take defaults.
func WithConfig(c Config) Option {
	return func(s *Service) { s.cfg = c.normalized() }
}

// WithLogger sets the logger; nil means no logging.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = logger.OrNop(l) }
}

// WithMetrics records session and analysis metrics on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEmitter forwards anomaly verdicts to e.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowF = now }
}

type enrollment struct {
	feed    *capture.Feed
	capture *capture.Capture
}

// guard bundles everything that watches one session. stop is idempotent.
type guard struct {
	userID    string
	sessionID string
	feed      *capture.Feed
	capture   *capture.Capture
	scheduler *scheduler.Scheduler
	watchdog  *idle.Watchdog
	unwatch   func()
	sub       registry.SubscriptionID
	once      sync.Once
}

// Service is the continuous-auth orchestration layer. All methods are safe for concurrent use.
type Service struct {
	baselines  baselinerepo.Repository
	registry   *registry.Registry
	classifier classifier.Classifier

	cfg     Config
	log     *logger.Logger
	metrics *telemetry.Metrics
	emitter telemetry.EventEmitter
	nowF    func() time.Time

	mu          sync.Mutex
	closed      bool
	enrollments map[string]*enrollment
	guards      map[string]*guard
	teardowns   sync.WaitGroup
}

// New returns a service over the given baseline store, session registry and classifier.
func New(baselines baselinerepo.Repository, reg *registry.Registry, clf classifier.Classifier, opts ...Option) *Service {
	s := &Service{
		baselines:   baselines,
		registry:    reg,
		classifier:  clf,
		cfg:         Config{}.normalized(),
		log:         logger.Nop(),
		nowF:        time.Now,
		enrollments: make(map[string]*enrollment),
		guards:      make(map[string]*guard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MinSamples is the typing sample count needed to enroll and to classify.
func (s *Service) MinSamples() int {
	return s.cfg.MinSamples
}

// StartEnrollment starts a fresh enrollment capture for userID, discarding one in progress.
func (s *Service) StartEnrollment(ctx context.Context, userID string) (time.Time, error) {
	if userID == "" {
		return time.Time{}, ErrInvalidUser
	}
	feed := capture.NewFeed()
	e := &enrollment{
		feed:    feed,
		capture: capture.New(feed, capture.WithPointerSampleInterval(s.cfg.PointerSampleInterval), capture.WithClock(s.utcNow)),
	}
	startedAt := s.utcNow()
	e.capture.Start()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		e.capture.Stop()
		return time.Time{}, ErrClosed
	}
	prev := s.enrollments[userID]
	s.enrollments[userID] = e
	s.mu.Unlock()

	if prev != nil {
		prev.capture.Stop()
		s.log.Info("enrollment restarted", "user_id", userID)
	} else {
		s.log.Info("enrollment started", "user_id", userID)
	}
	return startedAt, nil
}

// RecordEnrollmentEvents feeds events to the user's enrollment capture. Invalid events are
// counted as rejected and skipped.
func (s *Service) RecordEnrollmentEvents(ctx context.Context, userID string, events []capture.Event) (accepted, rejected int, err error) {
	s.mu.Lock()
	e := s.enrollments[userID]
	s.mu.Unlock()
	if e == nil {
		return 0, 0, ErrNotEnrolling
	}
	accepted, rejected = publish(e.feed, events)
	return accepted, rejected, nil
}

// CompleteEnrollment stops the user's enrollment capture and saves its summary as the baseline.
// With fewer than MinSamples typing samples it returns ErrInsufficientSamples and keeps capturing.
func (s *Service) CompleteEnrollment(ctx context.Context, userID string) (capture.Report, behavior.Baseline, error) {
	s.mu.Lock()
	e := s.enrollments[userID]
	if e == nil {
		s.mu.Unlock()
		return capture.Report{}, behavior.Baseline{}, ErrNotEnrolling
	}
	if n := e.capture.Snapshot().SampleCount; n < s.cfg.MinSamples {
		s.mu.Unlock()
		return capture.Report{}, behavior.Baseline{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, n, s.cfg.MinSamples)
	}
	delete(s.enrollments, userID)
	s.mu.Unlock()

	report := e.capture.Stop()
	b := report.Baseline()
	if err := s.baselines.Save(ctx, userID, b); err != nil {
		return capture.Report{}, behavior.Baseline{}, fmt.Errorf("save baseline: %w", err)
	}
	s.log.Info("enrollment complete", "user_id", userID, "sample_count", b.SampleCount,
		"wpm", b.WPM, "avg_hold_ms", b.AvgHoldMs, "duration", report.Duration())
	return report, b, nil
}

// StartSession creates a new session for an externally authenticated user and starts guarding
// it. A previous session of the user is replaced and its guard torn down.
func (s *Service) StartSession(ctx context.Context, userID string) (domain.Session, error) {
	if userID == "" {
		return domain.Session{}, ErrInvalidUser
	}
	if s.isClosed() {
		return domain.Session{}, ErrClosed
	}
	b, err := s.baselines.Load(ctx, userID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load baseline: %w", err)
	}
	if b == nil {
		return domain.Session{}, ErrNoBaseline
	}

	sess := s.registry.CreateSession(ctx, userID, *b)
	g := s.newGuard(sess)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.teardown(g)
		return domain.Session{}, ErrClosed
	}
	prev := s.guards[userID]
	s.guards[userID] = g
	s.mu.Unlock()

	if prev != nil {
		s.teardown(prev)
	}
	// The session may have been expired or replaced before the subscription existed.
	if cur, ok := s.registry.Session(userID); !ok || cur.ID != sess.ID || !cur.Active() {
		s.teardown(g)
	}
	return sess, nil
}

func (s *Service) newGuard(sess domain.Session) *guard {
	feed := capture.NewFeed()
	g := &guard{
		userID:    sess.UserID,
		sessionID: sess.ID,
		feed:      feed,
		capture:   capture.New(feed, capture.WithPointerSampleInterval(s.cfg.PointerSampleInterval), capture.WithClock(s.utcNow)),
	}
	g.scheduler = scheduler.New(sess, g.capture, s.classifier, s.registry,
		scheduler.WithInterval(s.cfg.AnalysisInterval),
		scheduler.WithMinSamples(s.cfg.MinSamples),
		scheduler.WithLogger(s.log),
		scheduler.WithMetrics(s.metrics),
		scheduler.WithEmitter(s.emitter),
	)
	idleFor := s.cfg.IdleTimeout
	g.watchdog = idle.New(idleFor, func(last time.Time) {
		reason := fmt.Sprintf("no activity for %s", idleFor)
		if s.registry.Expire(context.Background(), g.userID, g.sessionID, domain.CauseIdle, reason) {
			s.log.Info("session idle", "user_id", g.userID, "session_id", g.sessionID, "last_activity", last)
		}
	}, idle.WithClock(s.nowF))

	g.sub = s.registry.Subscribe(sess.UserID, func(ev domain.Event) {
		if ev.SessionID != g.sessionID || ev.Status != domain.StatusExpired {
			return
		}
		switch ev.Cause {
		case domain.CauseAnomaly, domain.CauseIdle:
			// Raised from inside g's scheduler or watchdog, which teardown waits for.
			s.teardownAsync(g)
		default:
			s.teardown(g)
		}
	})
	g.capture.Start()
	g.unwatch = feed.Subscribe(g.watchdog.Observe)
	g.watchdog.Start()
	g.scheduler.Start()
	return g
}

// teardown stops every part of g and forgets it. It waits for g's scheduler and watchdog, so
// it must not run inside their callbacks; see teardownAsync.
func (s *Service) teardown(g *guard) {
	g.once.Do(func() {
		g.scheduler.Stop()
		g.watchdog.Stop()
		g.unwatch()
		g.capture.Stop()
		s.registry.Unsubscribe(g.userID, g.sub)

		s.mu.Lock()
		if s.guards[g.userID] == g {
			delete(s.guards, g.userID)
		}
		s.mu.Unlock()
		s.log.Debug("session guard stopped", "user_id", g.userID, "session_id", g.sessionID)
	})
}

// teardownAsync runs teardown on its own goroutine. Close waits for it; after Close has begun,
// Close tears g down itself.
func (s *Service) teardownAsync(g *guard) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.teardowns.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.teardowns.Done()
		s.teardown(g)
	}()
}

// RecordEvents feeds events to the capture and idle watchdog of the caller's session.
func (s *Service) RecordEvents(ctx context.Context, userID, sessionID string, events []capture.Event) (accepted, rejected int, err error) {
	g, err := s.guard(userID, sessionID)
	if err != nil {
		return 0, 0, err
	}
	accepted, rejected = publish(g.feed, events)
	return accepted, rejected, nil
}

// Snapshot returns the live snapshot of the caller's session.
func (s *Service) Snapshot(ctx context.Context, userID, sessionID string) (behavior.Snapshot, error) {
	g, err := s.guard(userID, sessionID)
	if err != nil {
		return behavior.Snapshot{}, err
	}
	return g.capture.Snapshot(), nil
}

// Session returns the user's current session record, active or expired.
func (s *Service) Session(userID string) (domain.Session, error) {
	sess, ok := s.registry.Session(userID)
	if !ok {
		return domain.Session{}, ErrNoSession
	}
	return sess, nil
}

// EndSession signs the caller out. Ending an already expired session returns its record.
func (s *Service) EndSession(ctx context.Context, userID, sessionID, reason string) (domain.Session, error) {
	if reason == "" {
		reason = defaultSignOutReason
	}
	s.registry.Expire(ctx, userID, sessionID, domain.CauseSignOut, reason)
	sess, ok := s.registry.Session(userID)
	if !ok || sess.ID != sessionID {
		return domain.Session{}, ErrNoSession
	}
	return sess, nil
}

// ExpireSession expires the user's current session on behalf of an external auth layer.
func (s *Service) ExpireSession(ctx context.Context, userID, reason string) bool {
	return s.registry.ExpireSession(ctx, userID, reason)
}

// ValidateSession reports whether sessionID is the user's current session record. Expired
// sessions stay valid for reads until replaced.
func (s *Service) ValidateSession(ctx context.Context, userID, sessionID string) (bool, error) {
	sess, ok := s.registry.Session(userID)
	return ok && sess.ID == sessionID, nil
}

// Watch subscribes fn to the user's session transitions. The returned function unsubscribes.
func (s *Service) Watch(userID string, fn registry.Listener) (unsubscribe func()) {
	id := s.registry.Subscribe(userID, fn)
	var once sync.Once
	return func() {
		once.Do(func() { s.registry.Unsubscribe(userID, id) })
	}
}

// Close stops all enrollments and session guards. Sessions stay in the registry.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	guards := make([]*guard, 0, len(s.guards))
	for _, g := range s.guards {
		guards = append(guards, g)
	}
	enrollments := make([]*enrollment, 0, len(s.enrollments))
	for _, e := range s.enrollments {
		enrollments = append(enrollments, e)
	}
	s.enrollments = make(map[string]*enrollment)
	s.mu.Unlock()

	for _, g := range guards {
		s.teardown(g)
	}
	s.teardowns.Wait()
	for _, e := range enrollments {
		e.capture.Stop()
	}
	s.log.Info("continuous-auth service closed", "guards", len(guards), "enrollments", len(enrollments))
}

func (s *Service) guard(userID, sessionID string) (*guard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.guards[userID]
	if g == nil || sessionID == "" || g.sessionID != sessionID {
		return nil, ErrNoSession
	}
	return g, nil
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Service) utcNow() time.Time {
	return s.nowF().UTC()
}

func publish(feed *capture.Feed, events []capture.Event) (accepted, rejected int) {
	for _, ev := range events {
		if !ev.Valid() {
			rejected++
			continue
		}
		feed.Publish(ev)
		accepted++
	}
	return accepted, rejected
}
