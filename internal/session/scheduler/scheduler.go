// Package scheduler periodically classifies a session's live behavior and expires the session
// on the first anomaly.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	behavior "continuous-auth/backend/internal/behavior/domain"
	"continuous-auth/backend/internal/behavior/classifier"
	"continuous-auth/backend/internal/logger"
	"continuous-auth/backend/internal/session/domain"
	"continuous-auth/backend/internal/telemetry"
	teldomain "continuous-auth/backend/internal/telemetry/domain"
)

// DefaultInterval is the analysis cadence.
const DefaultInterval = 3 * time.Second

const (
	eventSource = "scheduler"
	tracerName  = "continuous-auth/scheduler"
)

// SnapshotSource provides the live behavior snapshot, typically a *capture.Capture.
type SnapshotSource interface {
	Snapshot() behavior.Snapshot
}

// Sessions is the registry surface the scheduler needs.
type Sessions interface {
	Session(userID string) (domain.Session, bool)
	Expire(ctx context.Context, userID, sessionID string, cause domain.Cause, reason string) bool
}

// Outcome is the result of one analysis tick.
type Outcome string

const (
	// OutcomeSkipped means too few samples to classify.
	OutcomeSkipped Outcome = "skipped"
	OutcomeNormal  Outcome = "normal"
	// OutcomeAnomaly means the tick expired the session.
	OutcomeAnomaly Outcome = "anomaly"
	// OutcomeError means the classifier failed; no verdict this tick.
	OutcomeError Outcome = "error"
	// OutcomeInactive means the session is gone, expired, replaced, or the scheduler stopped;
	// any verdict was dropped.
	OutcomeInactive Outcome = "inactive"
)

// Scheduler drives analysis for exactly one session.
type Scheduler struct {
	userID    string
	sessionID string

	snapshots  SnapshotSource
	classifier classifier.Classifier
	sessions   Sessions

	interval   time.Duration
	minSamples int
	log        *logger.Logger
	metrics    *telemetry.Metrics
	emitter    telemetry.EventEmitter
	nowF       func() time.Time

	tickMu sync.Mutex

	mu      sync.Mutex
	started bool
	stopped bool
	quit    chan struct{}
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the analysis cadence. Non-positive values keep DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMinSamples sets the typing sample count below which a tick is skipped.
func WithMinSamples(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.minSamples = n
		}
	}
}

// WithLogger sets the logger; nil means no logging.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) { s.log = logger.OrNop(l) }
}

// WithMetrics records analysis cycles on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithEmitter reports anomaly verdicts to e.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(s *Scheduler) { s.emitter = e }
}

// New returns a scheduler for sess. It does nothing until Start.
func New(sess domain.Session, snapshots SnapshotSource, clf classifier.Classifier, sessions Sessions, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		userID:     sess.UserID,
		sessionID:  sess.ID,
		snapshots:  snapshots,
		classifier: clf,
		sessions:   sessions,
		interval:   DefaultInterval,
		minSamples: classifier.DefaultMinSamples,
		log:        logger.Nop(),
		nowF:       time.Now,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("user_id", s.userID, "session_id", s.sessionID)
	return s
}

// Start launches the ticker loop. It is a no-op when already started or stopped.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	go s.loop()
}

// Stop halts the loop, cancels an in-flight classification and waits for the loop to exit, so
// nothing the scheduler does (expiry, metrics, events) happens after it returns. It is
// idempotent. It must not be called synchronously from a session listener run by this
// scheduler's own expiry; such listeners stop it from another goroutine.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	close(s.quit)
	s.cancel()
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			switch s.Tick(s.ctx) {
			case OutcomeAnomaly, OutcomeInactive:
				s.log.Debug("scheduler finished")
				return
			}
		}
	}
}

// Tick runs one analysis cycle. Ticks never overlap.
func (s *Scheduler) Tick(ctx context.Context) Outcome {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "scheduler.Tick",
		trace.WithAttributes(attribute.String("session.id", s.sessionID)))
	out := s.tick(ctx)
	span.SetAttributes(attribute.String("analysis.outcome", string(out)))
	span.End()
	return out
}

func (s *Scheduler) tick(ctx context.Context) Outcome {
	sess, ok := s.current()
	if !ok {
		return OutcomeInactive
	}
	snap := s.snapshots.Snapshot()
	if snap.SampleCount < s.minSamples {
		s.metrics.AnalysisCycle(ctx, string(OutcomeSkipped), 0)
		return OutcomeSkipped
	}

	started := s.nowF()
	verdict, err := s.classifier.Classify(ctx, snap, sess.Baseline)
	took := s.nowF().Sub(started)
	if err != nil {
		if s.isStopped() {
			return OutcomeInactive
		}
		s.log.Warn("classifier failed, skipping cycle", "error", err)
		s.metrics.AnalysisCycle(ctx, string(OutcomeError), took)
		return OutcomeError
	}
	if s.isStopped() {
		return OutcomeInactive
	}
	if !verdict.IsAnomaly() {
		s.metrics.AnalysisCycle(ctx, string(OutcomeNormal), took)
		return OutcomeNormal
	}

	s.log.Info("behavioral anomaly", "reason", verdict.Reason, "sample_count", snap.SampleCount)
	if !s.sessions.Expire(ctx, s.userID, s.sessionID, domain.CauseAnomaly, verdict.Reason) {
		return OutcomeInactive
	}
	s.metrics.AnalysisCycle(ctx, string(OutcomeAnomaly), took)
	if s.emitter != nil {
		telemetry.EmitAsync(s.emitter, telemetry.NewEvent(teldomain.EventVerdictAnomaly, eventSource, s.userID, s.sessionID,
			map[string]any{
				"reason":       verdict.Reason,
				"sample_count": snap.SampleCount,
				"wpm":          snap.TypingSpeedWPM,
				"avg_hold_ms":  snap.AvgKeyHoldDurationMs,
				"backspaces":   snap.BackspaceCount,
			}, s.nowF()))
	}
	return OutcomeAnomaly
}

// current returns the session only while it is still this scheduler's active session.
func (s *Scheduler) current() (domain.Session, bool) {
	if s.isStopped() {
		return domain.Session{}, false
	}
	sess, ok := s.sessions.Session(s.userID)
	if !ok || sess.ID != s.sessionID || !sess.Active() {
		return domain.Session{}, false
	}
	return sess, true
}

func (s *Scheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
