package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	behavior "continuous-auth/backend/internal/behavior/domain"
	"continuous-auth/backend/internal/behavior/classifier"
	"continuous-auth/backend/internal/session/domain"
	"continuous-auth/backend/internal/session/registry"
)

var (
	ctx      = context.Background()
	baseline = behavior.Baseline{WPM: 65, AvgHoldMs: 85, BackspaceCount: 5}
)

// fixedSnapshots always returns the same snapshot.
type fixedSnapshots struct {
	snap behavior.Snapshot
}

func (f fixedSnapshots) Snapshot() behavior.Snapshot { return f.snap }

var enoughSamples = fixedSnapshots{snap: behavior.Snapshot{TypingSpeedWPM: 64, AvgKeyHoldDurationMs: 86, BackspaceCount: 5, SampleCount: 8}}

// scripted returns the verdicts in order, then repeats the last one.
type scripted struct {
	mu       sync.Mutex
	verdicts []behavior.Verdict
	errs     []error
	calls    int
}

func (s *scripted) Classify(context.Context, behavior.Snapshot, behavior.Baseline) (behavior.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return behavior.Verdict{}, s.errs[i]
	}
	if i >= len(s.verdicts) {
		i = len(s.verdicts) - 1
	}
	return s.verdicts[i], nil
}

func (s *scripted) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var (
	normal  = behavior.Verdict{Status: behavior.VerdictNormal}
	anomaly = behavior.Verdict{Status: behavior.VerdictAnomaly, Reason: "unusual typing speed (69% from baseline)"}
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTick_FiveNormalThenAnomaly(t *testing.T) {
	reg := registry.New()
	var expiredA, expiredB atomic.Int32
	reg.Subscribe("u1", func(ev domain.Event) {
		if ev.Status == domain.StatusExpired {
			expiredA.Add(1)
		}
	})
	reg.Subscribe("u1", func(ev domain.Event) {
		if ev.Status == domain.StatusExpired {
			expiredB.Add(1)
		}
	})
	sess := reg.CreateSession(ctx, "u1", baseline)
	clf := &scripted{verdicts: []behavior.Verdict{normal, normal, normal, normal, normal, anomaly}}
	s := New(sess, enoughSamples, clf, reg)

	for i := 1; i <= 5; i++ {
		if out := s.Tick(ctx); out != OutcomeNormal {
			t.Fatalf("tick %d = %q, want normal", i, out)
		}
		if got, _ := reg.Session("u1"); !got.Active() {
			t.Fatalf("session expired after normal tick %d", i)
		}
	}
	if out := s.Tick(ctx); out != OutcomeAnomaly {
		t.Fatalf("tick 6 = %q, want anomaly", out)
	}
	got, _ := reg.Session("u1")
	if got.Status != domain.StatusExpired || got.Cause != domain.CauseAnomaly || got.Reason != anomaly.Reason {
		t.Errorf("session = %+v", got)
	}
	if expiredA.Load() != 1 || expiredB.Load() != 1 {
		t.Errorf("expired notifications = %d, %d; want 1 each", expiredA.Load(), expiredB.Load())
	}
	if out := s.Tick(ctx); out != OutcomeInactive {
		t.Errorf("tick after expiry = %q, want inactive", out)
	}
	if expiredA.Load() != 1 || expiredB.Load() != 1 {
		t.Error("extra notification after expiry")
	}
}

func TestTick_SkipsBelowMinSamples(t *testing.T) {
	reg := registry.New()
	sess := reg.CreateSession(ctx, "u1", baseline)
	clf := &scripted{verdicts: []behavior.Verdict{anomaly}}
	few := fixedSnapshots{snap: behavior.Snapshot{TypingSpeedWPM: 5, SampleCount: 3}}
	s := New(sess, few, clf, reg, WithMinSamples(6))

	if out := s.Tick(ctx); out != OutcomeSkipped {
		t.Errorf("Tick = %q, want skipped", out)
	}
	if clf.count() != 0 {
		t.Error("classifier should not be called below min samples")
	}
}

func TestTick_ClassifierErrorKeepsSession(t *testing.T) {
	reg := registry.New()
	sess := reg.CreateSession(ctx, "u1", baseline)
	unreachable := errors.New("classifier unreachable")
	clf := &scripted{errs: []error{unreachable, unreachable}, verdicts: []behavior.Verdict{normal}}
	s := New(sess, enoughSamples, clf, reg)

	for i := 0; i < 2; i++ {
		if out := s.Tick(ctx); out != OutcomeError {
			t.Errorf("Tick = %q, want error", out)
		}
	}
	if out := s.Tick(ctx); out != OutcomeNormal {
		t.Errorf("Tick after recovery = %q, want normal", out)
	}
	if got, _ := reg.Session("u1"); !got.Active() {
		t.Error("classifier failure must not expire the session")
	}
}

func TestTick_LateVerdictAfterExternalExpiry(t *testing.T) {
	reg := registry.New()
	sess := reg.CreateSession(ctx, "u1", baseline)
	var expired atomic.Int32
	reg.Subscribe("u1", func(ev domain.Event) {
		if ev.Status == domain.StatusExpired {
			expired.Add(1)
		}
	})
	clf := classifier.Func(func(context.Context, behavior.Snapshot, behavior.Baseline) (behavior.Verdict, error) {
		reg.ExpireSession(ctx, "u1", "signed out")
		return anomaly, nil
	})
	s := New(sess, enoughSamples, clf, reg)

	if out := s.Tick(ctx); out != OutcomeInactive {
		t.Errorf("Tick = %q, want inactive", out)
	}
	got, _ := reg.Session("u1")
	if got.Cause != domain.CauseExternal {
		t.Errorf("Cause = %q, want the external expiry to stand", got.Cause)
	}
	if expired.Load() != 1 {
		t.Errorf("expired notifications = %d, want 1", expired.Load())
	}
}

func TestTick_ReplacedSessionIsInactive(t *testing.T) {
	reg := registry.New()
	old := reg.CreateSession(ctx, "u1", baseline)
	reg.CreateSession(ctx, "u1", baseline)
	clf := &scripted{verdicts: []behavior.Verdict{anomaly}}
	s := New(old, enoughSamples, clf, reg)

	if out := s.Tick(ctx); out != OutcomeInactive {
		t.Errorf("Tick = %q, want inactive", out)
	}
	if got, _ := reg.Session("u1"); !got.Active() {
		t.Error("stale scheduler expired the replacement session")
	}
}

func TestLoop_ExpiresOnAnomaly(t *testing.T) {
	reg := registry.New()
	sess := reg.CreateSession(ctx, "u1", baseline)
	clf := &scripted{verdicts: []behavior.Verdict{normal, normal, anomaly}}
	s := New(sess, enoughSamples, clf, reg, WithInterval(2*time.Millisecond))
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool {
		got, _ := reg.Session("u1")
		return got.Status == domain.StatusExpired
	})
	waitFor(t, func() bool { return !s.Running() })
	if n := clf.count(); n != 3 {
		t.Errorf("classifier calls = %d, want 3 (loop stops after the anomaly)", n)
	}
}

func TestLoop_KeepsTickingThroughErrors(t *testing.T) {
	reg := registry.New()
	sess := reg.CreateSession(ctx, "u1", baseline)
	boom := errors.New("timeout")
	clf := &scripted{errs: []error{boom, boom, boom}, verdicts: []behavior.Verdict{anomaly}}
	s := New(sess, enoughSamples, clf, reg, WithInterval(2*time.Millisecond))
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool {
		got, _ := reg.Session("u1")
		return got.Status == domain.StatusExpired
	})
	if n := clf.count(); n != 4 {
		t.Errorf("classifier calls = %d, want 4", n)
	}
}

func TestStop_NoTicksAfterReturn(t *testing.T) {
	reg := registry.New()
	sess := reg.CreateSession(ctx, "u1", baseline)
	clf := &scripted{verdicts: []behavior.Verdict{normal}}
	s := New(sess, enoughSamples, clf, reg, WithInterval(time.Millisecond))
	s.Start()
	waitFor(t, func() bool { return clf.count() >= 2 })

	s.Stop()
	n := clf.count()
	time.Sleep(20 * time.Millisecond)
	if clf.count() != n {
		t.Errorf("classifier called %d times after Stop", clf.count()-n)
	}
	if s.Running() {
		t.Error("Running should be false after Stop")
	}
	s.Stop()
	s.Start()
	if s.Running() {
		t.Error("Start after Stop should be a no-op")
	}
}

func TestStop_CancelsInflightClassification(t *testing.T) {
	reg := registry.New()
	sess := reg.CreateSession(ctx, "u1", baseline)
	entered := make(chan struct{})
	var once sync.Once
	clf := classifier.Func(func(ctx context.Context, _ behavior.Snapshot, _ behavior.Baseline) (behavior.Verdict, error) {
		once.Do(func() { close(entered) })
		<-ctx.Done()
		return anomaly, nil
	})
	s := New(sess, enoughSamples, clf, reg, WithInterval(time.Millisecond))
	s.Start()
	<-entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the in-flight classification")
	}
	if got, _ := reg.Session("u1"); !got.Active() {
		t.Error("verdict delivered after Stop must be dropped")
	}
}

func TestStop_WaitsForExpiringTick(t *testing.T) {
	reg := registry.New()
	sess := reg.CreateSession(ctx, "u1", baseline)
	clf := &scripted{verdicts: []behavior.Verdict{anomaly}}
	s := New(sess, enoughSamples, clf, reg, WithInterval(2*time.Millisecond))
	entered := make(chan struct{})
	release := make(chan struct{})
	var tickDone atomic.Bool
	reg.Subscribe("u1", func(ev domain.Event) {
		if ev.Status == domain.StatusExpired {
			close(entered)
			<-release
			tickDone.Store(true)
		}
	})
	s.Start()
	<-entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while the tick was still expiring the session")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the tick finished")
	}
	if !tickDone.Load() || s.Running() {
		t.Error("loop still active after Stop returned")
	}
}

func TestStop_FromExpiryListenerGoroutine(t *testing.T) {
	reg := registry.New()
	sess := reg.CreateSession(ctx, "u1", baseline)
	clf := &scripted{verdicts: []behavior.Verdict{anomaly}}
	s := New(sess, enoughSamples, clf, reg, WithInterval(2*time.Millisecond))
	stopped := make(chan struct{})
	reg.Subscribe("u1", func(ev domain.Event) {
		if ev.Status == domain.StatusExpired {
			go func() {
				s.Stop()
				close(stopped)
			}()
		}
	})
	s.Start()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop triggered by the expiry listener never returned")
	}
	if s.Running() {
		t.Error("Running should be false after Stop")
	}
}

func TestStop_NeverStarted(t *testing.T) {
	reg := registry.New()
	sess := reg.CreateSession(ctx, "u1", baseline)
	s := New(sess, enoughSamples, &scripted{verdicts: []behavior.Verdict{normal}}, reg)
	s.Stop()
	if out := s.Tick(ctx); out != OutcomeInactive {
		t.Errorf("Tick after Stop = %q, want inactive", out)
	}
}
