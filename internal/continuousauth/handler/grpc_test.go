package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	continuousauthv1 "continuous-auth/backend/api/continuousauth/v1"
	baselinerepo "continuous-auth/backend/internal/baseline/repository"
	"continuous-auth/backend/internal/behavior/classifier"
	behavior "continuous-auth/backend/internal/behavior/domain"
	"continuous-auth/backend/internal/continuousauth/service"
	"continuous-auth/backend/internal/security"
	"continuous-auth/backend/internal/server/interceptors"
	"continuous-auth/backend/internal/session/registry"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	srv    *Server
	svc    *service.Service
	repo   *baselinerepo.MemoryRepository
	tokens *security.TokenProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := security.NewEphemeralTokenProvider("test-issuer", "test-audience", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewEphemeralTokenProvider: %v", err)
	}
	repo := baselinerepo.NewMemoryRepository()
	svc := service.New(repo, registry.New(), classifier.NewThreshold(classifier.DefaultParams()),
		service.WithConfig(service.Config{AnalysisInterval: time.Hour, IdleTimeout: time.Hour}))
	t.Cleanup(svc.Close)
	return &fixture{srv: NewServer(svc, tokens, nil), svc: svc, repo: repo, tokens: tokens}
}

func typing(keys ...string) []continuousauthv1.InteractionEvent {
	var out []continuousauthv1.InteractionEvent
	at := t0
	for _, k := range keys {
		out = append(out,
			continuousauthv1.InteractionEvent{Type: "key_down", Key: k, At: at},
			continuousauthv1.InteractionEvent{Type: "key_up", Key: k, At: at.Add(90 * time.Millisecond)},
		)
		at = at.Add(250 * time.Millisecond)
	}
	return out
}

func wantCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if status.Code(err) != want {
		t.Errorf("err = %v, want code %v", err, want)
	}
}

func (f *fixture) startSession(t *testing.T, userID string) (context.Context, *continuousauthv1.StartSessionResponse) {
	t.Helper()
	f.repo.Save(context.Background(), userID, behavior.Baseline{WPM: 40, AvgHoldMs: 90, BackspaceCount: 1})
	resp, err := f.srv.StartSession(context.Background(), &continuousauthv1.StartSessionRequest{UserID: userID})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return interceptors.WithIdentity(context.Background(), security.Identity{UserID: userID, SessionID: resp.Session.ID}), resp
}

func TestEnrollmentFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.srv.StartEnrollment(ctx, &continuousauthv1.StartEnrollmentRequest{UserID: "u1"}); err != nil {
		t.Fatalf("StartEnrollment: %v", err)
	}
	rec, err := f.srv.RecordEnrollmentEvents(ctx, &continuousauthv1.RecordEnrollmentEventsRequest{
		UserID: "u1",
		Events: append(typing("h", "e", "l", "l", "o", " ", "y", "o"), continuousauthv1.InteractionEvent{Type: "key_down"}),
	})
	if err != nil {
		t.Fatalf("RecordEnrollmentEvents: %v", err)
	}
	if rec.Accepted != 16 || rec.Rejected != 1 {
		t.Errorf("accepted/rejected = %d/%d, want 16/1", rec.Accepted, rec.Rejected)
	}
	done, err := f.srv.CompleteEnrollment(ctx, &continuousauthv1.CompleteEnrollmentRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("CompleteEnrollment: %v", err)
	}
	if done.Baseline.SampleCount != 8 || done.Baseline.AvgHoldMs != 90 {
		t.Errorf("baseline = %+v", done.Baseline)
	}
	if b, _ := f.repo.Load(ctx, "u1"); b == nil {
		t.Error("baseline was not stored")
	}
}

func TestEnrollment_ErrorCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.srv.StartEnrollment(ctx, &continuousauthv1.StartEnrollmentRequest{})
	wantCode(t, err, codes.InvalidArgument)

	_, err = f.srv.RecordEnrollmentEvents(ctx, &continuousauthv1.RecordEnrollmentEventsRequest{UserID: "ghost"})
	wantCode(t, err, codes.FailedPrecondition)

	f.srv.StartEnrollment(ctx, &continuousauthv1.StartEnrollmentRequest{UserID: "u1"})
	_, err = f.srv.CompleteEnrollment(ctx, &continuousauthv1.CompleteEnrollmentRequest{UserID: "u1"})
	wantCode(t, err, codes.FailedPrecondition)
}

func TestStartSession_IssuesToken(t *testing.T) {
	f := newFixture(t)
	_, resp := f.startSession(t, "u1")

	if resp.Session.Status != "active" || resp.Session.ExpiredAt != nil {
		t.Errorf("session = %+v", resp.Session)
	}
	id, err := f.tokens.Validate(resp.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.UserID != "u1" || id.SessionID != resp.Session.ID {
		t.Errorf("identity = %+v, want u1/%s", id, resp.Session.ID)
	}
	if d := resp.ExpiresAt.Sub(id.ExpiresAt); d < 0 || d >= time.Second {
		t.Errorf("ExpiresAt = %v, token exp = %v", resp.ExpiresAt, id.ExpiresAt)
	}
}

func TestStartSession_NotEnrolled(t *testing.T) {
	f := newFixture(t)
	_, err := f.srv.StartSession(context.Background(), &continuousauthv1.StartSessionRequest{UserID: "u1"})
	wantCode(t, err, codes.NotFound)
}

func TestStartSession_WithoutTokens(t *testing.T) {
	f := newFixture(t)
	f.srv = NewServer(f.svc, nil, nil)
	_, resp := f.startSession(t, "u1")
	if resp.AccessToken != "" {
		t.Error("no token expected without a token provider")
	}
}

func TestSessionCalls(t *testing.T) {
	f := newFixture(t)
	ctx, resp := f.startSession(t, "u1")

	rec, err := f.srv.RecordEvents(ctx, &continuousauthv1.RecordEventsRequest{Events: append(typing("a", "b"),
		continuousauthv1.InteractionEvent{Type: "pointer_move", X: 1, Y: 2, At: t0})})
	if err != nil {
		t.Fatalf("RecordEvents: %v", err)
	}
	if rec.Accepted != 5 {
		t.Errorf("accepted = %d, want 5", rec.Accepted)
	}
	snap, err := f.srv.GetSnapshot(ctx, &continuousauthv1.GetSnapshotRequest{})
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.Snapshot.SampleCount != 2 || snap.Snapshot.PointerSamples != 1 {
		t.Errorf("snapshot = %+v", snap.Snapshot)
	}
	got, err := f.srv.GetSession(ctx, &continuousauthv1.GetSessionRequest{})
	if err != nil || got.Session.ID != resp.Session.ID {
		t.Fatalf("GetSession = %+v, %v", got, err)
	}

	ended, err := f.srv.EndSession(ctx, &continuousauthv1.EndSessionRequest{Reason: "user clicked sign out"})
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if ended.Session.Status != "expired" || ended.Session.Cause != "sign_out" || ended.Session.ExpiredAt == nil {
		t.Errorf("ended = %+v", ended.Session)
	}
	_, err = f.srv.RecordEvents(ctx, &continuousauthv1.RecordEventsRequest{Events: typing("c")})
	wantCode(t, err, codes.FailedPrecondition)
}

func TestGetSession_Replaced(t *testing.T) {
	f := newFixture(t)
	oldCtx, _ := f.startSession(t, "u1")
	f.startSession(t, "u1")

	_, err := f.srv.GetSession(oldCtx, &continuousauthv1.GetSessionRequest{})
	wantCode(t, err, codes.FailedPrecondition)
}

func TestProtectedCalls_RequireIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.srv.RecordEvents(ctx, &continuousauthv1.RecordEventsRequest{})
	wantCode(t, err, codes.Unauthenticated)
	_, err = f.srv.GetSnapshot(ctx, &continuousauthv1.GetSnapshotRequest{})
	wantCode(t, err, codes.Unauthenticated)
	_, err = f.srv.GetSession(ctx, &continuousauthv1.GetSessionRequest{})
	wantCode(t, err, codes.Unauthenticated)
	_, err = f.srv.EndSession(ctx, &continuousauthv1.EndSessionRequest{})
	wantCode(t, err, codes.Unauthenticated)
	err = f.srv.WatchSession(&continuousauthv1.WatchSessionRequest{}, &fakeWatchStream{ctx: ctx})
	wantCode(t, err, codes.Unauthenticated)
}

func TestStatusError_Internal(t *testing.T) {
	err := NewServer(nil, nil, nil).statusError(errors.New("redis: connection refused"))
	wantCode(t, err, codes.Internal)
	if status.Convert(err).Message() != "internal error" {
		t.Errorf("internal details leaked: %v", err)
	}
	wantCode(t, NewServer(nil, nil, nil).statusError(service.ErrClosed), codes.Unavailable)
}

// fakeWatchStream implements ContinuousAuthService_WatchSessionServer.
type fakeWatchStream struct {
	grpc.ServerStream
	ctx     context.Context
	mu      sync.Mutex
	sent    []*continuousauthv1.SessionEvent
	sendErr error
}

func (s *fakeWatchStream) Context() context.Context { return s.ctx }

func (s *fakeWatchStream) Send(ev *continuousauthv1.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, ev)
	return nil
}

func (s *fakeWatchStream) events() []*continuousauthv1.SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*continuousauthv1.SessionEvent(nil), s.sent...)
}

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

func TestWatchSession_StreamsTransitions(t *testing.T) {
	f := newFixture(t)
	idCtx, resp := f.startSession(t, "u1")
	ctx, cancel := context.WithCancel(idCtx)
	stream := &fakeWatchStream{ctx: ctx}

	done := make(chan error, 1)
	go func() { done <- f.srv.WatchSession(&continuousauthv1.WatchSessionRequest{}, stream) }()

	waitFor(t, func() bool { return len(stream.events()) == 1 })
	if first := stream.events()[0]; first.Status != "active" || first.SessionID != resp.Session.ID {
		t.Errorf("first event = %+v, want current active session", first)
	}

	if _, err := f.svc.EndSession(context.Background(), "u1", resp.Session.ID, "bye"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(stream.events()) == 2 })
	if second := stream.events()[1]; second.Status != "expired" || second.Cause != "sign_out" || second.Reason != "bye" {
		t.Errorf("second event = %+v", second)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WatchSession returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WatchSession did not return after cancel")
	}
	if n := len(stream.events()); n != 2 {
		t.Errorf("events = %d, want no duplicates", n)
	}
}

func TestWatchSession_SendErrorEndsStream(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.startSession(t, "u1")
	boom := errors.New("transport closed")
	err := f.srv.WatchSession(&continuousauthv1.WatchSessionRequest{}, &fakeWatchStream{ctx: ctx, sendErr: boom})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
