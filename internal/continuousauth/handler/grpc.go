package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	continuousauthv1 "continuous-auth/backend/api/continuousauth/v1"
	"continuous-auth/backend/internal/behavior/capture"
	behavior "continuous-auth/backend/internal/behavior/domain"
	"continuous-auth/backend/internal/continuousauth/service"
	"continuous-auth/backend/internal/logger"
	"continuous-auth/backend/internal/security"
	"continuous-auth/backend/internal/server/interceptors"
	"continuous-auth/backend/internal/session/domain"
	"continuous-auth/backend/internal/session/registry"
)

// ContinuousAuth is the service surface the handler needs; *service.Service implements it.
type ContinuousAuth interface {
	StartEnrollment(ctx context.Context, userID string) (time.Time, error)
	RecordEnrollmentEvents(ctx context.Context, userID string, events []capture.Event) (int, int, error)
	CompleteEnrollment(ctx context.Context, userID string) (capture.Report, behavior.Baseline, error)
	StartSession(ctx context.Context, userID string) (domain.Session, error)
	RecordEvents(ctx context.Context, userID, sessionID string, events []capture.Event) (int, int, error)
	Snapshot(ctx context.Context, userID, sessionID string) (behavior.Snapshot, error)
	Session(userID string) (domain.Session, error)
	EndSession(ctx context.Context, userID, sessionID, reason string) (domain.Session, error)
	Watch(userID string, fn registry.Listener) (unsubscribe func())
}

var _ ContinuousAuth = (*service.Service)(nil)

// Server implements ContinuousAuthService.
// Proto: continuousauth/v1 → internal/continuousauth/handler.
type Server struct {
	continuousauthv1.UnimplementedContinuousAuthServiceServer
	svc    ContinuousAuth
	tokens *security.TokenProvider
	log    *logger.Logger
}

// NewServer returns a new ContinuousAuth gRPC server. tokens may be nil, in which case
// StartSession returns no access token.
func NewServer(svc ContinuousAuth, tokens *security.TokenProvider, log *logger.Logger) *Server {
	return &Server{svc: svc, tokens: tokens, log: logger.OrNop(log)}
}

// StartEnrollment begins a baseline capture for the user.
func (s *Server) StartEnrollment(ctx context.Context, req *continuousauthv1.StartEnrollmentRequest) (*continuousauthv1.StartEnrollmentResponse, error) {
	startedAt, err := s.svc.StartEnrollment(ctx, req.UserID)
	if err != nil {
		return nil, s.statusError(err)
	}
	return &continuousauthv1.StartEnrollmentResponse{UserID: req.UserID, StartedAt: startedAt}, nil
}

// RecordEnrollmentEvents feeds enrollment input.
func (s *Server) RecordEnrollmentEvents(ctx context.Context, req *continuousauthv1.RecordEnrollmentEventsRequest) (*continuousauthv1.RecordEventsResponse, error) {
	accepted, rejected, err := s.svc.RecordEnrollmentEvents(ctx, req.UserID, eventsFromProto(req.Events))
	if err != nil {
		return nil, s.statusError(err)
	}
	return &continuousauthv1.RecordEventsResponse{Accepted: accepted, Rejected: rejected}, nil
}

// CompleteEnrollment stores the captured baseline.
func (s *Server) CompleteEnrollment(ctx context.Context, req *continuousauthv1.CompleteEnrollmentRequest) (*continuousauthv1.CompleteEnrollmentResponse, error) {
	report, b, err := s.svc.CompleteEnrollment(ctx, req.UserID)
	if err != nil {
		return nil, s.statusError(err)
	}
	return &continuousauthv1.CompleteEnrollmentResponse{
		Baseline:  baselineToProto(b),
		Snapshot:  snapshotToProto(report.Snapshot),
		StartedAt: report.StartedAt,
		EndedAt:   report.EndedAt,
	}, nil
}

// StartSession is called after external authentication succeeded. It returns the new session
// and, when token signing is configured, the access token that binds later calls to it.
func (s *Server) StartSession(ctx context.Context, req *continuousauthv1.StartSessionRequest) (*continuousauthv1.StartSessionResponse, error) {
	sess, err := s.svc.StartSession(ctx, req.UserID)
	if err != nil {
		return nil, s.statusError(err)
	}
	resp := &continuousauthv1.StartSessionResponse{Session: sessionToProto(sess)}
	if s.tokens != nil {
		token, expiresAt, err := s.tokens.IssueSession(sess.UserID, sess.ID)
		if err != nil {
			s.log.Error("issue session token failed", "user_id", sess.UserID, "error", err)
			return nil, status.Error(codes.Internal, "failed to issue session token")
		}
		resp.AccessToken = token
		resp.ExpiresAt = expiresAt
	}
	return resp, nil
}

// RecordEvents feeds live input to the caller's session.
func (s *Server) RecordEvents(ctx context.Context, req *continuousauthv1.RecordEventsRequest) (*continuousauthv1.RecordEventsResponse, error) {
	userID, sessionID, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	accepted, rejected, err := s.svc.RecordEvents(ctx, userID, sessionID, eventsFromProto(req.Events))
	if err != nil {
		return nil, s.statusError(err)
	}
	return &continuousauthv1.RecordEventsResponse{Accepted: accepted, Rejected: rejected}, nil
}

// GetSnapshot returns the caller's live metrics.
func (s *Server) GetSnapshot(ctx context.Context, req *continuousauthv1.GetSnapshotRequest) (*continuousauthv1.GetSnapshotResponse, error) {
	userID, sessionID, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.svc.Snapshot(ctx, userID, sessionID)
	if err != nil {
		return nil, s.statusError(err)
	}
	return &continuousauthv1.GetSnapshotResponse{Snapshot: snapshotToProto(snap)}, nil
}

// GetSession returns the caller's session record.
func (s *Server) GetSession(ctx context.Context, req *continuousauthv1.GetSessionRequest) (*continuousauthv1.GetSessionResponse, error) {
	userID, sessionID, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := s.svc.Session(userID)
	if err != nil {
		return nil, s.statusError(err)
	}
	if sess.ID != sessionID {
		return nil, status.Error(codes.FailedPrecondition, "session was replaced")
	}
	return &continuousauthv1.GetSessionResponse{Session: sessionToProto(sess)}, nil
}

// EndSession signs the caller out.
func (s *Server) EndSession(ctx context.Context, req *continuousauthv1.EndSessionRequest) (*continuousauthv1.EndSessionResponse, error) {
	userID, sessionID, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := s.svc.EndSession(ctx, userID, sessionID, req.Reason)
	if err != nil {
		return nil, s.statusError(err)
	}
	return &continuousauthv1.EndSessionResponse{Session: sessionToProto(sess)}, nil
}

// WatchSession sends the user's current session status, then every later transition, until
// the client goes away.
func (s *Server) WatchSession(req *continuousauthv1.WatchSessionRequest, stream continuousauthv1.ContinuousAuthService_WatchSessionServer) error {
	ctx := stream.Context()
	userID, _, err := identity(ctx)
	if err != nil {
		return err
	}

	q := newEventQueue()
	unsubscribe := s.svc.Watch(userID, q.push)
	defer unsubscribe()

	var last *continuousauthv1.SessionEvent
	if sess, err := s.svc.Session(userID); err == nil {
		last = currentEvent(sess)
		if err := stream.Send(last); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.ready:
		}
		for _, ev := range q.drain() {
			out := eventToProto(ev)
			if last != nil && last.SessionID == out.SessionID && last.Status == out.Status {
				continue
			}
			if err := stream.Send(out); err != nil {
				return err
			}
			last = out
		}
	}
}

// eventQueue buffers registry events so listeners never block on a slow stream.
type eventQueue struct {
	mu     sync.Mutex
	events []domain.Event
	ready  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev domain.Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []domain.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out
}

func identity(ctx context.Context) (userID, sessionID string, err error) {
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return "", "", status.Error(codes.Unauthenticated, "missing identity")
	}
	return id.UserID, id.SessionID, nil
}

func (s *Server) statusError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidUser):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrNoBaseline):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrNotEnrolling),
		errors.Is(err, service.ErrInsufficientSamples),
		errors.Is(err, service.ErrNoSession):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	}
	s.log.Error("continuous-auth request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func eventsFromProto(in []continuousauthv1.InteractionEvent) []capture.Event {
	out := make([]capture.Event, len(in))
	for i, e := range in {
		out[i] = capture.Event{Type: capture.EventType(e.Type), Key: e.Key, X: e.X, Y: e.Y, At: e.At}
	}
	return out
}

func baselineToProto(b behavior.Baseline) continuousauthv1.Baseline {
	return continuousauthv1.Baseline{
		AvgHoldMs:      b.AvgHoldMs,
		WPM:            b.WPM,
		BackspaceCount: b.BackspaceCount,
		SampleCount:    b.SampleCount,
		EnrolledAt:     b.EnrolledAt,
	}
}

func snapshotToProto(s behavior.Snapshot) continuousauthv1.Snapshot {
	return continuousauthv1.Snapshot{
		TypingSpeedWPM:       s.TypingSpeedWPM,
		BackspaceCount:       s.BackspaceCount,
		AvgKeyHoldDurationMs: s.AvgKeyHoldDurationMs,
		SampleCount:          s.SampleCount,
		PointerSamples:       len(s.PointerTrail),
	}
}

func sessionToProto(s domain.Session) continuousauthv1.Session {
	out := continuousauthv1.Session{
		ID:        s.ID,
		UserID:    s.UserID,
		Status:    string(s.Status),
		Baseline:  baselineToProto(s.Baseline),
		CreatedAt: s.CreatedAt,
		Cause:     string(s.Cause),
		Reason:    s.Reason,
	}
	if !s.ExpiredAt.IsZero() {
		at := s.ExpiredAt
		out.ExpiredAt = &at
	}
	return out
}

func currentEvent(s domain.Session) *continuousauthv1.SessionEvent {
	at := s.CreatedAt
	if !s.ExpiredAt.IsZero() {
		at = s.ExpiredAt
	}
	return &continuousauthv1.SessionEvent{
		UserID:    s.UserID,
		SessionID: s.ID,
		Status:    string(s.Status),
		Cause:     string(s.Cause),
		Reason:    s.Reason,
		At:        at,
	}
}

func eventToProto(ev domain.Event) *continuousauthv1.SessionEvent {
	return &continuousauthv1.SessionEvent{
		UserID:    ev.UserID,
		SessionID: ev.SessionID,
		Status:    string(ev.Status),
		Cause:     string(ev.Cause),
		Reason:    ev.Reason,
		At:        ev.At,
	}
}
