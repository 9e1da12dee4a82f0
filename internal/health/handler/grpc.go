package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"continuous-auth/backend/internal/logger"
)

// Pinger reports whether the baseline store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker reports whether the anomaly classifier can evaluate (e.g. the OPA policy).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements grpc.health.v1.Health for readiness and liveness probes.
// It answers for the whole server ("") and for each name in services.
type Server struct {
	healthpb.UnimplementedHealthServer

	pinger   Pinger
	checker  PolicyChecker
	services map[string]bool
	log      *logger.Logger
}

// NewServer returns a health server. pinger and checker may be nil; nil checks are skipped.
func NewServer(pinger Pinger, checker PolicyChecker, log *logger.Logger, services ...string) *Server {
	known := map[string]bool{"": true}
	for _, s := range services {
		known[s] = true
	}
	return &Server{pinger: pinger, checker: checker, services: known, log: logger.OrNop(log)}
}

// Check returns SERVING when every configured dependency check passes and NOT_SERVING otherwise.
// Dependency failures never surface as gRPC errors; unknown services return NotFound.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if !s.services[req.GetService()] {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	return &healthpb.HealthCheckResponse{Status: s.status(ctx)}, nil
}

func (s *Server) status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			s.log.Warn("health: baseline store ping failed", "error", err)
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	if s.checker != nil {
		if err := s.checker.HealthCheck(ctx); err != nil {
			s.log.Warn("health: classifier check failed", "error", err)
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return healthpb.HealthCheckResponse_SERVING
}
