package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	continuousauthv1 "continuous-auth/backend/api/continuousauth/v1"
	continuousauthhandler "continuous-auth/backend/internal/continuousauth/handler"
	healthhandler "continuous-auth/backend/internal/health/handler"
	"continuous-auth/backend/internal/logger"
	"continuous-auth/backend/internal/security"
	"continuous-auth/backend/internal/server/interceptors"
	"continuous-auth/backend/internal/telemetry"
)

const healthListMethod = "/grpc.health.v1.Health/List"

// PublicMethods are callable without a Bearer token. Enrollment and session start sit behind
// the external authentication layer that fronts this service.
var PublicMethods = map[string]bool{
	continuousauthv1.ContinuousAuthService_StartEnrollment_FullMethodName:        true,
	continuousauthv1.ContinuousAuthService_RecordEnrollmentEvents_FullMethodName: true,
	continuousauthv1.ContinuousAuthService_CompleteEnrollment_FullMethodName:     true,
	continuousauthv1.ContinuousAuthService_StartSession_FullMethodName:           true,
	healthpb.Health_Check_FullMethodName:                                         true,
	healthpb.Health_Watch_FullMethodName:                                         true,
	healthListMethod:                                                             true,
}

// telemetrySkipMethods are not reported as grpc_request events.
var telemetrySkipMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
	healthListMethod:                     true,
}

// Deps holds the dependencies of the gRPC services.
type Deps struct {
	// ContinuousAuth backs ContinuousAuthService.
	ContinuousAuth continuousauthhandler.ContinuousAuth
	// Tokens signs session tokens and validates Bearer tokens. If nil, StartSession returns no token
	// and the auth interceptors are not installed.
	Tokens *security.TokenProvider
	// SessionValidator rejects tokens whose session was replaced. Optional.
	SessionValidator interceptors.SessionValidator
	// Emitter receives grpc_request events. If nil, requests are not reported.
	Emitter telemetry.EventEmitter
	// HealthPinger is used by Health for readiness (baseline store). If nil, the check is skipped.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used by Health for readiness (OPA classifier). If nil, the check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
	Logger              *logger.Logger
}

// ServerOptions returns the codec, interceptor chain and OpenTelemetry stats handler the
// services expect.
func ServerOptions(deps Deps) []grpc.ServerOption {
	unary := []grpc.UnaryServerInterceptor{}
	stream := []grpc.StreamServerInterceptor{}
	if deps.Tokens != nil {
		unary = append(unary, interceptors.AuthUnary(deps.Tokens, PublicMethods, deps.SessionValidator))
		stream = append(stream, interceptors.AuthStream(deps.Tokens, PublicMethods, deps.SessionValidator))
	}
	unary = append(unary, interceptors.TelemetryUnary(deps.Emitter, telemetrySkipMethods))
	stream = append(stream, interceptors.TelemetryStream(deps.Emitter, telemetrySkipMethods))
	return []grpc.ServerOption{
		grpc.ForceServerCodec(continuousauthv1.Codec{}),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}
}

// RegisterServices registers all gRPC services with the given server.
//
// Service → handler mapping:
//   - ContinuousAuthService → internal/continuousauth/handler
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	continuousauthv1.RegisterContinuousAuthServiceServer(s, continuousauthhandler.NewServer(deps.ContinuousAuth, deps.Tokens, deps.Logger))
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker, deps.Logger, continuousauthv1.ServiceName))
}
