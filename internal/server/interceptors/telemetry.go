package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"continuous-auth/backend/internal/telemetry"
	"continuous-auth/backend/internal/telemetry/domain"
)

const interceptorSource = "grpc_interceptor"

// TelemetryUnary returns a unary server interceptor that emits a grpc_request event after each RPC.
// Best-effort: failures are logged and do not fail the RPC. If emitter is nil, the interceptor no-ops.
// skipMethods is the set of full method names to not emit (e.g. Health/Check).
func TelemetryUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		telemetry.EmitAsync(emitter, requestEvent(ctx, info.FullMethod, err, start))
		return resp, err
	}
}

// TelemetryStream emits one grpc_request event when a stream ends.
func TelemetryStream(emitter telemetry.EventEmitter, skipMethods map[string]bool) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		if emitter == nil || skipMethods[info.FullMethod] {
			return err
		}
		telemetry.EmitAsync(emitter, requestEvent(ss.Context(), info.FullMethod, err, start))
		return err
	}
}

func requestEvent(ctx context.Context, fullMethod string, err error, start time.Time) *domain.Event {
	service, method := MethodName(fullMethod)
	id, _ := IdentityFrom(ctx)
	return telemetry.NewEvent(domain.EventGRPCRequest, interceptorSource, id.UserID, id.SessionID, map[string]any{
		"full_method": fullMethod,
		"service":     service,
		"method":      method,
		"status_code": status.Code(err).String(),
		"duration_ms": time.Since(start).Milliseconds(),
		"client_ip":   ClientIP(ctx),
	}, time.Now())
}
