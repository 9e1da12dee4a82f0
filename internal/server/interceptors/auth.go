package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"continuous-auth/backend/internal/security"
)

const bearerPrefix = "bearer "

// SessionValidator reports whether sessionID is still the user's current session.
// Returning false rejects the call with Unauthenticated.
type SessionValidator func(ctx context.Context, userID, sessionID string) (bool, error)

var errUnauthenticated = status.Error(codes.Unauthenticated, "missing or invalid authorization")

// AuthUnary returns a unary server interceptor that validates the Bearer session token
// from gRPC metadata and sets user_id and session_id in context for protected RPCs.
// publicMethods is the set of full method names that do not require a Bearer token
// (e.g. StartEnrollment, StartSession, Health/Check). validate may be nil.
func AuthUnary(tokens *security.TokenProvider, publicMethods map[string]bool, validate SessionValidator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, err := authenticate(ctx, tokens, publicMethods[info.FullMethod], validate)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// AuthStream is the streaming counterpart of AuthUnary.
func AuthStream(tokens *security.TokenProvider, publicMethods map[string]bool, validate SessionValidator) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), tokens, publicMethods[info.FullMethod], validate)
		if err != nil {
			return err
		}
		return handler(srv, &identityStream{ServerStream: ss, ctx: ctx})
	}
}

func authenticate(ctx context.Context, tokens *security.TokenProvider, public bool, validate SessionValidator) (context.Context, error) {
	token := extractBearer(ctx)
	if token == "" {
		if public {
			return ctx, nil
		}
		return nil, errUnauthenticated
	}

	id, err := tokens.Validate(token)
	if err != nil {
		if public {
			return ctx, nil
		}
		return nil, errUnauthenticated
	}

	if validate != nil && !public {
		ok, err := validate(ctx, id.UserID, id.SessionID)
		if err != nil {
			return nil, status.Error(codes.Internal, "session validation failed")
		}
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "session is no longer current")
		}
	}
	return WithIdentity(ctx, id), nil
}

// identityStream overrides Context so stream handlers see the authenticated identity.
type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context {
	return s.ctx
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
