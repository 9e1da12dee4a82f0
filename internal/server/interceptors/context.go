package interceptors

import (
	"context"

	"continuous-auth/backend/internal/security"
)

type identityKey struct{}

// WithIdentity returns a context carrying the identity proven by a session token.
func WithIdentity(ctx context.Context, id security.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity. ok is false for unauthenticated calls.
func IdentityFrom(ctx context.Context) (id security.Identity, ok bool) {
	id, ok = ctx.Value(identityKey{}).(security.Identity)
	return id, ok && id.UserID != ""
}
