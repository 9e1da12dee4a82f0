package interceptors

import (
	"context"
	"testing"
	"time"

	"continuous-auth/backend/internal/security"
)

func TestIdentityFrom(t *testing.T) {
	want := security.Identity{UserID: "user-1", SessionID: "session-1", ExpiresAt: time.Unix(1700000000, 0)}
	got, ok := IdentityFrom(WithIdentity(context.Background(), want))
	if !ok || got != want {
		t.Errorf("IdentityFrom = %+v, %v; want %+v, true", got, ok, want)
	}
}

func TestIdentityFrom_Missing(t *testing.T) {
	if id, ok := IdentityFrom(context.Background()); ok || id.UserID != "" {
		t.Errorf("IdentityFrom = %+v, %v; want zero, false", id, ok)
	}
	if _, ok := IdentityFrom(WithIdentity(context.Background(), security.Identity{})); ok {
		t.Error("an identity without a user must not count as authenticated")
	}
}
