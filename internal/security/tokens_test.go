package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestProvider(t *testing.T) *TokenProvider {
	t.Helper()
	p, err := NewEphemeralTokenProvider("test-issuer", "test-audience", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewEphemeralTokenProvider: %v", err)
	}
	return p
}

func TestTokenProvider_IssueAndValidate(t *testing.T) {
	p := newTestProvider(t)
	token, exp, err := p.IssueSession("u1", "s1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if token == "" {
		t.Fatal("token empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	id, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.UserID != "u1" || id.SessionID != "s1" {
		t.Errorf("identity = %+v", id)
	}
	if !id.ExpiresAt.Equal(exp.Truncate(time.Second)) {
		t.Errorf("ExpiresAt = %v, want %v", id.ExpiresAt, exp.Truncate(time.Second))
	}
}

func TestTokenProvider_ECDSA(t *testing.T) {
	privPEM, pubPEM := ecdsaPEMPair(t)
	signer, pub, err := LoadKeyPair(privPEM, pubPEM)
	if err != nil {
		t.Fatalf("LoadKeyPair: %v", err)
	}
	p, err := NewTokenProvider(signer, pub, "iss", "aud", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenProvider: %v", err)
	}
	token, _, err := p.IssueSession("u1", "s1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := p.Validate(token); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestTokenProvider_ValidateInvalid(t *testing.T) {
	p := newTestProvider(t)
	token, _, err := p.IssueSession("u1", "s1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	// Same key, different audience or clock.
	other := *p
	other.audience = "someone-else"

	expired := *p
	expired.nowF = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.IssueSession("u1", "s1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	noSession, _, err := p.IssueSession("u1", "")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	testCases := []struct {
		name     string
		provider *TokenProvider
		token    string
	}{
		{"garbage", p, "invalid-token"},
		{"tampered", p, token[:len(token)-4] + strings.Repeat("A", 4)},
		{"wrong audience", &other, token},
		{"expired", p, old},
		{"missing session id", p, noSession},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.provider.Validate(tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate: want ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewEphemeralTokenProvider(t *testing.T) {
	p, err := NewEphemeralTokenProvider("dev", "dev-api", time.Minute)
	if err != nil {
		t.Fatalf("NewEphemeralTokenProvider: %v", err)
	}
	token, _, err := p.IssueSession("user-1", "session-1")
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	id, err := p.Validate(token)
	if err != nil || id.UserID != "user-1" {
		t.Fatalf("Validate = %+v, %v", id, err)
	}

	other, err := NewEphemeralTokenProvider("dev", "dev-api", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Validate(token); err == nil {
		t.Error("a token from another ephemeral key must not validate")
	}
}
