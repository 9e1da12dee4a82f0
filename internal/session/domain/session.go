package domain

import (
	"time"

	behavior "continuous-auth/backend/internal/behavior/domain"
)

// Status is the lifecycle state of a session. Expired is terminal.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// Cause records why a session expired.
type Cause string

const (
	CauseAnomaly  Cause = "anomaly"
	CauseIdle     Cause = "idle"
	CauseSignOut  Cause = "sign_out"
	CauseExternal Cause = "external"
)

// Session is the trusted state of one user identity. Callers only ever hold copies; the
// registry owns the live record.
type Session struct {
	ID        string
	UserID    string
	Status    Status
	Baseline  behavior.Baseline
	CreatedAt time.Time
	ExpiredAt time.Time // zero while active
	Cause     Cause
	Reason    string
}

// Active reports whether the session is still trusted.
func (s Session) Active() bool {
	return s.Status == StatusActive
}

// Event is delivered to subscribers on every transition.
type Event struct {
	UserID    string
	SessionID string
	Status    Status
	Cause     Cause  // empty for activation
	Reason    string // empty for activation
	At        time.Time
}
