// Package continuousauthv1 defines the wire messages and gRPC service for continuous
// behavioral authentication. Messages are JSON-encoded by Codec.
package continuousauthv1

import "time"

// InteractionEvent is one raw input event reported by a client.
type InteractionEvent struct {
	// Type is key_down, key_up, pointer_move, pointer_click, touch or scroll.
	Type string    `json:"type"`
	Key  string    `json:"key,omitempty"`
	X    float64   `json:"x,omitempty"`
	Y    float64   `json:"y,omitempty"`
	At   time.Time `json:"at"`
}

type Baseline struct {
	AvgHoldMs      float64   `json:"avg_hold_ms"`
	WPM            float64   `json:"wpm"`
	BackspaceCount int       `json:"backspace_count"`
	SampleCount    int       `json:"sample_count"`
	EnrolledAt     time.Time `json:"enrolled_at"`
}

type Snapshot struct {
	TypingSpeedWPM       float64 `json:"typing_speed_wpm"`
	BackspaceCount       int     `json:"backspace_count"`
	AvgKeyHoldDurationMs float64 `json:"avg_key_hold_duration_ms"`
	SampleCount          int     `json:"sample_count"`
	PointerSamples       int     `json:"pointer_samples"`
}

type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"`
	Baseline  Baseline   `json:"baseline"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
	Cause     string     `json:"cause,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// SessionEvent is streamed by WatchSession.
type SessionEvent struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Cause     string    `json:"cause,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

type StartEnrollmentRequest struct {
	UserID string `json:"user_id"`
}

type StartEnrollmentResponse struct {
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
}

type RecordEnrollmentEventsRequest struct {
	UserID string             `json:"user_id"`
	Events []InteractionEvent `json:"events"`
}

// RecordEventsResponse reports how many events were accepted; invalid events are rejected individually.
type RecordEventsResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

type CompleteEnrollmentRequest struct {
	UserID string `json:"user_id"`
}

type CompleteEnrollmentResponse struct {
	Baseline  Baseline  `json:"baseline"`
	Snapshot  Snapshot  `json:"snapshot"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

type StartSessionRequest struct {
	UserID string `json:"user_id"`
}

type StartSessionResponse struct {
	Session     Session   `json:"session"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

type RecordEventsRequest struct {
	Events []InteractionEvent `json:"events"`
}

type GetSnapshotRequest struct{}

type GetSnapshotResponse struct {
	Snapshot Snapshot `json:"snapshot"`
}

type GetSessionRequest struct{}

type GetSessionResponse struct {
	Session Session `json:"session"`
}

type WatchSessionRequest struct{}

type EndSessionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type EndSessionResponse struct {
	Session Session `json:"session"`
}
