package domain

import (
	"encoding/json"
	"time"
)

// Event types emitted by the session layer and the gRPC interceptor.
const (
	EventSessionActive  = "session_active"
	EventSessionExpired = "session_expired"
	EventVerdictAnomaly = "verdict_anomaly"
	EventGRPCRequest    = "grpc_request"
)

// Event is one telemetry record. It is serialized as JSON on the Kafka topic and consumed by
// the Loki worker, so field names are part of the wire format.
type Event struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
