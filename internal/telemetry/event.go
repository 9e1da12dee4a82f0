package telemetry

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"continuous-auth/backend/internal/telemetry/domain"
)

// NewEvent builds an event with a fresh ID. metadata is JSON-encoded when non-nil; an encoding
// failure leaves Metadata empty rather than dropping the event.
func NewEvent(eventType, source, userID, sessionID string, metadata map[string]any, at time.Time) *domain.Event {
	ev := &domain.Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		EventType: eventType,
		Source:    source,
		CreatedAt: at.UTC(),
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			ev.Metadata = raw
		}
	}
	return ev
}
