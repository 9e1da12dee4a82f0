package capture

import "time"

// EventType identifies a raw interaction event.
type EventType string

const (
	EventKeyDown      EventType = "key_down"
	EventKeyUp        EventType = "key_up"
	EventPointerMove  EventType = "pointer_move"
	EventPointerClick EventType = "pointer_click"
	EventTouch        EventType = "touch"
	EventScroll       EventType = "scroll"
)

// Event is one raw interaction event as reported by the client. Key uses the browser
// KeyboardEvent.key naming ("a", "Backspace", "Enter", " ", "Shift"). A zero At is stamped with
// the receiver's clock.
type Event struct {
	Type EventType `json:"type"`
	Key  string    `json:"key,omitempty"`
	X    float64   `json:"x,omitempty"`
	Y    float64   `json:"y,omitempty"`
	At   time.Time `json:"at"`
}

// Valid reports whether the event type is one the service understands.
func (e Event) Valid() bool {
	switch e.Type {
	case EventKeyDown, EventKeyUp:
		return e.Key != ""
	case EventPointerMove, EventPointerClick, EventTouch, EventScroll:
		return true
	default:
		return false
	}
}

// IsActivity reports whether the event counts as user activity for idle tracking.
func (e Event) IsActivity() bool {
	switch e.Type {
	case EventPointerMove, EventKeyDown, EventTouch, EventScroll:
		return true
	default:
		return false
	}
}
