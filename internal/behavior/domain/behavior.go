// Package domain holds the behavioral telemetry types shared by capture, classification and
// baseline persistence.
package domain

import "time"

// TypingSample is one completed key press/release pair.
type TypingSample struct {
	Key       string    `json:"key"`
	PressedAt time.Time `json:"pressed_at"`
	HoldMs    float64   `json:"hold_ms"`
}

// PointerSample is a pointer position recorded on move (rate-limited) or click.
type PointerSample struct {
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	At    time.Time `json:"at"`
	Click bool      `json:"click,omitempty"`
}

// Snapshot is the aggregate of interaction metrics accumulated so far by one capture.
type Snapshot struct {
	TypingSpeedWPM       float64         `json:"typing_speed_wpm"`
	BackspaceCount       int             `json:"backspace_count"`
	AvgKeyHoldDurationMs float64         `json:"avg_key_hold_duration_ms"`
	SampleCount          int             `json:"sample_count"`
	RawHolds             []TypingSample  `json:"raw_holds"`
	PointerTrail         []PointerSample `json:"pointer_trail"`
}

// Baseline is a user's enrolled behavioral fingerprint.
type Baseline struct {
	AvgHoldMs      float64   `json:"avg_hold_ms"`
	WPM            float64   `json:"wpm"`
	BackspaceCount int       `json:"backspace_count"`
	SampleCount    int       `json:"sample_count"`
	EnrolledAt     time.Time `json:"enrolled_at"`
}

// BaselineFromSnapshot returns the baseline summary of a completed enrollment snapshot.
func BaselineFromSnapshot(s Snapshot, enrolledAt time.Time) Baseline {
	return Baseline{
		AvgHoldMs:      s.AvgKeyHoldDurationMs,
		WPM:            s.TypingSpeedWPM,
		BackspaceCount: s.BackspaceCount,
		SampleCount:    s.SampleCount,
		EnrolledAt:     enrolledAt,
	}
}

// VerdictStatus is the outcome of one analysis cycle.
type VerdictStatus string

const (
	VerdictNormal  VerdictStatus = "normal"
	VerdictAnomaly VerdictStatus = "anomaly"
)

// Verdict is the classifier output for one snapshot. Reason is set only for anomalies.
type Verdict struct {
	Status VerdictStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// IsAnomaly reports whether the verdict flags the snapshot as anomalous.
func (v Verdict) IsAnomaly() bool {
	return v.Status == VerdictAnomaly
}
