// Package classifier compares a live behavior snapshot with an enrolled baseline and decides
// whether the session still looks like its owner.
package classifier

import (
	"context"
	"fmt"
	"math"
	"strings"

	"continuous-auth/backend/internal/behavior/domain"
)

const (
	// DefaultThreshold is the relative deviation above which a dimension is anomalous.
	DefaultThreshold = 0.60
	// DefaultMinSamples is the typing sample count below which no anomaly is reported.
	DefaultMinSamples = 6
	// epsilon keeps relative deviation finite when a baseline dimension is zero.
	epsilon = 1e-6
)

// Classifier decides a verdict for one snapshot. An error means "no verdict"; callers skip the
// analysis cycle rather than acting on it.
type Classifier interface {
	Classify(ctx context.Context, snapshot domain.Snapshot, baseline domain.Baseline) (domain.Verdict, error)
}

// Params holds the tunables shared by the classifier strategies.
type Params struct {
	Threshold  float64
	MinSamples int
}

// DefaultParams returns the reference threshold and minimum sample count.
func DefaultParams() Params {
	return Params{Threshold: DefaultThreshold, MinSamples: DefaultMinSamples}
}

func (p Params) normalized() Params {
	if p.Threshold <= 0 {
		p.Threshold = DefaultThreshold
	}
	if p.MinSamples <= 0 {
		p.MinSamples = DefaultMinSamples
	}
	return p
}

// Dimension names a compared metric.
type Dimension string

const (
	DimensionWPM       Dimension = "wpm"
	DimensionHold      Dimension = "hold"
	DimensionBackspace Dimension = "backspace"
)

// dimensions is the fixed reporting order.
var dimensions = []Dimension{DimensionWPM, DimensionHold, DimensionBackspace}

var dimensionLabels = map[Dimension]string{
	DimensionWPM:       "typing speed",
	DimensionHold:      "key hold time",
	DimensionBackspace: "backspace usage",
}

// Label is the human-readable name of d.
func (d Dimension) Label() string {
	if l, ok := dimensionLabels[d]; ok {
		return l
	}
	return string(d)
}

// Deviations returns |live - base| / max(base, ε) for every dimension.
func Deviations(s domain.Snapshot, b domain.Baseline) map[Dimension]float64 {
	return map[Dimension]float64{
		DimensionWPM:       relDeviation(s.TypingSpeedWPM, b.WPM),
		DimensionHold:      relDeviation(s.AvgKeyHoldDurationMs, b.AvgHoldMs),
		DimensionBackspace: relDeviation(float64(s.BackspaceCount), float64(b.BackspaceCount)),
	}
}

func relDeviation(live, base float64) float64 {
	return math.Abs(live-base) / math.Max(base, epsilon)
}

// Evaluate applies the reference rule: anomaly when the snapshot has at least MinSamples typing
// samples and any dimension deviates by more than Threshold.
func Evaluate(s domain.Snapshot, b domain.Baseline, p Params) domain.Verdict {
	p = p.normalized()
	if s.SampleCount < p.MinSamples {
		return domain.Verdict{Status: domain.VerdictNormal}
	}
	devs := Deviations(s, b)
	var exceeded []Dimension
	for _, d := range dimensions {
		if devs[d] > p.Threshold {
			exceeded = append(exceeded, d)
		}
	}
	if len(exceeded) == 0 {
		return domain.Verdict{Status: domain.VerdictNormal}
	}
	return domain.Verdict{Status: domain.VerdictAnomaly, Reason: Describe(exceeded, devs)}
}

// Describe renders the exceeded dimensions for display, e.g.
// "unusual typing speed (69% from baseline)".
func Describe(exceeded []Dimension, devs map[Dimension]float64) string {
	parts := make([]string, 0, len(exceeded))
	for _, d := range exceeded {
		parts = append(parts, fmt.Sprintf("unusual %s (%.0f%% from baseline)", d.Label(), devs[d]*100))
	}
	return strings.Join(parts, "; ")
}

// Threshold is the reference Classifier. It never returns an error.
type Threshold struct {
	params Params
}

var _ Classifier = (*Threshold)(nil)

// NewThreshold returns the reference classifier with p (zero fields take defaults).
func NewThreshold(p Params) *Threshold {
	return &Threshold{params: p.normalized()}
}

// Params returns the effective parameters.
func (c *Threshold) Params() Params {
	return c.params
}

// Classify implements Classifier.
func (c *Threshold) Classify(_ context.Context, s domain.Snapshot, b domain.Baseline) (domain.Verdict, error) {
	return Evaluate(s, b, c.params), nil
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, s domain.Snapshot, b domain.Baseline) (domain.Verdict, error)

// Classify implements Classifier.
func (f Func) Classify(ctx context.Context, s domain.Snapshot, b domain.Baseline) (domain.Verdict, error) {
	return f(ctx, s, b)
}
