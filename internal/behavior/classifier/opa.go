package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"

	"continuous-auth/backend/internal/behavior/domain"
)

const opaQuery = "data.continuousauth.anomaly.result"

// DefaultPolicy is the Rego form of the reference threshold rule. Replacement policies must
// declare package continuousauth.anomaly and define result = {"anomaly": bool, "exceeded": set}.
const DefaultPolicy = `package continuousauth.anomaly

default anomaly := false

eps := 0.000001

deviation(live, base) := d if {
	d := abs(live - base) / max([base, eps])
}

deviations := {
	"wpm": deviation(input.snapshot.wpm, input.baseline.wpm),
	"hold": deviation(input.snapshot.avg_hold_ms, input.baseline.avg_hold_ms),
	"backspace": deviation(input.snapshot.backspace_count, input.baseline.backspace_count),
}

exceeded contains dim if {
	some dim, dev in deviations
	dev > input.params.threshold
}

anomaly if {
	input.snapshot.sample_count >= input.params.min_samples
	count(exceeded) > 0
}

result := {"anomaly": anomaly, "exceeded": exceeded}
`

// OPA classifies snapshots by evaluating a Rego policy. Policy evaluation errors are returned
// to the caller, which treats them as "no verdict".
type OPA struct {
	params Params
	query  rego.PreparedEvalQuery
}

var _ Classifier = (*OPA)(nil)

// NewOPA compiles policy (DefaultPolicy when empty) and returns a ready classifier.
func NewOPA(ctx context.Context, policy string, p Params) (*OPA, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	q, err := rego.New(
		rego.Query(opaQuery),
		rego.Module("anomaly.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile anomaly policy: %w", err)
	}
	return &OPA{params: p.normalized(), query: q}, nil
}

// Classify implements Classifier.
func (c *OPA) Classify(ctx context.Context, s domain.Snapshot, b domain.Baseline) (domain.Verdict, error) {
	rs, err := c.query.Eval(ctx, rego.EvalInput(c.input(s, b)))
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("eval anomaly policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return domain.Verdict{}, errors.New("anomaly policy returned no result")
	}
	result, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return domain.Verdict{}, fmt.Errorf("anomaly policy result has type %T", rs[0].Expressions[0].Value)
	}
	anomaly, _ := result["anomaly"].(bool)
	if !anomaly {
		return domain.Verdict{Status: domain.VerdictNormal}, nil
	}

	flagged := make(map[Dimension]bool)
	if list, ok := result["exceeded"].([]interface{}); ok {
		for _, v := range list {
			if name, ok := v.(string); ok {
				flagged[Dimension(name)] = true
			}
		}
	}
	var exceeded []Dimension
	for _, d := range dimensions {
		if flagged[d] {
			exceeded = append(exceeded, d)
		}
	}
	reason := "behavior deviates from baseline"
	if len(exceeded) > 0 {
		reason = Describe(exceeded, Deviations(s, b))
	}
	return domain.Verdict{Status: domain.VerdictAnomaly, Reason: reason}, nil
}

// HealthCheck evaluates the prepared policy against a neutral input.
func (c *OPA) HealthCheck(ctx context.Context) error {
	_, err := c.Classify(ctx, domain.Snapshot{}, domain.Baseline{})
	return err
}

func (c *OPA) input(s domain.Snapshot, b domain.Baseline) map[string]interface{} {
	return map[string]interface{}{
		"snapshot": map[string]interface{}{
			"wpm":             s.TypingSpeedWPM,
			"avg_hold_ms":     s.AvgKeyHoldDurationMs,
			"backspace_count": s.BackspaceCount,
			"sample_count":    s.SampleCount,
		},
		"baseline": map[string]interface{}{
			"wpm":             b.WPM,
			"avg_hold_ms":     b.AvgHoldMs,
			"backspace_count": b.BackspaceCount,
		},
		"params": map[string]interface{}{
			"threshold":   c.params.Threshold,
			"min_samples": c.params.MinSamples,
		},
	}
}
