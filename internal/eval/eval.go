package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
)

// #region eval-harness
// EvalHarness validates a state transition before it is committed.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks next against prev. A failed result means next must be discarded
// and prev kept.
func (h *EvalHarness) Run(prev, next Snapshot) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Score bounds, one metric per dimension
	for _, d := range rules.ScoredDimensions {
		v := next.Scores.Get(d)
		check("score_"+string(d), v, inRange(v, 0, 100),
			fmt.Sprintf("%s score %.2f outside [0,100]", d, v))
	}

	// 2. Trust bounds
	check("trust_level", next.TrustLevel, inRange(next.TrustLevel, 0, 1),
		fmt.Sprintf("trust %.4f outside [0,1]", next.TrustLevel))

	// 3. Phase never retreats
	check("phase_order", float64(next.Phase), next.Phase >= prev.Phase && next.Phase <= phase.Closing,
		fmt.Sprintf("phase moved from %s to %s", prev.Phase, next.Phase))

	// 4. Exactly one turn recorded
	check("turn_count", float64(next.TurnCount), next.TurnCount == prev.TurnCount+1,
		fmt.Sprintf("turn count %d after %d", next.TurnCount, prev.TurnCount))

	// 5. Score swing: informational only, does not fail
	var swing float64
	for _, d := range rules.ScoredDimensions {
		swing = math.Max(swing, math.Abs(next.Scores.Get(d)-prev.Scores.Get(d)))
	}
	metrics = append(metrics, EvalMetric{
		Name:  "score_swing",
		Value: swing,
		Pass:  swing <= h.config.MaxScoreSwing,
	})

	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
// inRange reports lo <= v <= hi for finite v.
func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// #endregion helpers
