package eval

import (
	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
)

// #region eval-config
// EvalConfig holds thresholds for post-update validation.
type EvalConfig struct {
	MaxScoreSwing float64 // informational: warn if a dimension moves more than this in one turn
}

// DefaultEvalConfig returns the defaults. A single turn can legitimately
// stack several rules, so the swing check never blocks.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxScoreSwing: 60,
	}
}

// #endregion eval-config

// #region snapshot
// Snapshot is the slice of conversation state the harness validates.
type Snapshot struct {
	TurnCount  int
	Phase      phase.Phase
	TrustLevel float64
	Scores     scoring.ScoreSet
}

// #endregion snapshot

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-update validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
