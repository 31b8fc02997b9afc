package scoring

import (
	"math"

	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
)

// #region score-set

// ScoreSet holds the three running skill scores, each in [0,100].
// The overall score is derived on read and never stored.
type ScoreSet struct {
	ClaimingValue          float64 `json:"claiming_value"`
	CreatingValue          float64 `json:"creating_value"`
	RelationshipManagement float64 `json:"relationship_management"`
}

// Overall returns the arithmetic mean of the three dimensions.
func (s ScoreSet) Overall() float64 {
	return (s.ClaimingValue + s.CreatingValue + s.RelationshipManagement) / 3
}

// Get returns the score for d. Unscored dimensions return 0.
func (s ScoreSet) Get(d rules.Dimension) float64 {
	switch d {
	case rules.ClaimingValue:
		return s.ClaimingValue
	case rules.CreatingValue:
		return s.CreatingValue
	case rules.RelationshipManagement:
		return s.RelationshipManagement
	}
	return 0
}

// Add returns s with delta added to d. Unscored dimensions are ignored.
func (s ScoreSet) Add(d rules.Dimension, delta float64) ScoreSet {
	switch d {
	case rules.ClaimingValue:
		s.ClaimingValue += delta
	case rules.CreatingValue:
		s.CreatingValue += delta
	case rules.RelationshipManagement:
		s.RelationshipManagement += delta
	}
	return s
}

// Clamp restricts every dimension to [0,100]. NaN clamps to 0.
func (s ScoreSet) Clamp() ScoreSet {
	return ScoreSet{
		ClaimingValue:          clamp100(s.ClaimingValue),
		CreatingValue:          clamp100(s.CreatingValue),
		RelationshipManagement: clamp100(s.RelationshipManagement),
	}
}

// Valid reports whether every dimension is a finite number in [0,100].
func (s ScoreSet) Valid() bool {
	for _, d := range rules.ScoredDimensions {
		v := s.Get(d)
		if math.IsNaN(v) || v < 0 || v > 100 {
			return false
		}
	}
	return true
}

func clamp100(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// #endregion score-set

// #region feedback

// FeedbackEvent is one advisory coaching message. The log is truncated and
// never authoritative.
type FeedbackEvent struct {
	Severity  rules.Severity  `json:"severity"`
	Dimension rules.Dimension `json:"dimension"`
	Message   string          `json:"message"`
	TurnIndex int             `json:"turn_index"`
	Tip       string          `json:"tip,omitempty"`
}

// #endregion feedback
