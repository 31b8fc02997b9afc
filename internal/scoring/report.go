package scoring

import (
	"math"

	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
)

// #region report

// Report is the end-of-session assessment. Scores is authoritative; the
// remaining fields are derived from it and the session counters.
type Report struct {
	Scores              ScoreSet        `json:"scores"`
	Overall             float64         `json:"overall"`
	DetectedTactics     []rules.Tactic  `json:"detected_tactics"`
	ConcessionsGiven    int             `json:"concessions_given"`
	ConcessionsReceived int             `json:"concessions_received"`
	TurnCount           int             `json:"turn_count"`
	FinalPhase          phase.Phase     `json:"final_phase"`
	TrustLevel          float64         `json:"trust_level"`
	Level               string          `json:"level"`
	Consistency         float64         `json:"consistency"`
	Balance             float64         `json:"balance"`
	Strongest           rules.Dimension `json:"strongest"`
	Weakest             rules.Dimension `json:"weakest"`
	Tips                []string        `json:"tips,omitempty"`
}

// Summary carries the session counters a report is built from.
type Summary struct {
	Scores              ScoreSet
	DetectedTactics     []rules.Tactic
	ConcessionsGiven    int
	ConcessionsReceived int
	TurnCount           int
	FinalPhase          phase.Phase
	TrustLevel          float64
	Tips                []string
}

// NewReport derives a Report from a session summary.
func NewReport(s Summary) Report {
	tactics := s.DetectedTactics
	if tactics == nil {
		tactics = []rules.Tactic{}
	}
	strongest, weakest := Extremes(s.Scores)
	overall := s.Scores.Overall()
	return Report{
		Scores:              s.Scores,
		Overall:             overall,
		DetectedTactics:     tactics,
		ConcessionsGiven:    s.ConcessionsGiven,
		ConcessionsReceived: s.ConcessionsReceived,
		TurnCount:           s.TurnCount,
		FinalPhase:          s.FinalPhase,
		TrustLevel:          s.TrustLevel,
		Level:               Level(overall),
		Consistency:         Consistency(s.Scores),
		Balance:             Balance(s.Scores),
		Strongest:           strongest,
		Weakest:             weakest,
		Tips:                s.Tips,
	}
}

// #endregion report

// #region rubric

// Level maps an overall score to a performance band.
func Level(overall float64) string {
	switch {
	case overall >= 90:
		return "expert"
	case overall >= 80:
		return "advanced"
	case overall >= 70:
		return "proficient"
	case overall >= 60:
		return "developing"
	}
	return "foundational"
}

// Consistency is max(0, 1 - stddev/25) over the three dimensions.
func Consistency(s ScoreSet) float64 {
	mean := s.Overall()
	var variance float64
	for _, d := range rules.ScoredDimensions {
		diff := s.Get(d) - mean
		variance += diff * diff
	}
	stddev := math.Sqrt(variance / float64(len(rules.ScoredDimensions)))
	return math.Max(0, 1-stddev/25)
}

// Balance is max(0, 1 - range/100) over the three dimensions.
func Balance(s ScoreSet) float64 {
	hi, lo := Extremes(s)
	return math.Max(0, 1-(s.Get(hi)-s.Get(lo))/100)
}

// Extremes returns the strongest and weakest dimensions. Ties resolve to the
// earlier dimension in report order.
func Extremes(s ScoreSet) (strongest, weakest rules.Dimension) {
	strongest, weakest = rules.ScoredDimensions[0], rules.ScoredDimensions[0]
	for _, d := range rules.ScoredDimensions[1:] {
		if s.Get(d) > s.Get(strongest) {
			strongest = d
		}
		if s.Get(d) < s.Get(weakest) {
			weakest = d
		}
	}
	return strongest, weakest
}

// #endregion rubric
