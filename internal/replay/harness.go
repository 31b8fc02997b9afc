package replay

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
	"github.com/danielpatrickdp/negotiation-coach/internal/logging"
	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
)

// Actions recorded per replayed turn.
const (
	ActionApplied  = "applied"
	ActionRejected = "rejected"
)

// #region types

// ReplayResult captures the outcome of replaying one turn through the engine.
type ReplayResult struct {
	Sequence int
	Speaker  conversation.Role
	Action   string // "applied" | "rejected"
	Reason   string
	Phase    phase.Phase
	Scores   scoring.ScoreSet
	Trust    float64
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns int
	Applied    int
	Rejected   int
	FinalState engine.State
	Report     scoring.Report
}

// Expectation is the reference outcome for one turn. Empty fields are not checked.
type Expectation struct {
	Sequence int    `json:"sequence_index"`
	Phase    string `json:"phase,omitempty"`
	Action   string `json:"action,omitempty"`
}

// Comparison is one row of a replay comparison table.
type Comparison struct {
	Label    string
	Expected string
	Replayed string
	Match    bool
}

// #endregion types

// #region replay

// Replay runs turns through eng from a fresh state. It is the batch path, so
// the results are what a live session would have produced turn by turn.
func Replay(eng *engine.Engine, turns []conversation.Turn) ([]ReplayResult, engine.State) {
	st, anns := eng.Run(turns)
	results := make([]ReplayResult, len(anns))
	for i, a := range anns {
		action := ActionApplied
		if !a.Result.Applied {
			action = ActionRejected
		}
		results[i] = ReplayResult{
			Sequence: a.Turn.SequenceIndex,
			Speaker:  a.Turn.Speaker,
			Action:   action,
			Reason:   a.Result.Diagnostic,
			Phase:    a.Phase,
			Scores:   a.Scores,
			Trust:    a.Trust,
		}
	}
	return results, st
}

// Summarize computes aggregate stats from replay results.
func Summarize(eng *engine.Engine, results []ReplayResult, final engine.State) ReplaySummary {
	s := ReplaySummary{
		TotalTurns: len(results),
		FinalState: final,
		Report:     eng.Report(final),
	}
	for _, r := range results {
		switch r.Action {
		case ActionApplied:
			s.Applied++
		case ActionRejected:
			s.Rejected++
		}
	}
	return s
}

// #endregion replay

// #region compare

// Compare lines up expectations with results by sequence index.
func Compare(results []ReplayResult, expected []Expectation) []Comparison {
	bySeq := make(map[int]ReplayResult, len(results))
	for _, r := range results {
		// Rejected duplicates must not shadow the applied turn.
		if prev, ok := bySeq[r.Sequence]; ok && prev.Action == ActionApplied {
			continue
		}
		bySeq[r.Sequence] = r
	}

	out := make([]Comparison, 0, len(expected))
	for _, exp := range expected {
		c := Comparison{Label: fmt.Sprintf("seq-%d", exp.Sequence), Expected: describe(exp.Phase, exp.Action)}
		r, ok := bySeq[exp.Sequence]
		if !ok {
			c.Replayed = "missing"
			out = append(out, c)
			continue
		}
		got := Expectation{Sequence: r.Sequence}
		if exp.Phase != "" {
			got.Phase = r.Phase.String()
		}
		if exp.Action != "" {
			got.Action = r.Action
		}
		c.Replayed = describe(got.Phase, got.Action)
		c.Match = got == exp
		out = append(out, c)
	}
	return out
}

// FinalExpectation is the reference end state. Nil fields are not checked.
type FinalExpectation struct {
	Scores          *scoring.ScoreSet `json:"scores,omitempty"`
	Phase           string            `json:"phase,omitempty"`
	TrustLevel      *float64          `json:"trust_level,omitempty"`
	DetectedTactics []string          `json:"detected_tactics,omitempty"`
	Level           string            `json:"level,omitempty"`
}

// scoreTolerance absorbs float formatting in fixtures.
const scoreTolerance = 1e-6

// CompareFinal checks the end state and report against exp.
func CompareFinal(sum ReplaySummary, exp *FinalExpectation) []Comparison {
	if exp == nil {
		return nil
	}
	var out []Comparison
	num := func(label string, want, got float64) {
		out = append(out, Comparison{
			Label:    label,
			Expected: fmt.Sprintf("%.2f", want),
			Replayed: fmt.Sprintf("%.2f", got),
			Match:    math.Abs(want-got) <= scoreTolerance,
		})
	}
	str := func(label, want, got string) {
		out = append(out, Comparison{Label: label, Expected: want, Replayed: got, Match: want == got})
	}

	st := sum.FinalState
	if exp.Scores != nil {
		num("claiming", exp.Scores.ClaimingValue, st.Scores.ClaimingValue)
		num("creating", exp.Scores.CreatingValue, st.Scores.CreatingValue)
		num("relationship", exp.Scores.RelationshipManagement, st.Scores.RelationshipManagement)
	}
	if exp.Phase != "" {
		str("final-phase", exp.Phase, st.Phase.String())
	}
	if exp.TrustLevel != nil {
		num("trust", *exp.TrustLevel, st.TrustLevel)
	}
	if exp.DetectedTactics != nil {
		got := make([]string, len(st.DetectedTactics))
		for i, t := range st.DetectedTactics {
			got[i] = string(t)
		}
		str("tactics", fmt.Sprint(exp.DetectedTactics), fmt.Sprint(got))
	}
	if exp.Level != "" {
		str("level", exp.Level, sum.Report.Level)
	}
	return out
}

// Diverged counts mismatched rows.
func Diverged(rows []Comparison) int {
	n := 0
	for _, r := range rows {
		if !r.Match {
			n++
		}
	}
	return n
}

func describe(phase, action string) string {
	switch {
	case phase != "" && action != "":
		return phase + "/" + action
	case phase != "":
		return phase
	case action != "":
		return action
	}
	return "-"
}

// #endregion compare

// #region from-log

// FromLog rebuilds a session's turns and the logged outcomes from its
// annotation_log rows, so a recorded session can be replayed and compared.
func FromLog(entries []logging.AnnotationEntry) ([]conversation.Turn, []Expectation) {
	turns := make([]conversation.Turn, len(entries))
	expected := make([]Expectation, 0, len(entries))
	for i, e := range entries {
		turns[i] = conversation.Turn{
			SequenceIndex: e.Sequence,
			Speaker:       conversation.Role(e.Speaker),
			Text:          e.Text,
			Timestamp:     e.CreatedAt,
		}
		action := ActionApplied
		if !e.Applied {
			action = ActionRejected
		}
		// Only applied rows identify a turn unambiguously by sequence.
		if e.Applied {
			expected = append(expected, Expectation{Sequence: e.Sequence, Phase: e.Phase, Action: action})
		}
	}
	return turns, expected
}

// #endregion from-log
