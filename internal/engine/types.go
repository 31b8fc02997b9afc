package engine

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
	"github.com/danielpatrickdp/negotiation-coach/internal/eval"
	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
	"github.com/danielpatrickdp/negotiation-coach/internal/signals"
)

// #region errors

var (
	// ErrSessionNotFound is returned for operations on an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMalformedTurn marks a turn that was rejected without changing state.
	ErrMalformedTurn = errors.New("malformed turn")
	// ErrInvariant marks an update discarded by post-update validation.
	ErrInvariant = errors.New("state invariant violated")
)

// #endregion errors

// #region state

// InitialTrust is the trust level of a fresh session.
const InitialTrust = 0.5

// State is the per-session conversation state. It has exactly one writer at
// a time; Step never mutates its input.
type State struct {
	TurnCount           int                     `json:"turn_count"`
	Phase               phase.Phase             `json:"phase"`
	TrustLevel          float64                 `json:"trust_level"`
	DetectedTactics     []rules.Tactic          `json:"detected_tactics"`
	ConcessionsGiven    int                     `json:"concessions_given"`
	ConcessionsReceived int                     `json:"concessions_received"`
	Scores              scoring.ScoreSet        `json:"scores"`
	Feedback            []scoring.FeedbackEvent `json:"feedback"`
	LastSequence        int                     `json:"last_sequence"`
	LastUpdated         time.Time               `json:"last_updated"`

	// The latest learner turn, kept so replies can be generated later.
	LastLearnerText  string `json:"last_learner_text,omitempty"`
	LastLearnerIndex int    `json:"last_learner_index"`
}

// NewState returns the state of a freshly started session.
func NewState() State {
	return State{
		Phase:           phase.Reset(),
		TrustLevel:      InitialTrust,
		DetectedTactics: []rules.Tactic{},
		Feedback:        []scoring.FeedbackEvent{},
		LastSequence:    -1,
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	s.DetectedTactics = slices.Clone(s.DetectedTactics)
	s.Feedback = slices.Clone(s.Feedback)
	return s
}

// Overall is the mean of the current scores.
func (s State) Overall() float64 {
	return s.Scores.Overall()
}

func (s State) snapshot() eval.Snapshot {
	return eval.Snapshot{
		TurnCount:  s.TurnCount,
		Phase:      s.Phase,
		TrustLevel: s.TrustLevel,
		Scores:     s.Scores,
	}
}

// #endregion state

// #region annotation

// Annotation is the live output for one processed turn.
type Annotation struct {
	Turn     conversation.Turn       `json:"turn"`
	Bundle   signals.Bundle          `json:"bundle"`
	Feedback []scoring.FeedbackEvent `json:"feedback"`
	Scores   scoring.ScoreSet        `json:"scores"`
	Overall  float64                 `json:"overall"`
	Phase    phase.Phase             `json:"phase"`
	Trust    float64                 `json:"trust"`
	Tips     []string                `json:"tips,omitempty"`
	Result   Result                  `json:"result"`
}

// #endregion annotation

// #region result

// Result reports whether a turn changed state. A false Applied is a soft
// failure: the previous state was kept and Diagnostic says why.
type Result struct {
	Applied    bool   `json:"applied"`
	Diagnostic string `json:"diagnostic,omitempty"`
	cause      error
}

// Err returns nil for applied turns, otherwise an error wrapping
// ErrMalformedTurn or ErrInvariant.
func (r Result) Err() error {
	if r.Applied {
		return nil
	}
	if r.cause == nil {
		return fmt.Errorf("%w: %s", ErrMalformedTurn, r.Diagnostic)
	}
	return fmt.Errorf("%w: %s", r.cause, r.Diagnostic)
}

func applied() Result {
	return Result{Applied: true}
}

func rejected(cause error, diagnostic string) Result {
	return Result{Diagnostic: diagnostic, cause: cause}
}

// #endregion result

// #region analytics

// Analytics summarizes the live sessions held by an engine.
type Analytics struct {
	ActiveSessions int     `json:"active_sessions"`
	TotalTurns     int     `json:"total_turns"`
	AverageTrust   float64 `json:"average_trust"`
}

// #endregion analytics
