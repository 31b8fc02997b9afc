package phase

import (
	"fmt"

	"github.com/danielpatrickdp/negotiation-coach/internal/signals"
)

// #region phase

// Phase is a negotiation stage. Values are ordered; a session only moves forward.
type Phase int

const (
	Opening Phase = iota
	Exploration
	Bargaining
	Closing
)

var names = [...]string{"opening", "exploration", "bargaining", "closing"}

func (p Phase) String() string {
	if p < Opening || p > Closing {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return names[p]
}

// Parse maps a phase name back to a Phase.
func Parse(s string) (Phase, error) {
	for i, n := range names {
		if n == s {
			return Phase(i), nil
		}
	}
	return Opening, fmt.Errorf("unknown phase %q", s)
}

// MarshalText encodes the phase as its name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// #endregion phase

// #region machine

// Machine holds the transition thresholds.
type Machine struct {
	OpeningTurns int // turnCount below this keeps the session in Opening
}

// NewMachine returns a Machine. openingTurns <= 0 uses 3.
func NewMachine(openingTurns int) Machine {
	if openingTurns <= 0 {
		openingTurns = 3
	}
	return Machine{OpeningTurns: openingTurns}
}

// Candidate returns the phase suggested by one turn. turnCount is the count
// after the turn was recorded. Rule order is the tie-break: opening window,
// monetary amount, closing keyword, question, otherwise retain.
func (m Machine) Candidate(current Phase, turnCount int, b signals.Bundle) Phase {
	switch {
	case turnCount < m.OpeningTurns:
		return Opening
	case b.HasMonetary():
		return Bargaining
	case b.ClosingIntent:
		return Closing
	case b.QuestionCount > 0:
		return Exploration
	}
	return current
}

// Next applies one turn. The result never precedes current.
func (m Machine) Next(current Phase, turnCount int, b signals.Bundle) Phase {
	return max(current, m.Candidate(current, turnCount, b))
}

// Reset returns the starting phase of a fresh session.
func Reset() Phase {
	return Opening
}

// #endregion machine
