package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// #region role

// Role identifies who spoke a turn. Self is the learner being coached;
// Counterpart is the simulated character.
type Role string

const (
	Self        Role = "self"
	Counterpart Role = "counterpart"
)

// ParseRole maps collaborator speaker labels onto a Role.
// "You" and "user" are the labels the transcript UI emits for the learner.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "self", "you", "user", "learner":
		return Self, nil
	case "counterpart", "ai", "assistant", "character":
		return Counterpart, nil
	}
	return "", fmt.Errorf("unknown speaker %q", s)
}

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == Self || r == Counterpart
}

// UnmarshalText accepts any label ParseRole knows. Unknown labels are kept
// verbatim so the turn is rejected later with a diagnostic instead of failing
// the whole decode.
func (r *Role) UnmarshalText(b []byte) error {
	if role, err := ParseRole(string(b)); err == nil {
		*r = role
		return nil
	}
	*r = Role(b)
	return nil
}

// #endregion role

// #region turn

// Turn is one utterance. Turns are immutable once created and ordered by SequenceIndex.
type Turn struct {
	SequenceIndex int       `json:"sequence_index"`
	Speaker       Role      `json:"speaker"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
}

// IsLearner reports whether the turn was spoken by the learner.
func (t Turn) IsLearner() bool {
	return t.Speaker == Self
}

// #endregion turn

// #region transcript

// LoadTranscript reads a JSON transcript: either an array of turns or an
// object with a "turns" array. Missing sequence indexes are filled from
// position.
func LoadTranscript(path string) ([]Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", path, err)
	}
	return ParseTranscript(data)
}

// ParseTranscript decodes the formats LoadTranscript accepts.
func ParseTranscript(data []byte) ([]Turn, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapped struct {
			Turns []json.RawMessage `json:"turns"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("parse transcript: %w", err)
		}
		raw = wrapped.Turns
	}
	turns := make([]Turn, len(raw))
	for i, msg := range raw {
		var head struct {
			SequenceIndex *int `json:"sequence_index"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			return nil, fmt.Errorf("parse turn %d: %w", i, err)
		}
		if err := json.Unmarshal(msg, &turns[i]); err != nil {
			return nil, fmt.Errorf("parse turn %d: %w", i, err)
		}
		if head.SequenceIndex == nil {
			turns[i].SequenceIndex = i
		}
	}
	return turns, nil
}

// #endregion transcript
