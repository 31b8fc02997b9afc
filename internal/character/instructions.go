package character

import (
	"encoding/json"
	"fmt"
	"strings"
)

// #region instructions

// Instructions are the confidential scenario notes for the counterpart.
type Instructions struct {
	PrimaryInterests StringList `json:"primary_interests,omitempty"`
	KeyConstraints   StringList `json:"key_constraints,omitempty"`
	Context          string     `json:"context,omitempty"`
}

// StringList decodes from a JSON array of strings or a single string. A blank
// string decodes to an empty list.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one = strings.TrimSpace(one); one == "" {
			*l = nil
		} else {
			*l = StringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("decode string list: %w", err)
	}
	*l = many
	return nil
}

// ParseInstructions accepts either a JSON object or free text. Free text, and
// JSON that does not decode into the expected shape, becomes Context.
func ParseInstructions(raw string) Instructions {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Instructions{}
	}
	if strings.HasPrefix(raw, "{") {
		var in Instructions
		if err := json.Unmarshal([]byte(raw), &in); err == nil {
			return in
		}
	}
	return Instructions{Context: raw}
}

// Empty reports whether no instruction is present.
func (in Instructions) Empty() bool {
	return len(in.PrimaryInterests) == 0 && len(in.KeyConstraints) == 0 && strings.TrimSpace(in.Context) == ""
}

// #endregion instructions
