package character

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
)

// #region profile

// Personality is the five-factor vector, each in [0,1].
type Personality struct {
	Openness          float64 `json:"openness" yaml:"openness"`
	Conscientiousness float64 `json:"conscientiousness" yaml:"conscientiousness"`
	Extraversion      float64 `json:"extraversion" yaml:"extraversion"`
	Agreeableness     float64 `json:"agreeableness" yaml:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism" yaml:"neuroticism"`
}

// Behavior holds the optional behavior parameters as supplied by scenario
// configuration. A nil field means the parameter was not provided.
type Behavior struct {
	Aggressiveness     *float64 `json:"aggressiveness,omitempty" yaml:"aggressiveness,omitempty"`
	Patience           *float64 `json:"patience,omitempty" yaml:"patience,omitempty"`
	Flexibility        *float64 `json:"flexibility,omitempty" yaml:"flexibility,omitempty"`
	Trustworthiness    *float64 `json:"trustworthiness,omitempty" yaml:"trustworthiness,omitempty"`
	ConcessionRate     *float64 `json:"concession_rate,omitempty" yaml:"concession_rate,omitempty"`
	AnchorStrength     *float64 `json:"anchor_strength,omitempty" yaml:"anchor_strength,omitempty"`
	InformationSharing *float64 `json:"information_sharing,omitempty" yaml:"information_sharing,omitempty"`
}

// Interests groups what the character wants out of the deal.
type Interests struct {
	Primary   []string `json:"primary,omitempty" yaml:"primary,omitempty"`
	Secondary []string `json:"secondary,omitempty" yaml:"secondary,omitempty"`
	Hidden    []string `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// Profile is the read-only character configuration for a scenario.
type Profile struct {
	Name               string         `json:"name,omitempty" yaml:"name,omitempty"`
	Personality        Personality    `json:"personality" yaml:"personality"`
	Behavior           Behavior       `json:"behavior_parameters" yaml:"behavior_parameters"`
	Interests          Interests      `json:"interests" yaml:"interests"`
	PreferredTactics   []rules.Tactic `json:"preferred_tactics,omitempty" yaml:"preferred_tactics,omitempty"`
	AvoidedTactics     []rules.Tactic `json:"avoided_tactics,omitempty" yaml:"avoided_tactics,omitempty"`
	NegotiationStyle   string         `json:"negotiation_style,omitempty" yaml:"negotiation_style,omitempty"`
	CommunicationStyle string         `json:"communication_style,omitempty" yaml:"communication_style,omitempty"`
}

// #endregion profile

// #region params

// Params are resolved behavior parameters. Every value is in [0,1].
type Params struct {
	Aggressiveness     float64 `json:"aggressiveness"`
	Patience           float64 `json:"patience"`
	Flexibility        float64 `json:"flexibility"`
	Trustworthiness    float64 `json:"trustworthiness"`
	ConcessionRate     float64 `json:"concession_rate"`
	AnchorStrength     float64 `json:"anchor_strength"`
	InformationSharing float64 `json:"information_sharing"`
}

// Midpoint is used for any behavior parameter the profile omits.
const Midpoint = 0.5

// Resolve fills missing behavior parameters with Midpoint and clamps the rest.
func (b Behavior) Resolve() Params {
	return Params{
		Aggressiveness:     orMid(b.Aggressiveness),
		Patience:           orMid(b.Patience),
		Flexibility:        orMid(b.Flexibility),
		Trustworthiness:    orMid(b.Trustworthiness),
		ConcessionRate:     orMid(b.ConcessionRate),
		AnchorStrength:     orMid(b.AnchorStrength),
		InformationSharing: orMid(b.InformationSharing),
	}
}

// Params resolves the profile's behavior parameters.
func (p Profile) Params() Params {
	return p.Behavior.Resolve()
}

// IsCollaborative reports whether the negotiation style mentions collaboration.
func (p Profile) IsCollaborative() bool {
	return strings.Contains(strings.ToLower(p.NegotiationStyle), "collaborative")
}

// IsFormal reports whether the communication style asks for formal register.
// "formal" must be a whole word, so "informal" does not count.
func (p Profile) IsFormal() bool {
	words := strings.FieldsFunc(strings.ToLower(p.CommunicationStyle), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if w == "formal" {
			return true
		}
	}
	return false
}

func orMid(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return Midpoint
	}
	switch {
	case *v < 0:
		return 0
	case *v > 1:
		return 1
	}
	return *v
}

// Float returns a pointer to v, for building profiles in code.
func Float(v float64) *float64 {
	return &v
}

// #endregion params

// #region load

// Load reads a JSON profile from path.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// #endregion load
