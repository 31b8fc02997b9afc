package rules

// #region tactic

// Tactic names a negotiation maneuver detected by keyword matching.
type Tactic string

const (
	TacticNone        Tactic = ""
	TacticAnchoring   Tactic = "anchoring"
	TacticDeadline    Tactic = "deadline"
	TacticScarcity    Tactic = "scarcity"
	TacticAuthority   Tactic = "authority"
	TacticReciprocity Tactic = "reciprocity"
)

// #endregion tactic

// #region dimension

// Dimension is a skill axis. The first three are scored; Communication only
// labels feedback events.
type Dimension string

const (
	ClaimingValue          Dimension = "claiming_value"
	CreatingValue          Dimension = "creating_value"
	RelationshipManagement Dimension = "relationship_management"
	Communication          Dimension = "communication"
)

// ScoredDimensions lists the dimensions carried by a score set, in report order.
var ScoredDimensions = []Dimension{ClaimingValue, CreatingValue, RelationshipManagement}

// Label returns the human-readable name used in tips and reports.
func (d Dimension) Label() string {
	switch d {
	case ClaimingValue:
		return "Claiming Value"
	case CreatingValue:
		return "Creating Value"
	case RelationshipManagement:
		return "Relationship Management"
	case Communication:
		return "Communication"
	}
	return string(d)
}

// #endregion dimension

// #region severity

// Severity classifies a feedback event.
type Severity string

const (
	SeverityPositive Severity = "positive"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// #endregion severity

// #region rule-types

// TacticRule pairs a tactic with the phrases that reveal it.
type TacticRule struct {
	Kind    Tactic   `yaml:"kind" json:"kind"`
	Phrases []string `yaml:"phrases" json:"phrases"`
}

// ScoreRule adds Delta to Dimension when any phrase appears in a turn.
// A non-empty Message produces a feedback event for recent turns; Tip is
// attached to that event and surfaces as a coaching tip.
type ScoreRule struct {
	Name        string    `yaml:"name" json:"name"`
	Dimension   Dimension `yaml:"dimension" json:"dimension"`
	Delta       float64   `yaml:"delta" json:"delta"`
	Phrases     []string  `yaml:"phrases" json:"phrases"`
	LearnerOnly bool      `yaml:"learner_only" json:"learner_only"`
	Severity    Severity  `yaml:"severity" json:"severity"`
	Message     string    `yaml:"message" json:"message"`
	Tip         string    `yaml:"tip,omitempty" json:"tip,omitempty"`
}

// AnchorRule rewards the learner for putting a number on the table early.
type AnchorRule struct {
	Dimension    Dimension `yaml:"dimension" json:"dimension"`
	Delta        float64   `yaml:"delta" json:"delta"`
	MaxTurnIndex int       `yaml:"max_turn_index" json:"max_turn_index"` // exclusive
	MinAmount    float64   `yaml:"min_amount" json:"min_amount"`         // exclusive
	Severity     Severity  `yaml:"severity" json:"severity"`
	Message      string    `yaml:"message" json:"message"`
}

// QuestionRule rewards each learner question.
type QuestionRule struct {
	Dimension         Dimension `yaml:"dimension" json:"dimension"`
	DeltaPerQuestion  float64   `yaml:"delta_per_question" json:"delta_per_question"`
	FeedbackDimension Dimension `yaml:"feedback_dimension" json:"feedback_dimension"`
	Severity          Severity  `yaml:"severity" json:"severity"`
}

// TopicRule maps keywords to a reply topic family (price, time, quality).
type TopicRule struct {
	Topic    string   `yaml:"topic" json:"topic"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// #endregion rule-types
