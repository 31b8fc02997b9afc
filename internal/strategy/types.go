package strategy

import (
	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
	"github.com/danielpatrickdp/negotiation-coach/internal/signals"
)

// #region kind

// Kind identifies the counterpart's response pattern.
type Kind string

const (
	CounterAnchor        Kind = "counter_anchor"
	StrategicDisclosure  Kind = "strategic_disclosure"
	ReciprocalConcession Kind = "reciprocal_concession"
	CollaborativeUrgency Kind = "collaborative_urgency"
	InterestBased        Kind = "interest_based"
)

// #endregion kind

// #region reasoning

// Triggers records the state and signals the cascade looked at.
type Triggers struct {
	Sentiment   signals.Sentiment `json:"sentiment"`
	Phase       phase.Phase       `json:"phase"`
	Tactic      rules.Tactic      `json:"tactic,omitempty"`
	Urgency     signals.Urgency   `json:"urgency"`
	Concessions []string          `json:"concessions,omitempty"`
	Topic       string            `json:"topic,omitempty"`
}

// Influence records which character traits shaped the reply.
type Influence struct {
	Aggressiveness     float64 `json:"aggressiveness"`
	Patience           float64 `json:"patience"`
	NegotiationStyle   string  `json:"negotiation_style,omitempty"`
	CommunicationStyle string  `json:"communication_style,omitempty"`
}

// Reasoning explains why a strategy was chosen.
type Reasoning struct {
	Strategy           Kind      `json:"strategy"`
	Rule               string    `json:"rule"`
	Triggers           Triggers  `json:"triggers"`
	CharacterInfluence Influence `json:"character_influence"`
	InstructionClause  string    `json:"instruction_clause,omitempty"`
}

// #endregion reasoning

// #region draft-reply

// Draft is the selector output before the personality transform.
type Draft struct {
	Kind      Kind
	Text      string
	Reasoning Reasoning
}

// Reply is the adaptive counterpart utterance surfaced to the collaborator.
type Reply struct {
	Strategy  Kind      `json:"strategy"`
	Text      string    `json:"text"`
	Reasoning Reasoning `json:"reasoning"`
}

// #endregion draft-reply
