package signals

import "github.com/danielpatrickdp/negotiation-coach/internal/rules"

// #region enums

// Sentiment is the coarse polarity of a turn.
type Sentiment string

const (
	Neutral  Sentiment = "neutral"
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
)

// Urgency grades how many distinct urgency words a turn used.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// TacticKind is the tactic vocabulary shared with the rule table.
type TacticKind = rules.Tactic

// #endregion enums

// #region bundle

// Bundle is the set of cues extracted from one turn. It is derived, never
// stored, and depends only on the turn text and turn index.
type Bundle struct {
	Sentiment            Sentiment  `json:"sentiment"`
	Tactic               TacticKind `json:"tactic,omitempty"`
	ConcessionIndicators []string   `json:"concession_indicators"`
	Urgency              Urgency    `json:"urgency"`
	InformationSeeking   bool       `json:"information_seeking"`
	QuestionCount        int        `json:"question_count"`

	PriceMentions []float64 `json:"price_mentions,omitempty"`
	ClosingIntent bool      `json:"closing_intent"`
	Topic         string    `json:"topic,omitempty"`
	TurnIndex     int       `json:"turn_index"`
}

// HasTactic reports whether a tactic was detected.
func (b Bundle) HasTactic() bool {
	return b.Tactic != rules.TacticNone
}

// HasMonetary reports whether the turn mentioned a monetary amount.
func (b Bundle) HasMonetary() bool {
	return len(b.PriceMentions) > 0
}

// MaxPrice returns the largest amount mentioned, or 0.
func (b Bundle) MaxPrice() float64 {
	var m float64
	for _, p := range b.PriceMentions {
		if p > m {
			m = p
		}
	}
	return m
}

// NeutralBundle returns the bundle produced for empty or unusable text.
func NeutralBundle(turnIndex int) Bundle {
	return Bundle{
		Sentiment:            Neutral,
		ConcessionIndicators: []string{},
		Urgency:              UrgencyLow,
		TurnIndex:            turnIndex,
	}
}

// #endregion bundle
