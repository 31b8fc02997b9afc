package strategy

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/danielpatrickdp/negotiation-coach/internal/character"
	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
	"github.com/danielpatrickdp/negotiation-coach/internal/signals"
)

// #region selector

// Picker returns an index in [0,n). It is the only source of randomness in
// reply generation and must be safe for concurrent use.
type Picker func(n int) int

// Thresholds for the cascade.
const (
	CounterAnchorAggressiveness = 0.6
	FirmAnchorAggressiveness    = 0.7
)

// Selector runs the strategy cascade and picks a draft template.
type Selector struct {
	pick Picker
}

// NewSelector creates a Selector. A nil picker uses math/rand/v2.
func NewSelector(pick Picker) *Selector {
	if pick == nil {
		pick = rand.IntN
	}
	return &Selector{pick: pick}
}

// FirstTemplate always picks index 0. Useful for reproducible replies.
func FirstTemplate(int) int { return 0 }

// #endregion selector

// #region select

// Input is everything the cascade reads.
type Input struct {
	Profile      character.Profile
	Phase        phase.Phase
	Bundle       signals.Bundle
	Instructions character.Instructions
}

// Select runs the cascade. The first matching rule wins and the cascade
// always ends in InterestBased, so a draft is always produced.
func (s *Selector) Select(in Input) Draft {
	params := in.Profile.Params()
	b := in.Bundle
	r := Reasoning{
		Triggers: Triggers{
			Sentiment:   b.Sentiment,
			Phase:       in.Phase,
			Tactic:      b.Tactic,
			Urgency:     b.Urgency,
			Concessions: b.ConcessionIndicators,
			Topic:       b.Topic,
		},
		CharacterInfluence: Influence{
			Aggressiveness:     params.Aggressiveness,
			Patience:           params.Patience,
			NegotiationStyle:   in.Profile.NegotiationStyle,
			CommunicationStyle: in.Profile.CommunicationStyle,
		},
	}

	var kind Kind
	var text string
	switch {
	case b.Tactic == rules.TacticAnchoring && params.Aggressiveness > CounterAnchorAggressiveness:
		kind = CounterAnchor
		r.Rule = fmt.Sprintf("anchoring detected and aggressiveness %.2f > %.1f", params.Aggressiveness, CounterAnchorAggressiveness)
		text = counterAnchorSoft
		if params.Aggressiveness > FirmAnchorAggressiveness {
			text = counterAnchorFirm
		}
	case in.Phase == phase.Exploration:
		kind = StrategicDisclosure
		r.Rule = "exploration phase"
		text = s.choose(disclosureTemplates)
	case len(b.ConcessionIndicators) > 0:
		kind = ReciprocalConcession
		r.Rule = "concession offered: " + strings.Join(b.ConcessionIndicators, ", ")
		text = s.choose(concessionTemplates)
	case b.Urgency == signals.UrgencyHigh && in.Profile.IsCollaborative():
		kind = CollaborativeUrgency
		r.Rule = "high urgency with collaborative style"
		text = s.choose(urgencyTemplates)
	default:
		kind = InterestBased
		text, r.Rule, r.InstructionClause = s.interestBased(b.Topic, in.Instructions)
	}

	r.Strategy = kind
	return Draft{Kind: kind, Text: text, Reasoning: r}
}

// #endregion select

// #region interest-based

// interestBased branches on topic, then falls back to the generic set.
// Instructions only augment the generic fallback, and then the first generic
// template is used so the clause lands on a stable sentence.
func (s *Selector) interestBased(topic string, in character.Instructions) (text, rule, clause string) {
	if set, ok := topicTemplates[topic]; ok && len(set) > 0 {
		return s.choose(set), "interest-based, topic " + topic, ""
	}
	if clause = InstructionClause(in); clause != "" {
		return genericTemplates[0] + clause, "interest-based with scenario instructions", clause
	}
	return s.choose(genericTemplates), "interest-based default", ""
}

// InstructionClause returns the single clause derived from instructions,
// by priority: primary interest, key constraint, general context.
func InstructionClause(in character.Instructions) string {
	switch {
	case len(in.PrimaryInterests) > 0:
		return fmt.Sprintf(primaryInterestClause, joinList(in.PrimaryInterests))
	case len(in.KeyConstraints) > 0:
		return fmt.Sprintf(keyConstraintClause, joinList(in.KeyConstraints))
	case strings.TrimSpace(in.Context) != "":
		return contextClause
	}
	return ""
}

func joinList(items []string) string {
	switch len(items) {
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// #endregion interest-based

// #region helpers

// choose picks one template. Out-of-range picker results fall back to 0.
func (s *Selector) choose(set []string) string {
	i := s.pick(len(set))
	if i < 0 || i >= len(set) {
		i = 0
	}
	return set[i]
}

// #endregion helpers
