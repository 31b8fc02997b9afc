package rules

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// #region table

// Table is the single source of truth for every lexicon, phrase list, delta
// and threshold used by signal extraction, phase tracking, scoring and reply
// topic selection. The live feedback path and the end-of-session path both
// read the same Table.
type Table struct {
	PositiveWords     []string     `yaml:"positive_words" json:"positive_words"`
	NegativeWords     []string     `yaml:"negative_words" json:"negative_words"`
	Tactics           []TacticRule `yaml:"tactics" json:"tactics"`
	ConcessionPhrases []string     `yaml:"concession_phrases" json:"concession_phrases"`
	UrgencyWords      []string     `yaml:"urgency_words" json:"urgency_words"`
	QuestionWords     []string     `yaml:"question_words" json:"question_words"`
	ClosingKeywords   []string     `yaml:"closing_keywords" json:"closing_keywords"`
	Topics            []TopicRule  `yaml:"topics" json:"topics"`

	Scoring     []ScoreRule  `yaml:"scoring" json:"scoring"`
	PriceAnchor AnchorRule   `yaml:"price_anchor" json:"price_anchor"`
	Questions   QuestionRule `yaml:"questions" json:"questions"`

	OpeningTurns    int     `yaml:"opening_turns" json:"opening_turns"`       // phase stays Opening while turnCount < this
	FeedbackWindow  int     `yaml:"feedback_window" json:"feedback_window"`   // trailing turns that emit feedback
	FeedbackLogSize int     `yaml:"feedback_log_size" json:"feedback_log_size"`
	TipThreshold    float64 `yaml:"tip_threshold" json:"tip_threshold"`
	MaxTips         int     `yaml:"max_tips" json:"max_tips"`
	TrustGain       float64 `yaml:"trust_gain" json:"trust_gain"`
	TrustLoss       float64 `yaml:"trust_loss" json:"trust_loss"`

	DimensionTips map[Dimension]string `yaml:"dimension_tips" json:"dimension_tips"`
}

// #endregion table

// #region default

// Default returns the built-in rule table. The scoring deltas are empirically
// chosen and are expected to be tuned through Load.
func Default() *Table {
	return &Table{
		PositiveWords: []string{"good", "great", "excellent", "perfect", "wonderful", "fantastic", "appreciate", "thank"},
		NegativeWords: []string{"bad", "terrible", "awful", "horrible", "disappointed", "frustrated", "unacceptable"},
		Tactics: []TacticRule{
			{Kind: TacticAnchoring, Phrases: []string{"first offer", "starting point", "initial price"}},
			{Kind: TacticDeadline, Phrases: []string{"deadline", "time limit", "expire", "limited time"}},
			{Kind: TacticScarcity, Phrases: []string{"last one", "limited quantity", "rare opportunity", "won't last"}},
			{Kind: TacticAuthority, Phrases: []string{"my boss", "company policy", "not authorized"}},
			{Kind: TacticReciprocity, Phrases: []string{"favor", "help you out", "return the favor"}},
		},
		ConcessionPhrases: []string{
			"willing to", "could consider", "might accept", "flexible on",
			"open to", "compromise", "meet you halfway", "work with you",
		},
		UrgencyWords:    []string{"urgent", "immediate", "asap", "quickly", "rush", "deadline", "today"},
		QuestionWords:   []string{"what", "how", "when", "where", "why", "which", "who"},
		ClosingKeywords: []string{"deal", "agreement", "close"},
		Topics: []TopicRule{
			{Topic: "price", Keywords: []string{"price", "cost"}},
			{Topic: "time", Keywords: []string{"time", "deadline"}},
			{Topic: "quality", Keywords: []string{"quality", "condition"}},
		},
		Scoring: []ScoreRule{
			{
				Name: "acknowledgement", Dimension: RelationshipManagement, Delta: 15,
				Phrases:  []string{"thank", "appreciate", "understand your position"},
				Severity: SeverityPositive,
				Message:  "Great! You're building rapport by showing appreciation.",
			},
			{
				Name: "perspective_taking", Dimension: RelationshipManagement, Delta: 20,
				Phrases:     []string{"i see your point", "that makes sense", "good point"},
				LearnerOnly: true, Severity: SeverityPositive,
				Message: "Excellent! Acknowledging their perspective builds trust.",
			},
			{
				Name: "collaborative_language", Dimension: RelationshipManagement, Delta: 25,
				Phrases:     []string{"we both", "together", "mutual", "win-win"},
				LearnerOnly: true, Severity: SeverityPositive,
				Message: "Outstanding! Using collaborative language creates partnership.",
			},
			{
				Name: "harsh_language", Dimension: RelationshipManagement, Delta: -20,
				Phrases:     []string{"that's ridiculous", "no way", "impossible"},
				LearnerOnly: true, Severity: SeverityWarning,
				Message: "Warning: Harsh language can damage the relationship.",
				Tip:     `Try: "That's challenging for me because..." instead of direct rejection.`,
			},
			{
				Name: "emotional_outburst", Dimension: RelationshipManagement, Delta: -15,
				Phrases:     []string{"angry", "annoyed", "upset", "frustrated"},
				LearnerOnly: true, Severity: SeverityWarning,
				Message: "Careful! Try to stay emotionally neutral.",
				Tip:     "Take a breath. Focus on interests, not emotions.",
			},
			{
				Name: "batna_reference", Dimension: ClaimingValue, Delta: 30,
				Phrases:     []string{"other option", "alternative", "elsewhere", "other dealer", "walk away"},
				LearnerOnly: true, Severity: SeverityPositive,
				Message: "Smart! You're leveraging your BATNA effectively.",
			},
			{
				Name: "value_creation", Dimension: CreatingValue, Delta: 25,
				Phrases:     []string{"what if we", "another way", "package", "bundle", "warranty", "financing", "include"},
				LearnerOnly: true, Severity: SeverityPositive,
				Message: "Excellent! You're creating value beyond just price.",
			},
			{
				Name: "interest_probing", Dimension: CreatingValue, Delta: 20,
				Phrases:     []string{"why is that important", "what matters most", "help me understand", "important to you"},
				LearnerOnly: true, Severity: SeverityPositive,
				Message: "Great! You're uncovering underlying interests.",
			},
		},
		PriceAnchor: AnchorRule{
			Dimension: ClaimingValue, Delta: 20, MaxTurnIndex: 5, MinAmount: 1000,
			Severity: SeverityInfo,
			Message:  "Good anchoring! You set the price discussion.",
		},
		Questions: QuestionRule{
			Dimension: CreatingValue, DeltaPerQuestion: 10,
			FeedbackDimension: Communication, Severity: SeverityPositive,
		},
		OpeningTurns:    3,
		FeedbackWindow:  3,
		FeedbackLogSize: 5,
		TipThreshold:    30,
		MaxTips:         3,
		TrustGain:       0.1,
		TrustLoss:       0.05,
		DimensionTips: map[Dimension]string{
			ClaimingValue:          "Claiming Value: mention your alternatives or anchor early with a concrete number.",
			CreatingValue:          `Creating Value: ask about their underlying needs: "What's most important to you in this deal?"`,
			RelationshipManagement: `Relationship Management: try acknowledging their perspective: "I understand your position..."`,
		},
	}
}

// #endregion default

// #region validate

// Validate rejects tables that would break the scoring invariants.
func (t *Table) Validate() error {
	var errs []error
	for _, r := range t.Scoring {
		if !finite(r.Delta) {
			errs = append(errs, fmt.Errorf("scoring rule %q: delta is not finite", r.Name))
		}
		if len(r.Phrases) == 0 {
			errs = append(errs, fmt.Errorf("scoring rule %q: no phrases", r.Name))
		}
		if !isScored(r.Dimension) {
			errs = append(errs, fmt.Errorf("scoring rule %q: dimension %q is not scored", r.Name, r.Dimension))
		}
	}
	if len(t.Tactics) == 0 {
		errs = append(errs, errors.New("no tactic rules"))
	}
	for i, tr := range t.Tactics {
		if tr.Kind == TacticNone {
			errs = append(errs, fmt.Errorf("tactic rule %d: empty kind", i))
		}
		if len(tr.Phrases) == 0 {
			errs = append(errs, fmt.Errorf("tactic rule %d (%s): no phrases", i, tr.Kind))
		}
	}
	if !finite(t.PriceAnchor.Delta) || !finite(t.Questions.DeltaPerQuestion) {
		errs = append(errs, errors.New("anchor/question delta is not finite"))
	}
	if !finite(t.TrustGain) || !finite(t.TrustLoss) || !finite(t.TipThreshold) {
		errs = append(errs, errors.New("trust or tip threshold is not finite"))
	}
	if t.FeedbackWindow < 1 || t.FeedbackLogSize < 1 || t.MaxTips < 0 {
		errs = append(errs, errors.New("feedback window, log size and max tips must be positive"))
	}
	return errors.Join(errs...)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isScored(d Dimension) bool {
	for _, s := range ScoredDimensions {
		if s == d {
			return true
		}
	}
	return false
}

// #endregion validate

// #region load

// Load overlays the YAML file at path onto Default. Keys absent from the file
// keep their default values; lists present in the file replace the defaults.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return Parse(data)
}

// Parse overlays YAML rule data onto Default.
func Parse(data []byte) (*Table, error) {
	t := Default()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validate rules: %w", err)
	}
	return t, nil
}

// #endregion load
