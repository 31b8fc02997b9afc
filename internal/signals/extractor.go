package signals

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
)

// #region extractor

// Extractor computes signal bundles from turn text using a rule table.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	table    *rules.Table
	closing  []*regexp.Regexp
	positive map[string]struct{}
	negative map[string]struct{}
	wh       map[string]struct{}
}

// NewExtractor creates an Extractor. A nil table uses rules.Default().
func NewExtractor(table *rules.Table) *Extractor {
	if table == nil {
		table = rules.Default()
	}
	e := &Extractor{
		table:    table,
		positive: wordSet(table.PositiveWords),
		negative: wordSet(table.NegativeWords),
		wh:       wordSet(table.QuestionWords),
	}
	for _, kw := range table.ClosingKeywords {
		// Whole words, plural forms included: "deals" and "agreements" count,
		// "disclose" does not count as "close".
		e.closing = append(e.closing, regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.ToLower(kw))+`(?:s|es)?\b`))
	}
	return e
}

var defaultExtractor = NewExtractor(nil)

// Extract runs the default rule table over text.
func Extract(text string, turnIndex int) Bundle {
	return defaultExtractor.Extract(text, turnIndex)
}

// #endregion extractor

// #region extract

// Extract computes all signals for one turn. Empty text yields NeutralBundle.
func (e *Extractor) Extract(text string, turnIndex int) Bundle {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return NeutralBundle(turnIndex)
	}
	tokens := tokenize(lower)
	questions := strings.Count(lower, "?")
	return Bundle{
		Sentiment:            e.sentiment(tokens),
		Tactic:               e.tactic(lower),
		ConcessionIndicators: matchAll(lower, e.table.ConcessionPhrases),
		Urgency:              e.urgency(lower),
		InformationSeeking:   questions > 0 || anyToken(tokens, e.wh),
		QuestionCount:        questions,
		PriceMentions:        PriceMentions(lower),
		ClosingIntent:        e.closingIntent(lower),
		Topic:                e.topic(lower),
		TurnIndex:            turnIndex,
	}
}

// #endregion extract

// #region sentiment

// sentiment compares whole-word lexicon hits. Ties, including 0/0, are neutral.
func (e *Extractor) sentiment(tokens []string) Sentiment {
	var pos, neg int
	for _, t := range tokens {
		if _, ok := e.positive[t]; ok {
			pos++
		}
		if _, ok := e.negative[t]; ok {
			neg++
		}
	}
	switch {
	case pos > neg:
		return Positive
	case neg > pos:
		return Negative
	}
	return Neutral
}

// #endregion sentiment

// #region tactic

// tactic returns the first rule kind with a substring hit. Rule order is priority.
func (e *Extractor) tactic(lower string) TacticKind {
	for _, tr := range e.table.Tactics {
		for _, p := range tr.Phrases {
			if p != "" && strings.Contains(lower, strings.ToLower(p)) {
				return tr.Kind
			}
		}
	}
	return rules.TacticNone
}

// #endregion tactic

// #region urgency

func (e *Extractor) urgency(lower string) Urgency {
	switch n := len(matchAll(lower, e.table.UrgencyWords)); {
	case n >= 2:
		return UrgencyHigh
	case n == 1:
		return UrgencyMedium
	}
	return UrgencyLow
}

// #endregion urgency

// #region closing-topic

func (e *Extractor) closingIntent(lower string) bool {
	for _, re := range e.closing {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// topic returns the first topic family with a keyword hit, or "".
func (e *Extractor) topic(lower string) string {
	for _, tr := range e.table.Topics {
		if len(matchAll(lower, tr.Keywords)) > 0 {
			return tr.Topic
		}
	}
	return ""
}

// #endregion closing-topic

// #region monetary

// monetaryPattern matches currency-prefixed amounts ("$22,000", "€5k"),
// thousands-separated numbers ("22,000"), amounts with a unit word
// ("5k", "300 dollars") and bare numbers of four or more digits ("22000").
// Bare numbers below 1000 are not prices ("5 minutes", "3 cars").
var monetaryPattern = regexp.MustCompile(
	`[$€£]\s?\d[\d,]*(?:\.\d+)?(?:\s?[km]\b)?` +
		`|\b\d{1,3}(?:,\d{3})+(?:\.\d+)?\b` +
		`|\b\d+(?:\.\d+)?\s?(?:k\b|dollars\b|usd\b|eur\b|euros\b|bucks\b)` +
		`|\b\d{4,}(?:\.\d+)?\b`)

// PriceMentions returns every monetary amount found in text, in order.
func PriceMentions(text string) []float64 {
	var out []float64
	for _, m := range monetaryPattern.FindAllString(strings.ToLower(text), -1) {
		if v, ok := parseAmount(m); ok {
			out = append(out, v)
		}
	}
	return out
}

func parseAmount(s string) (float64, bool) {
	s = strings.TrimLeft(s, "$€£ ")
	mult := 1.0
	for _, unit := range []string{"dollars", "euros", "bucks", "usd", "eur"} {
		s = strings.TrimSuffix(s, unit)
	}
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1_000, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1_000_000, strings.TrimSuffix(s, "m")
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * mult, true
}

// #endregion monetary

// #region helpers

// tokenize splits lowercase text on whitespace and trims edge punctuation.
func tokenize(lower string) []string {
	fields := strings.Fields(lower)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// matchAll returns the phrases found as substrings of lower, in list order.
func matchAll(lower string, phrases []string) []string {
	out := []string{}
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			out = append(out, p)
		}
	}
	return out
}

// ContainsAny reports whether lower contains any of phrases.
func ContainsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func anyToken(tokens []string, set map[string]struct{}) bool {
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func wordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

// #endregion helpers
