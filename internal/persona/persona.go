package persona

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/danielpatrickdp/negotiation-coach/internal/character"
)

// #region thresholds

const (
	AssertiveAggressiveness = 0.7
	ImpatientPatience       = 0.3
)

// TimePressure is appended once for impatient characters.
const TimePressure = "We need to move on this quickly."

// #endregion thresholds

// #region substitutions

type substitution struct {
	re *regexp.Regexp
	to string
}

func compile(pairs [][2]string) []substitution {
	out := make([]substitution, 0, len(pairs))
	for _, p := range pairs {
		from := strings.ReplaceAll(regexp.QuoteMeta(p[0]), "'", "['’]")
		out = append(out, substitution{re: regexp.MustCompile(`(?i)\b` + from + `\b`), to: p[1]})
	}
	return out
}

var assertive = compile([][2]string{
	{"I understand", "Look, I get"},
	{"perhaps", "definitely"},
	{"might", "will"},
})

var contractions = compile([][2]string{
	{"you're", "you are"},
	{"we're", "we are"},
	{"they're", "they are"},
	{"I'm", "I am"},
	{"I'd", "I would"},
	{"I've", "I have"},
	{"I'll", "I will"},
	{"we'll", "we will"},
	{"you'll", "you will"},
	{"can't", "cannot"},
	{"won't", "will not"},
	{"don't", "do not"},
	{"doesn't", "does not"},
	{"isn't", "is not"},
	{"couldn't", "could not"},
	{"wouldn't", "would not"},
	{"let's", "let us"},
	{"it's", "it is"},
	{"that's", "that is"},
	{"what's", "what is"},
	{"here's", "here is"},
	{"there's", "there is"},
})

// replace applies subs in order, keeping a leading capital from the match.
func replace(text string, subs []substitution) string {
	for _, s := range subs {
		text = s.re.ReplaceAllStringFunc(text, func(m string) string {
			r, _ := utf8.DecodeRuneInString(m)
			if unicode.IsUpper(r) {
				return capitalize(s.to)
			}
			return s.to
		})
	}
	return text
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// #endregion substitutions

// #region apply

// Apply rewrites a draft in the character's voice. Transforms run in a fixed
// order: assertive swaps, time pressure, then formal register. Applying the
// result again returns it unchanged.
func Apply(draft string, profile character.Profile) string {
	params := profile.Params()
	text := draft
	if params.Aggressiveness > AssertiveAggressiveness {
		text = replace(text, assertive)
	}
	if params.Patience < ImpatientPatience {
		text = appendOnce(text, TimePressure)
	}
	if profile.IsFormal() {
		text = replace(text, contractions)
	}
	return text
}

func appendOnce(text, sentence string) string {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if strings.HasSuffix(trimmed, sentence) {
		return text
	}
	if trimmed == "" {
		return sentence
	}
	return trimmed + " " + sentence
}

// #endregion apply
