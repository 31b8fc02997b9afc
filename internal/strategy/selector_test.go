package strategy

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/negotiation-coach/internal/character"
	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/signals"
)

// #region helpers

func profile(aggr float64, style string) character.Profile {
	return character.Profile{
		Behavior:         character.Behavior{Aggressiveness: character.Float(aggr)},
		NegotiationStyle: style,
	}
}

func selectText(t *testing.T, in Input) Draft {
	t.Helper()
	return NewSelector(FirstTemplate).Select(in)
}

// #endregion helpers

// #region cascade-tests

func TestSelect_CounterAnchorRegardlessOfPhase(t *testing.T) {
	b := signals.Extract("My first offer is the starting point.", 4)
	for _, p := range []phase.Phase{phase.Opening, phase.Exploration, phase.Bargaining, phase.Closing} {
		d := selectText(t, Input{Profile: profile(0.8, "aggressive"), Phase: p, Bundle: b})
		if d.Kind != CounterAnchor {
			t.Errorf("phase %v: expected CounterAnchor, got %s", p, d.Kind)
		}
		if d.Text != counterAnchorFirm {
			t.Errorf("phase %v: expected firm counter-anchor text", p)
		}
	}
}

func TestSelect_CounterAnchorSoftBand(t *testing.T) {
	b := signals.Extract("That's my starting point.", 0)
	d := selectText(t, Input{Profile: profile(0.65, ""), Bundle: b})
	if d.Kind != CounterAnchor || d.Text != counterAnchorSoft {
		t.Errorf("expected soft counter-anchor, got %s %q", d.Kind, d.Text)
	}
}

func TestSelect_Cascade(t *testing.T) {
	tests := []struct {
		name  string
		prof  character.Profile
		phase phase.Phase
		text  string
		want  Kind
	}{
		{"anchoring with mild character", profile(0.5, ""), phase.Bargaining, "My first offer stands.", InterestBased},
		{"exploration", profile(0.5, ""), phase.Exploration, "I'm willing to move.", StrategicDisclosure},
		{"concession", profile(0.5, ""), phase.Bargaining, "I'm willing to compromise.", ReciprocalConcession},
		{"collaborative urgency", profile(0.5, "collaborative"), phase.Bargaining, "It's urgent, I need it today.", CollaborativeUrgency},
		{"urgency without style", profile(0.5, "competitive"), phase.Bargaining, "It's urgent, I need it today.", InterestBased},
		{"missing aggressiveness", character.Profile{}, phase.Opening, "Our starting point is fixed.", InterestBased},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := selectText(t, Input{Profile: tt.prof, Phase: tt.phase, Bundle: signals.Extract(tt.text, 3)})
			if d.Kind != tt.want {
				t.Errorf("got %s, want %s", d.Kind, tt.want)
			}
			if d.Reasoning.Strategy != d.Kind || d.Reasoning.Rule == "" {
				t.Errorf("incomplete reasoning %+v", d.Reasoning)
			}
			if d.Text == "" {
				t.Error("expected draft text")
			}
		})
	}
}

// #endregion cascade-tests

// #region interest-based-tests

func TestSelect_TopicFamilies(t *testing.T) {
	tests := map[string]string{
		"What about the price":    "price",
		"The deadline worries me": "time",
		"Is the condition decent": "quality",
	}
	for text, topic := range tests {
		d := selectText(t, Input{Bundle: signals.Extract(text, 6), Phase: phase.Bargaining})
		if d.Kind != InterestBased {
			t.Fatalf("%q: expected InterestBased, got %s", text, d.Kind)
		}
		if d.Text != topicTemplates[topic][0] {
			t.Errorf("%q: expected %s template, got %q", text, topic, d.Text)
		}
	}
}

func TestSelect_InstructionPriority(t *testing.T) {
	b := signals.Extract("Okay.", 6)
	tests := []struct {
		name string
		in   character.Instructions
		want string
	}{
		{"primary", character.Instructions{PrimaryInterests: []string{"a quick close"}, KeyConstraints: []string{"budget"}, Context: "x"},
			"what's particularly important to me is a quick close."},
		{"constraint", character.Instructions{KeyConstraints: []string{"budget", "timing"}, Context: "x"},
			"constraints around budget and timing."},
		{"context", character.Instructions{Context: "management pressure"},
			"Given the context of this situation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := selectText(t, Input{Bundle: b, Phase: phase.Bargaining, Instructions: tt.in})
			if !strings.HasPrefix(d.Text, genericTemplates[0]) {
				t.Errorf("expected first generic template, got %q", d.Text)
			}
			if !strings.Contains(d.Text, tt.want) {
				t.Errorf("expected %q in %q", tt.want, d.Text)
			}
			if strings.Count(d.Text, "?") != strings.Count(genericTemplates[0], "?")+strings.Count(d.Reasoning.InstructionClause, "?") {
				t.Errorf("expected exactly one clause appended")
			}
		})
	}
}

func TestInstructionClause_StringValuedJSON(t *testing.T) {
	in := character.ParseInstructions(`{"primary_interests": "a reliable long-term buyer", "context": "slow month"}`)
	got := InstructionClause(in)
	if !strings.Contains(got, "particularly important to me is a reliable long-term buyer") {
		t.Errorf("expected primary-interest clause, got %q", got)
	}
}

func TestSelect_InjectablePicker(t *testing.T) {
	b := signals.Extract("Okay.", 6)
	for i, want := range genericTemplates {
		idx := i
		d := NewSelector(func(int) int { return idx }).Select(Input{Bundle: b, Phase: phase.Bargaining})
		if d.Text != want {
			t.Errorf("picker %d: got %q", i, d.Text)
		}
	}
	d := NewSelector(func(int) int { return 99 }).Select(Input{Bundle: b, Phase: phase.Bargaining})
	if d.Text != genericTemplates[0] {
		t.Errorf("out-of-range pick should fall back to 0")
	}
}

func TestSelect_DefaultPickerStaysInSet(t *testing.T) {
	s := NewSelector(nil)
	b := signals.Extract("Okay.", 6)
	for i := 0; i < 20; i++ {
		d := s.Select(Input{Bundle: b})
		found := false
		for _, tpl := range genericTemplates {
			if d.Text == tpl {
				found = true
			}
		}
		if !found {
			t.Fatalf("unexpected text %q", d.Text)
		}
	}
}

// #endregion interest-based-tests
