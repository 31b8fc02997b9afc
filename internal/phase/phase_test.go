package phase

import (
	"encoding/json"
	"testing"

	"github.com/danielpatrickdp/negotiation-coach/internal/signals"
)

// #region transition-tests

func TestCandidate_Priority(t *testing.T) {
	m := NewMachine(3)
	tests := []struct {
		name      string
		text      string
		turnCount int
		current   Phase
		want      Phase
	}{
		{"opening window wins", "$20,000, deal?", 2, Opening, Opening},
		{"monetary over closing", "$20,000 and we have a deal", 3, Opening, Bargaining},
		{"bare amount", "how about 21500", 3, Opening, Bargaining},
		{"plural closing keyword", "Sounds like these deals work", 4, Bargaining, Closing},
		{"closing over question", "Can we close this?", 4, Exploration, Closing},
		{"question", "What matters to you?", 4, Opening, Exploration},
		{"retain", "Sounds reasonable.", 5, Bargaining, Bargaining},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := signals.Extract(tt.text, tt.turnCount-1)
			if got := m.Candidate(tt.current, tt.turnCount, b); got != tt.want {
				t.Errorf("Candidate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNext_NeverRetreats(t *testing.T) {
	m := NewMachine(3)
	b := signals.Extract("Any questions?", 5)
	if got := m.Next(Closing, 6, b); got != Closing {
		t.Errorf("expected Closing to hold, got %v", got)
	}
	b = signals.Extract("hello", 0)
	if got := m.Next(Bargaining, 1, b); got != Bargaining {
		t.Errorf("opening window must not retreat, got %v", got)
	}
}

func TestCanonicalTranscript(t *testing.T) {
	m := NewMachine(3)
	turns := []string{
		"Hi, thanks for meeting me.",
		"I'm interested in the sedan.",
		"Would you take $20,000 for it?",
		"Great, let's finalize the deal.",
	}
	want := []Phase{Opening, Opening, Bargaining, Closing}
	p := Reset()
	for i, text := range turns {
		p = m.Next(p, i+1, signals.Extract(text, i))
		if p != want[i] {
			t.Fatalf("turn %d: phase = %v, want %v", i, p, want[i])
		}
	}
}

// #endregion transition-tests

// #region encoding-tests

func TestPhase_TextRoundTrip(t *testing.T) {
	data, err := json.Marshal(map[string]Phase{"p": Bargaining})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"p":"bargaining"}` {
		t.Errorf("unexpected encoding %s", data)
	}
	var out map[string]Phase
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["p"] != Bargaining {
		t.Errorf("expected bargaining, got %v", out["p"])
	}
}

func TestParse_Unknown(t *testing.T) {
	if _, err := Parse("haggling"); err == nil {
		t.Error("expected error for unknown phase")
	}
}

func TestNewMachine_Default(t *testing.T) {
	if m := NewMachine(0); m.OpeningTurns != 3 {
		t.Errorf("expected default 3, got %d", m.OpeningTurns)
	}
}

// #endregion encoding-tests
