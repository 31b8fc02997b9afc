package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/danielpatrickdp/negotiation-coach/internal/character"
	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
	"github.com/danielpatrickdp/negotiation-coach/internal/strategy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// #region helpers

var epoch = time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	cfg := DefaultConfig()
	cfg.Picker = strategy.FirstTemplate
	cfg.Clock = func() time.Time { return epoch }
	return New(cfg)
}

// transcript builds alternating turns starting with the learner.
func transcript(texts ...string) []conversation.Turn {
	turns := make([]conversation.Turn, len(texts))
	for i, text := range texts {
		speaker := conversation.Self
		if i%2 == 1 {
			speaker = conversation.Counterpart
		}
		turns[i] = conversation.Turn{
			SequenceIndex: i,
			Speaker:       speaker,
			Text:          text,
			Timestamp:     epoch.Add(time.Duration(i) * time.Minute),
		}
	}
	return turns
}

func learnerOnly(texts ...string) []conversation.Turn {
	turns := make([]conversation.Turn, len(texts))
	for i, text := range texts {
		turns[i] = conversation.Turn{SequenceIndex: i, Speaker: conversation.Self, Text: text, Timestamp: epoch}
	}
	return turns
}

var exampleScenario = transcript(
	"Hello, let's start",
	"Nice to meet you.",
	"I was thinking around $22,000.",
	"That is higher than I had in mind.",
	"Let's make this work with warranty included.",
	"I will think it over.",
	"Great, let's finalize the deal.",
)

// #endregion helpers

// #region scenario-tests

func TestExampleScenario(t *testing.T) {
	e := newTestEngine()
	st, anns := e.Run(exampleScenario)

	var learnerPhases []phase.Phase
	for _, a := range anns {
		if !a.Result.Applied {
			t.Fatalf("turn %d rejected: %s", a.Turn.SequenceIndex, a.Result.Diagnostic)
		}
		if a.Turn.IsLearner() {
			learnerPhases = append(learnerPhases, a.Phase)
		}
	}
	want := []phase.Phase{phase.Opening, phase.Bargaining, phase.Bargaining, phase.Closing}
	if !reflect.DeepEqual(learnerPhases, want) {
		t.Fatalf("learner phases = %v, want %v", learnerPhases, want)
	}

	priceTurn := anns[2]
	if priceTurn.Bundle.HasTactic() {
		t.Errorf("expected no tactic on price turn, got %q", priceTurn.Bundle.Tactic)
	}
	if priceTurn.Scores.ClaimingValue != 20 {
		t.Errorf("expected price anchor bonus, claiming = %f", priceTurn.Scores.ClaimingValue)
	}
	warrantyTurn := anns[4]
	if warrantyTurn.Scores.CreatingValue != 25 {
		t.Errorf("expected warranty bonus, creating = %f", warrantyTurn.Scores.CreatingValue)
	}

	if st.Scores != (scoring.ScoreSet{ClaimingValue: 20, CreatingValue: 25}) {
		t.Errorf("unexpected final scores %+v", st.Scores)
	}
	if st.TurnCount != len(exampleScenario) {
		t.Errorf("expected turn count %d, got %d", len(exampleScenario), st.TurnCount)
	}
	if math.Abs(st.TrustLevel-0.6) > 1e-9 {
		t.Errorf("expected trust 0.6 after one positive learner turn, got %f", st.TrustLevel)
	}
}

func TestCanonicalPhaseOrdering(t *testing.T) {
	e := newTestEngine()
	_, anns := e.Run(learnerOnly(
		"Hi there, good to meet you.",
		"I've been looking at this model for a while.",
		"Would you take $20,000 for it?",
		"Great, let's finalize the deal.",
	))
	want := []phase.Phase{phase.Opening, phase.Opening, phase.Bargaining, phase.Closing}
	for i, a := range anns {
		if a.Phase != want[i] {
			t.Errorf("turn %d: phase = %v, want %v", i, a.Phase, want[i])
		}
		if i > 0 && a.Phase < anns[i-1].Phase {
			t.Errorf("turn %d: phase retreated", i)
		}
	}
}

// #endregion scenario-tests

// #region property-tests

var phrasePool = []string{
	"Thank you, I appreciate it.",
	"That's ridiculous, no way.",
	"I'm frustrated and upset.",
	"We both want a win-win together.",
	"I have another option elsewhere.",
	"What if we bundle the warranty?",
	"Why is that important to you?",
	"My first offer is $25,000.",
	"Is that your best price? Really?",
	"",
	"Okay.",
	"Let's close the deal.",
}

func TestScoresAlwaysClamped(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	for i := 0; i < 300; i++ {
		speaker := conversation.Self
		if i%3 == 2 {
			speaker = conversation.Counterpart
		}
		turn := conversation.Turn{SequenceIndex: i, Speaker: speaker, Text: phrasePool[(i*7)%len(phrasePool)]}
		var a Annotation
		st, a = e.Step(st, turn)
		if !a.Scores.Valid() {
			t.Fatalf("turn %d: scores out of range %+v", i, a.Scores)
		}
		if st.TrustLevel < 0 || st.TrustLevel > 1 {
			t.Fatalf("turn %d: trust out of range %f", i, st.TrustLevel)
		}
		if len(st.Feedback) > e.Rules().FeedbackLogSize {
			t.Fatalf("turn %d: feedback log grew to %d", i, len(st.Feedback))
		}
	}
}

func TestDeterminism(t *testing.T) {
	a, annsA := newTestEngine().Run(exampleScenario)
	b, annsB := newTestEngine().Run(exampleScenario)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("final states differ:\n%+v\n%+v", a, b)
	}
	for i := range annsA {
		if annsA[i].Scores != annsB[i].Scores || annsA[i].Phase != annsB[i].Phase {
			t.Errorf("turn %d differs", i)
		}
	}
}

func TestBatchStreamingEquivalence(t *testing.T) {
	e := newTestEngine()
	turns := transcript(phrasePool...)

	batch, _ := e.Run(turns)

	e.Start("stream")
	for _, turn := range turns {
		if _, _, err := e.Process("stream", turn); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	stream, err := e.Snapshot("stream")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !reflect.DeepEqual(batch, stream) {
		t.Errorf("batch and streaming differ:\nbatch  %+v\nstream %+v", batch, stream)
	}
	if e.Assess(turns).Scores != batch.Scores {
		t.Error("Assess disagrees with Run")
	}
}

// #endregion property-tests

// #region soft-failure-tests

func TestStep_MalformedTurnKeepsState(t *testing.T) {
	e := newTestEngine()
	st, _ := e.Run(learnerOnly("I appreciate it."))

	tests := []struct {
		name string
		turn conversation.Turn
	}{
		{"unknown speaker", conversation.Turn{SequenceIndex: 5, Speaker: "narrator", Text: "thank you"}},
		{"replayed sequence", conversation.Turn{SequenceIndex: 0, Speaker: conversation.Self, Text: "thank you"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, a := e.Step(st, tt.turn)
			if !reflect.DeepEqual(next, st) {
				t.Errorf("state changed on malformed turn")
			}
			if a.Result.Applied || a.Result.Diagnostic == "" {
				t.Errorf("expected soft failure with diagnostic, got %+v", a.Result)
			}
			if !errors.Is(a.Result.Err(), ErrMalformedTurn) {
				t.Errorf("expected ErrMalformedTurn, got %v", a.Result.Err())
			}
		})
	}
}

func TestStep_EmptyTextIsProcessed(t *testing.T) {
	e := newTestEngine()
	st, a := e.Step(NewState(), conversation.Turn{SequenceIndex: 0, Speaker: conversation.Self})
	if !a.Result.Applied || st.TurnCount != 1 {
		t.Errorf("expected empty turn to count, got %+v", a.Result)
	}
	if a.Bundle.Sentiment != "neutral" {
		t.Errorf("expected neutral bundle, got %+v", a.Bundle)
	}
}

func TestStep_InvariantFailureKeepsState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules.TrustGain = math.NaN()
	e := New(cfg)

	prev := NewState()
	next, a := e.Step(prev, conversation.Turn{SequenceIndex: 0, Speaker: conversation.Self, Text: "Great, thank you!"})
	if !reflect.DeepEqual(next, prev) {
		t.Error("expected previous state on invariant failure")
	}
	if !errors.Is(a.Result.Err(), ErrInvariant) {
		t.Errorf("expected ErrInvariant, got %v", a.Result.Err())
	}
	if a.Result.Applied {
		t.Error("expected Applied=false")
	}
}

func TestResult_AppliedHasNoError(t *testing.T) {
	if err := applied().Err(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

// #endregion soft-failure-tests

// #region state-tests

func TestStep_TacticsTrustConcessions(t *testing.T) {
	e := newTestEngine()
	st, _ := e.Run(transcript(
		"This is my starting point and there is a deadline.",
		"I could consider a lower figure.",
		"I'm willing to compromise, this is great.",
		"Fine.",
		"That's my starting point again, terrible and awful.",
		"My boss says the deadline is firm.",
	))
	want := []rules.Tactic{rules.TacticAnchoring}
	if !reflect.DeepEqual(st.DetectedTactics, want) {
		t.Errorf("tactics = %v, want %v (learner only, deduplicated)", st.DetectedTactics, want)
	}
	if st.ConcessionsGiven != 1 || st.ConcessionsReceived != 1 {
		t.Errorf("concessions given/received = %d/%d, want 1/1", st.ConcessionsGiven, st.ConcessionsReceived)
	}
	if math.Abs(st.TrustLevel-0.55) > 1e-9 {
		t.Errorf("expected trust 0.55, got %f", st.TrustLevel)
	}
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	e := newTestEngine()
	st, _ := e.Run(learnerOnly("Our starting point is fixed."))
	before := st.Clone()
	e.Step(st, conversation.Turn{SequenceIndex: 1, Speaker: conversation.Self, Text: "My boss agrees. That's ridiculous."})
	if !reflect.DeepEqual(st, before) {
		t.Error("Step mutated its input state")
	}
}

// #endregion state-tests

// #region reply-tests

func TestReply_AggressiveCounterAnchor(t *testing.T) {
	e := newTestEngine()
	profile := character.Profile{Behavior: character.Behavior{Aggressiveness: character.Float(0.8)}}
	for _, last := range []string{"My first offer is where we start.", "My first offer stands, do you accept?"} {
		st, _ := e.Run(learnerOnly("hello", "ok", "fine", last))
		r := e.Reply(st, profile, character.Instructions{})
		if r.Strategy != strategy.CounterAnchor {
			t.Errorf("phase %v: expected CounterAnchor, got %s", st.Phase, r.Strategy)
		}
		if r.Reasoning.Strategy != strategy.CounterAnchor {
			t.Errorf("reasoning strategy mismatch")
		}
	}
}

func TestReply_AppliesPersona(t *testing.T) {
	e := newTestEngine()
	st, _ := e.Run(learnerOnly("Okay."))
	profile := character.Profile{
		Behavior:           character.Behavior{Patience: character.Float(0.1)},
		CommunicationStyle: "formal",
	}
	r := e.Reply(st, profile, character.Instructions{})
	if r.Strategy != strategy.InterestBased {
		t.Fatalf("expected InterestBased, got %s", r.Strategy)
	}
	want := "I understand your position. Let me share what is important to me in this situation, and I would like to understand what matters most to you. That way we can find a solution that works for both of us. We need to move on this quickly."
	if r.Text != want {
		t.Errorf("reply =\n%q\nwant\n%q", r.Text, want)
	}
}

// #endregion reply-tests

// #region session-tests

func TestSessionLifecycle(t *testing.T) {
	e := newTestEngine()
	e.Start("s1")
	for _, turn := range exampleScenario {
		if _, _, err := e.Process("s1", turn); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if _, err := e.ReplyFor("s1", character.Profile{}, character.Instructions{}); err != nil {
		t.Fatalf("ReplyFor: %v", err)
	}
	report, final, err := e.End("s1")
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if report.Scores != final.Scores || report.FinalPhase != phase.Closing {
		t.Errorf("unexpected report %+v", report)
	}
	if _, _, err := e.Process("s1", exampleScenario[0]); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after End, got %v", err)
	}
	if _, _, err := e.End("s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on double End, got %v", err)
	}
}

func TestStart_Resets(t *testing.T) {
	e := newTestEngine()
	e.Start("s1")
	e.Process("s1", exampleScenario[0])
	e.Start("s1")
	st, err := e.Snapshot("s1")
	if err != nil {
		t.Fatal(err)
	}
	if st.TurnCount != 0 || st.Phase != phase.Opening || st.TrustLevel != InitialTrust {
		t.Errorf("expected reset state, got %+v", st)
	}
}

func TestConcurrentSessions(t *testing.T) {
	e := newTestEngine()
	const sessions = 16
	var wg sync.WaitGroup
	for s := 0; s < sessions; s++ {
		id := fmt.Sprintf("session-%d", s)
		e.Start(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, turn := range exampleScenario {
				e.Process(id, turn)
			}
		}()
	}
	wg.Wait()

	want, _ := e.Run(exampleScenario)
	for _, id := range e.Sessions() {
		st, err := e.Snapshot(id)
		if err != nil {
			t.Fatal(err)
		}
		if st.Scores != want.Scores || st.TurnCount != want.TurnCount {
			t.Errorf("%s: got %+v, want %+v", id, st.Scores, want.Scores)
		}
	}
	a := e.Analytics()
	if a.ActiveSessions != sessions || a.TotalTurns != sessions*len(exampleScenario) {
		t.Errorf("unexpected analytics %+v", a)
	}
}

func TestSameSessionSerialized(t *testing.T) {
	e := newTestEngine()
	e.Start("shared")
	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				seq := w*perWorker + i
				a, _, err := e.Process("shared", conversation.Turn{SequenceIndex: seq, Speaker: conversation.Self, Text: "thank you"})
				if err != nil {
					t.Error(err)
					return
				}
				if a.Result.Applied {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	st, _ := e.Snapshot("shared")
	if st.TurnCount != applied {
		t.Errorf("turn count %d does not match %d applied turns", st.TurnCount, applied)
	}
}

// #endregion session-tests

// #region assess-many-tests

func TestAssessMany(t *testing.T) {
	e := newTestEngine()
	transcripts := [][]conversation.Turn{
		exampleScenario,
		transcript(phrasePool...),
		nil,
	}
	reports, err := e.AssessMany(context.Background(), transcripts)
	if err != nil {
		t.Fatalf("AssessMany: %v", err)
	}
	for i, turns := range transcripts {
		if want := e.Assess(turns); !reflect.DeepEqual(reports[i], want) {
			t.Errorf("report %d differs from sequential assessment", i)
		}
	}
}

func TestAssessMany_Cancelled(t *testing.T) {
	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.AssessMany(ctx, [][]conversation.Turn{exampleScenario}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// #endregion assess-many-tests

func TestProcessFunc_CommitHook(t *testing.T) {
	e := newTestEngine()
	e.Start("s1")

	var committed []int
	commit := func(st State) error {
		committed = append(committed, st.TurnCount)
		return nil
	}
	for _, turn := range exampleScenario[:2] {
		if _, _, err := e.ProcessFunc("s1", turn, commit); err != nil {
			t.Fatalf("ProcessFunc: %v", err)
		}
	}
	// Rejected turns are not committed.
	e.ProcessFunc("s1", exampleScenario[0], commit)
	if !reflect.DeepEqual(committed, []int{1, 2}) {
		t.Fatalf("expected commits [1 2], got %v", committed)
	}

	boom := errors.New("disk full")
	_, _, err := e.ProcessFunc("s1", exampleScenario[2], func(State) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected commit error, got %v", err)
	}
	st, _ := e.Snapshot("s1")
	if st.TurnCount != 2 {
		t.Errorf("failed commit should keep previous state, got turn count %d", st.TurnCount)
	}
}

func TestRestoreIfAbsent(t *testing.T) {
	e := newTestEngine()
	st := NewState()
	st.TurnCount = 4
	if !e.RestoreIfAbsent("s1", st) {
		t.Fatal("expected restore")
	}
	if e.RestoreIfAbsent("s1", NewState()) {
		t.Fatal("expected live session to be kept")
	}
	got, _ := e.Snapshot("s1")
	if got.TurnCount != 4 {
		t.Errorf("expected restored state, got %d", got.TurnCount)
	}
}
