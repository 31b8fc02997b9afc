package coach

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/danielpatrickdp/negotiation-coach/internal/character"
	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
	"github.com/danielpatrickdp/negotiation-coach/internal/logging"
	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/sessionstore"
	"github.com/danielpatrickdp/negotiation-coach/internal/state"
	"github.com/danielpatrickdp/negotiation-coach/internal/strategy"
)

// #region helpers

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newEngine() *engine.Engine {
	cfg := engine.DefaultConfig()
	cfg.Picker = strategy.FirstTemplate
	cfg.Clock = func() time.Time { return epoch }
	return engine.New(cfg)
}

func scenario() []conversation.Turn {
	texts := []string{
		"Hello, let's start",
		"Nice to meet you.",
		"I was thinking around $22,000.",
		"That is higher than I had in mind.",
		"Let's make this work with warranty included.",
		"I will think it over.",
		"Great, let's finalize the deal.",
	}
	turns := make([]conversation.Turn, len(texts))
	for i, text := range texts {
		speaker := conversation.Self
		if i%2 == 1 {
			speaker = conversation.Counterpart
		}
		turns[i] = conversation.Turn{SequenceIndex: i, Speaker: speaker, Text: text, Timestamp: epoch.Add(time.Duration(i) * time.Minute)}
	}
	return turns
}

func tempStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.NewStore(filepath.Join(t.TempDir(), "coach.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// failingSnapshots accepts loads and deletes but fails every save after the first.
type failingSnapshots struct {
	saves int
}

func (f *failingSnapshots) Save(context.Context, string, engine.State) error {
	f.saves++
	if f.saves > 1 {
		return errors.New("write refused")
	}
	return nil
}

func (f *failingSnapshots) Load(context.Context, string) (engine.State, error) {
	return engine.State{}, engine.ErrSessionNotFound
}

func (f *failingSnapshots) Delete(context.Context, string) error { return nil }

// #endregion helpers

// #region memory-tests

func TestInMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := New(newEngine(), Options{})

	id, err := svc.StartSession(ctx, "")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated session id")
	}

	var last engine.Annotation
	for _, turn := range scenario() {
		last, err = svc.ProcessTurn(ctx, id, turn)
		if err != nil {
			t.Fatalf("ProcessTurn: %v", err)
		}
	}
	if last.Phase != phase.Closing {
		t.Errorf("expected closing phase, got %v", last.Phase)
	}

	reply, err := svc.GenerateReply(ctx, id, ReplyRequest{Profile: character.Profile{Name: "Dealer"}})
	if err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if reply.Text == "" || reply.Strategy == "" {
		t.Errorf("expected reply, got %+v", reply)
	}

	report, err := svc.EndSession(ctx, id)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	want := newEngine().Assess(scenario())
	if report.Scores != want.Scores || report.TurnCount != want.TurnCount {
		t.Errorf("streamed report %+v differs from batch %+v", report, want)
	}

	if _, err := svc.ProcessTurn(ctx, id, scenario()[0]); !errors.Is(err, engine.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after end, got %v", err)
	}
}

func TestRejectedTurnIsNotAnError(t *testing.T) {
	ctx := context.Background()
	store := tempStore(t)
	svc := New(newEngine(), Options{Snapshots: store, Store: store})
	svc.StartSession(ctx, "s1")

	ann, err := svc.ProcessTurn(ctx, "s1", conversation.Turn{SequenceIndex: 0, Speaker: "narrator", Text: "hi"})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if ann.Result.Applied || !errors.Is(ann.Result.Err(), engine.ErrMalformedTurn) {
		t.Errorf("expected soft failure, got %+v", ann.Result)
	}
	rows, _ := logging.ListAnnotations(store.DB(), "s1")
	if len(rows) != 1 || rows[0].Applied {
		t.Errorf("expected rejected turn logged, got %+v", rows)
	}
	versions, _ := store.ListVersions("s1", 10)
	if len(versions) != 1 {
		t.Errorf("rejected turn should not commit a version, got %d", len(versions))
	}
}

func TestCommitFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	svc := New(newEngine(), Options{Snapshots: &failingSnapshots{}})
	if _, err := svc.StartSession(ctx, "s1"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := svc.ProcessTurn(ctx, "s1", scenario()[0]); err == nil {
		t.Fatal("expected commit error")
	}
	st, err := svc.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if st.TurnCount != 0 {
		t.Errorf("expected previous state kept, got turn count %d", st.TurnCount)
	}
}

// #endregion memory-tests

// #region sqlite-tests

func TestSQLiteSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := tempStore(t)
	turns := scenario()

	first := New(newEngine(), Options{Snapshots: store, Store: store})
	first.StartSession(ctx, "s1")
	for _, turn := range turns[:3] {
		if _, err := first.ProcessTurn(ctx, "s1", turn); err != nil {
			t.Fatalf("ProcessTurn: %v", err)
		}
	}

	// A fresh engine picks the session up from the store.
	second := New(newEngine(), Options{Snapshots: store, Store: store})
	for _, turn := range turns[3:] {
		if _, err := second.ProcessTurn(ctx, "s1", turn); err != nil {
			t.Fatalf("ProcessTurn after restart: %v", err)
		}
	}
	if _, err := second.GenerateReply(ctx, "s1", ReplyRequest{Instructions: `{"primary_interests":["a quick close"]}`}); err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	report, err := second.EndSession(ctx, "s1")
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	want := newEngine().Assess(turns)
	if report.Scores != want.Scores || report.FinalPhase != want.FinalPhase {
		t.Errorf("restart changed the outcome: %+v vs %+v", report, want)
	}
	saved, err := store.GetReport("s1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if saved.Overall != report.Overall {
		t.Errorf("archived report mismatch")
	}

	rows, _ := logging.ListAnnotations(store.DB(), "s1")
	if len(rows) != len(turns) {
		t.Errorf("expected %d annotation rows, got %d", len(turns), len(rows))
	}
	usage, _ := logging.StrategyUsage(store.DB())
	if len(usage) != 1 || usage[0].Count != 1 {
		t.Errorf("expected one logged reply, got %+v", usage)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, engine.ErrSessionNotFound) {
		t.Errorf("ended session should not load, got %v", err)
	}
}

// #endregion sqlite-tests

// #region redis-tests

func TestRedisSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	snaps := sessionstore.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), sessionstore.Config{})
	t.Cleanup(func() { snaps.Close() })

	a := New(newEngine(), Options{Snapshots: snaps, Locker: snaps})
	b := New(newEngine(), Options{Snapshots: snaps, Locker: snaps})

	if _, err := a.StartSession(ctx, "shared"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	// Alternate instances turn by turn.
	for i, turn := range scenario() {
		svc := a
		if i%2 == 1 {
			svc = b
		}
		ann, err := svc.ProcessTurn(ctx, "shared", turn)
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if !ann.Result.Applied {
			t.Fatalf("turn %d rejected: %s", i, ann.Result.Diagnostic)
		}
	}

	st, err := b.Session(ctx, "shared")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	want, _ := newEngine().Run(scenario())
	if st.Scores != want.Scores || st.TurnCount != want.TurnCount || st.TrustLevel != want.TrustLevel {
		t.Errorf("shared state %+v differs from single run %+v", st, want)
	}

	if _, err := a.EndSession(ctx, "shared"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, err := b.ProcessTurn(ctx, "shared", conversation.Turn{SequenceIndex: 99, Speaker: conversation.Self}); !errors.Is(err, engine.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on other instance, got %v", err)
	}
}

// #endregion redis-tests

// #region batch-tests

func TestAssess(t *testing.T) {
	svc := New(newEngine(), Options{})
	report := svc.Assess(context.Background(), scenario())
	if report.TurnCount != 7 || report.FinalPhase != phase.Closing {
		t.Errorf("unexpected report %+v", report)
	}
	reports, err := svc.AssessMany(context.Background(), [][]conversation.Turn{scenario(), scenario()[:2]})
	if err != nil {
		t.Fatalf("AssessMany: %v", err)
	}
	if len(reports) != 2 || reports[1].TurnCount != 2 {
		t.Errorf("unexpected batch reports %+v", reports)
	}
	if svc.Analytics().ActiveSessions != 0 {
		t.Error("assessment should not create sessions")
	}
}

// #endregion batch-tests
