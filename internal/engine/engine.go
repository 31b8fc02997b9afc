package engine

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/negotiation-coach/internal/character"
	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
	"github.com/danielpatrickdp/negotiation-coach/internal/eval"
	"github.com/danielpatrickdp/negotiation-coach/internal/persona"
	"github.com/danielpatrickdp/negotiation-coach/internal/phase"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
	"github.com/danielpatrickdp/negotiation-coach/internal/signals"
	"github.com/danielpatrickdp/negotiation-coach/internal/strategy"
)

// #region config

// Config wires the engine's collaborators. Zero values get defaults.
type Config struct {
	Rules  *rules.Table
	Picker strategy.Picker
	Eval   eval.EvalConfig
	Logger *zap.Logger
	Clock  func() time.Time
}

// DefaultConfig returns the built-in rule table with a random template picker.
func DefaultConfig() Config {
	return Config{
		Rules: rules.Default(),
		Eval:  eval.DefaultEvalConfig(),
	}
}

// #endregion config

// #region engine

// Engine runs the per-turn pipeline and owns the session registry.
// Apart from the registry it holds no mutable state.
type Engine struct {
	table     *rules.Table
	extractor *signals.Extractor
	machine   phase.Machine
	acc       *scoring.Accumulator
	selector  *strategy.Selector
	harness   *eval.EvalHarness
	sessions  *Registry
	log       *zap.Logger
	clock     func() time.Time
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.Rules == nil {
		cfg.Rules = rules.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Eval == (eval.EvalConfig{}) {
		cfg.Eval = eval.DefaultEvalConfig()
	}
	return &Engine{
		table:     cfg.Rules,
		extractor: signals.NewExtractor(cfg.Rules),
		machine:   phase.NewMachine(cfg.Rules.OpeningTurns),
		acc:       scoring.NewAccumulator(cfg.Rules),
		selector:  strategy.NewSelector(cfg.Picker),
		harness:   eval.NewEvalHarness(cfg.Eval),
		sessions:  NewRegistry(),
		log:       cfg.Logger,
		clock:     cfg.Clock,
	}
}

// Rules returns the rule table in use.
func (e *Engine) Rules() *rules.Table {
	return e.table
}

// #endregion engine

// #region step

// Step applies one turn to prev and returns the new state. On a malformed turn
// or a failed post-update check it returns prev unchanged and a Result with
// Applied=false. Step never mutates prev.
func (e *Engine) Step(prev State, turn conversation.Turn) (State, Annotation) {
	turnIndex := prev.TurnCount

	if reason := malformed(prev, turn); reason != "" {
		return prev, e.rejectedAnnotation(prev, turn, turnIndex, rejected(ErrMalformedTurn, reason))
	}

	b := e.extractor.Extract(turn.Text, turnIndex)
	next := prev.Clone()
	next.TurnCount++
	next.Phase = e.machine.Next(prev.Phase, next.TurnCount, b)
	next.LastSequence = turn.SequenceIndex
	next.LastUpdated = turn.Timestamp
	if next.LastUpdated.IsZero() {
		next.LastUpdated = e.clock()
	}

	if turn.IsLearner() {
		if b.HasTactic() && !containsTactic(next.DetectedTactics, b.Tactic) {
			next.DetectedTactics = append(next.DetectedTactics, b.Tactic)
		}
		switch b.Sentiment {
		case signals.Positive:
			next.TrustLevel = clamp01(next.TrustLevel + e.table.TrustGain)
		case signals.Negative:
			next.TrustLevel = clamp01(next.TrustLevel - e.table.TrustLoss)
		}
		if len(b.ConcessionIndicators) > 0 {
			next.ConcessionsGiven++
		}
		next.LastLearnerText = turn.Text
		next.LastLearnerIndex = turnIndex
	} else if len(b.ConcessionIndicators) > 0 {
		next.ConcessionsReceived++
	}

	scores, events := e.acc.Update(prev.Scores, b, turn)
	next.Scores = scores
	next.Feedback = scoring.AppendFeedback(prev.Feedback, events, turnIndex, e.table.FeedbackWindow, e.table.FeedbackLogSize)

	if res := e.harness.Run(prev.snapshot(), next.snapshot()); !res.Passed {
		return prev, e.rejectedAnnotation(prev, turn, turnIndex, rejected(ErrInvariant, res.Reason))
	}

	return next, Annotation{
		Turn:     turn,
		Bundle:   b,
		Feedback: events,
		Scores:   next.Scores,
		Overall:  next.Overall(),
		Phase:    next.Phase,
		Trust:    next.TrustLevel,
		Tips:     scoring.Tips(e.table, next.Scores, next.Feedback),
		Result:   applied(),
	}
}

// malformed returns a non-empty reason when turn cannot be applied to st.
func malformed(st State, turn conversation.Turn) string {
	if !turn.Speaker.Valid() {
		return fmt.Sprintf("unknown speaker %q", turn.Speaker)
	}
	if turn.SequenceIndex <= st.LastSequence {
		return fmt.Sprintf("sequence %d not after %d", turn.SequenceIndex, st.LastSequence)
	}
	return ""
}

func (e *Engine) rejectedAnnotation(prev State, turn conversation.Turn, turnIndex int, res Result) Annotation {
	e.log.Warn("turn rejected",
		zap.Int("sequence", turn.SequenceIndex),
		zap.String("speaker", string(turn.Speaker)),
		zap.String("reason", res.Diagnostic))
	return Annotation{
		Turn:     turn,
		Bundle:   signals.NeutralBundle(turnIndex),
		Feedback: []scoring.FeedbackEvent{},
		Scores:   prev.Scores,
		Overall:  prev.Overall(),
		Phase:    prev.Phase,
		Trust:    prev.TrustLevel,
		Tips:     scoring.Tips(e.table, prev.Scores, prev.Feedback),
		Result:   res,
	}
}

// #endregion step

// #region batch

// Run applies turns in order starting from a fresh state, exactly as if they
// had been streamed one at a time.
func (e *Engine) Run(turns []conversation.Turn) (State, []Annotation) {
	st := NewState()
	anns := make([]Annotation, 0, len(turns))
	for _, t := range turns {
		var a Annotation
		st, a = e.Step(st, t)
		anns = append(anns, a)
	}
	return st, anns
}

// Assess scores a whole transcript and returns the end-of-session report.
func (e *Engine) Assess(turns []conversation.Turn) scoring.Report {
	st, _ := e.Run(turns)
	return e.Report(st)
}

// AssessMany assesses independent transcripts in parallel. Reports are
// returned in input order.
func (e *Engine) AssessMany(ctx context.Context, transcripts [][]conversation.Turn) ([]scoring.Report, error) {
	reports := make([]scoring.Report, len(transcripts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, turns := range transcripts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = e.Assess(turns)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assess transcripts: %w", err)
	}
	return reports, nil
}

// Report builds the end-of-session report for st.
func (e *Engine) Report(st State) scoring.Report {
	return scoring.NewReport(scoring.Summary{
		Scores:              st.Scores,
		DetectedTactics:     st.DetectedTactics,
		ConcessionsGiven:    st.ConcessionsGiven,
		ConcessionsReceived: st.ConcessionsReceived,
		TurnCount:           st.TurnCount,
		FinalPhase:          st.Phase,
		TrustLevel:          st.TrustLevel,
		Tips:                scoring.Tips(e.table, st.Scores, st.Feedback),
	})
}

// #endregion batch

// #region reply

// Reply generates the counterpart's next utterance from st. The bundle is
// recomputed from the latest learner turn.
func (e *Engine) Reply(st State, profile character.Profile, in character.Instructions) strategy.Reply {
	b := e.extractor.Extract(st.LastLearnerText, st.LastLearnerIndex)
	draft := e.selector.Select(strategy.Input{
		Profile:      profile,
		Phase:        st.Phase,
		Bundle:       b,
		Instructions: in,
	})
	return strategy.Reply{
		Strategy:  draft.Kind,
		Text:      persona.Apply(draft.Text, profile),
		Reasoning: draft.Reasoning,
	}
}

// #endregion reply

// #region sessions

// Start creates or resets a session to the initial state.
func (e *Engine) Start(id string) State {
	st := NewState()
	st.LastUpdated = e.clock()
	e.sessions.Put(id, st)
	e.log.Debug("session started", zap.String("session_id", id))
	return st
}

// Restore installs a previously persisted state under id.
func (e *Engine) Restore(id string, st State) {
	e.sessions.Put(id, st)
}

// RestoreIfAbsent installs st under id unless the session is already live.
func (e *Engine) RestoreIfAbsent(id string, st State) bool {
	return e.sessions.PutIfAbsent(id, st)
}

// Process applies one turn to a live session. Soft failures are reported in
// the annotation's Result; the error is reserved for unknown sessions.
func (e *Engine) Process(id string, turn conversation.Turn) (Annotation, State, error) {
	return e.ProcessFunc(id, turn, nil)
}

// ProcessFunc is Process with a commit hook. commit runs while the session
// is still locked and only for applied turns; if it fails the session keeps
// its previous state and the error is returned.
func (e *Engine) ProcessFunc(id string, turn conversation.Turn, commit func(State) error) (Annotation, State, error) {
	var ann Annotation
	var out State
	err := e.sessions.Update(id, func(prev State) (State, error) {
		out, ann = e.Step(prev, turn)
		if commit != nil && ann.Result.Applied {
			if err := commit(out); err != nil {
				return prev, fmt.Errorf("commit turn %d: %w", turn.SequenceIndex, err)
			}
		}
		return out, nil
	})
	if err != nil {
		return Annotation{}, State{}, err
	}
	if !ann.Result.Applied {
		e.log.Warn("soft failure", zap.String("session_id", id),
			zap.Int("sequence", turn.SequenceIndex), zap.String("reason", ann.Result.Diagnostic))
	}
	return ann, out.Clone(), nil
}

// ReplyFor generates a reply for a live session.
func (e *Engine) ReplyFor(id string, profile character.Profile, in character.Instructions) (strategy.Reply, error) {
	st, err := e.sessions.Get(id)
	if err != nil {
		return strategy.Reply{}, err
	}
	return e.Reply(st, profile, in), nil
}

// Snapshot returns a copy of a live session's state.
func (e *Engine) Snapshot(id string) (State, error) {
	return e.sessions.Get(id)
}

// End removes a session and returns its final report.
func (e *Engine) End(id string) (scoring.Report, State, error) {
	st, err := e.sessions.Remove(id)
	if err != nil {
		return scoring.Report{}, State{}, err
	}
	return e.Report(st), st, nil
}

// Sessions returns the ids of live sessions.
func (e *Engine) Sessions() []string {
	return e.sessions.IDs()
}

// Analytics summarizes live sessions.
func (e *Engine) Analytics() Analytics {
	var a Analytics
	var trust float64
	for _, id := range e.sessions.IDs() {
		st, err := e.sessions.Get(id)
		if err != nil {
			continue
		}
		a.ActiveSessions++
		a.TotalTurns += st.TurnCount
		trust += st.TrustLevel
	}
	if a.ActiveSessions > 0 {
		a.AverageTrust = trust / float64(a.ActiveSessions)
	}
	return a
}

// #endregion sessions

// #region helpers

func containsTactic(list []rules.Tactic, t rules.Tactic) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
