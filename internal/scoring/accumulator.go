package scoring

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
	"github.com/danielpatrickdp/negotiation-coach/internal/signals"
)

// #region accumulator

// Accumulator applies the rule table's additive deltas to a ScoreSet.
type Accumulator struct {
	table *rules.Table
}

// NewAccumulator creates an Accumulator. A nil table uses rules.Default().
func NewAccumulator(table *rules.Table) *Accumulator {
	if table == nil {
		table = rules.Default()
	}
	return &Accumulator{table: table}
}

// Table returns the rule table in use.
func (a *Accumulator) Table() *rules.Table {
	return a.table
}

// #endregion accumulator

// #region update

// Update applies one turn to scores and returns the clamped result plus the
// feedback events the turn produced. Deltas are summed first and the result
// is clamped once. Feedback is only emitted for learner turns; the turn index
// comes from the bundle.
func (a *Accumulator) Update(scores ScoreSet, b signals.Bundle, turn conversation.Turn) (ScoreSet, []FeedbackEvent) {
	lower := strings.ToLower(turn.Text)
	learner := turn.IsLearner()
	var events []FeedbackEvent

	emit := func(sev rules.Severity, dim rules.Dimension, msg, tip string) {
		if !learner || msg == "" {
			return
		}
		events = append(events, FeedbackEvent{
			Severity:  sev,
			Dimension: dim,
			Message:   msg,
			TurnIndex: b.TurnIndex,
			Tip:       tip,
		})
	}

	for _, r := range a.table.Scoring {
		if r.LearnerOnly && !learner {
			continue
		}
		if !signals.ContainsAny(lower, r.Phrases) {
			continue
		}
		scores = scores.Add(r.Dimension, r.Delta)
		emit(r.Severity, r.Dimension, r.Message, r.Tip)
	}

	if ar := a.table.PriceAnchor; learner && b.TurnIndex < ar.MaxTurnIndex && b.MaxPrice() > ar.MinAmount {
		scores = scores.Add(ar.Dimension, ar.Delta)
		emit(ar.Severity, ar.Dimension, ar.Message, "")
	}

	if qr := a.table.Questions; learner && b.QuestionCount > 0 {
		scores = scores.Add(qr.Dimension, qr.DeltaPerQuestion*float64(b.QuestionCount))
		emit(qr.Severity, qr.FeedbackDimension, questionMessage(b.QuestionCount), "")
	}

	return scores.Clamp(), events
}

func questionMessage(n int) string {
	if n == 1 {
		return "Great questioning! You asked 1 probing question."
	}
	return fmt.Sprintf("Great questioning! You asked %d probing questions.", n)
}

// #endregion update

// #region feedback-log

// AppendFeedback adds events to log, then drops events older than the trailing
// window ending at latest and keeps at most size entries. Because pruning
// depends only on turn indexes, batch and streaming application agree.
func AppendFeedback(log, events []FeedbackEvent, latest, window, size int) []FeedbackEvent {
	out := make([]FeedbackEvent, 0, len(log)+len(events))
	for _, batch := range [][]FeedbackEvent{log, events} {
		for _, ev := range batch {
			if ev.TurnIndex > latest-window {
				out = append(out, ev)
			}
		}
	}
	if len(out) > size {
		out = out[len(out)-size:]
	}
	return out
}

// #endregion feedback-log
