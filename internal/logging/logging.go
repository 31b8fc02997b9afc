package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
	"github.com/danielpatrickdp/negotiation-coach/internal/strategy"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region logger
// NewLogger builds a production zap logger at the given level
// ("debug", "info", "warn", "error").
func NewLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	// stdout carries MCP and CLI output.
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
// #endregion logger

// #region log-annotation
// NewAnnotationEntry flattens an annotation into a log row.
func NewAnnotationEntry(sessionID string, ann engine.Annotation) (AnnotationEntry, error) {
	bundle, err := json.Marshal(ann.Bundle)
	if err != nil {
		return AnnotationEntry{}, fmt.Errorf("marshal bundle: %w", err)
	}
	feedback, err := json.Marshal(ann.Feedback)
	if err != nil {
		return AnnotationEntry{}, fmt.Errorf("marshal feedback: %w", err)
	}
	scores, err := json.Marshal(ann.Scores)
	if err != nil {
		return AnnotationEntry{}, fmt.Errorf("marshal scores: %w", err)
	}
	return AnnotationEntry{
		SessionID:    sessionID,
		Sequence:     ann.Turn.SequenceIndex,
		Speaker:      string(ann.Turn.Speaker),
		Text:         ann.Turn.Text,
		BundleJSON:   string(bundle),
		FeedbackJSON: string(feedback),
		ScoresJSON:   string(scores),
		Phase:        ann.Phase.String(),
		Applied:      ann.Result.Applied,
		Diagnostic:   ann.Result.Diagnostic,
	}, nil
}

// LogAnnotation writes an entry to the annotation_log table.
func LogAnnotation(db *sql.DB, entry AnnotationEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	applied := 0
	if entry.Applied {
		applied = 1
	}

	_, err := db.Exec(
		`INSERT INTO annotation_log (session_id, sequence, speaker, text, bundle_json, feedback_json, scores_json, phase, applied, diagnostic, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.Sequence,
		entry.Speaker,
		entry.Text,
		nullIfEmpty(entry.BundleJSON),
		nullIfEmpty(entry.FeedbackJSON),
		nullIfEmpty(entry.ScoresJSON),
		entry.Phase,
		applied,
		nullIfEmpty(entry.Diagnostic),
		entry.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log annotation: %w", err)
	}
	return nil
}

// ListAnnotations returns a session's logged annotations in sequence order.
func ListAnnotations(db *sql.DB, sessionID string) ([]AnnotationEntry, error) {
	rows, err := db.Query(
		`SELECT session_id, sequence, speaker, text, COALESCE(bundle_json, ''), COALESCE(feedback_json, ''),
		        COALESCE(scores_json, ''), phase, applied, COALESCE(diagnostic, ''), created_at
		 FROM annotation_log WHERE session_id = ? ORDER BY id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	var out []AnnotationEntry
	for rows.Next() {
		var e AnnotationEntry
		var applied int
		var created string
		if err := rows.Scan(&e.SessionID, &e.Sequence, &e.Speaker, &e.Text, &e.BundleJSON, &e.FeedbackJSON,
			&e.ScoresJSON, &e.Phase, &applied, &e.Diagnostic, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Applied = applied == 1
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion log-annotation

// #region log-reply
// NewReplyEntry flattens a generated reply into a log row.
func NewReplyEntry(sessionID string, r strategy.Reply) (ReplyEntry, error) {
	reasoning, err := json.Marshal(r.Reasoning)
	if err != nil {
		return ReplyEntry{}, fmt.Errorf("marshal reasoning: %w", err)
	}
	return ReplyEntry{
		SessionID:     sessionID,
		Strategy:      string(r.Strategy),
		Text:          r.Text,
		ReasoningJSON: string(reasoning),
	}, nil
}

// LogReply writes an entry to the reply_log table.
func LogReply(db *sql.DB, entry ReplyEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO reply_log (session_id, strategy, text, reasoning_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.Strategy,
		entry.Text,
		nullIfEmpty(entry.ReasoningJSON),
		entry.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log reply: %w", err)
	}
	return nil
}

// StrategyUsage counts logged replies per strategy, most used first.
func StrategyUsage(db *sql.DB) ([]StrategyCount, error) {
	rows, err := db.Query(
		`SELECT strategy, COUNT(*) FROM reply_log GROUP BY strategy ORDER BY COUNT(*) DESC, strategy`,
	)
	if err != nil {
		return nil, fmt.Errorf("strategy usage: %w", err)
	}
	defer rows.Close()

	var out []StrategyCount
	for rows.Next() {
		var c StrategyCount
		if err := rows.Scan(&c.Strategy, &c.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
// #endregion log-reply

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
