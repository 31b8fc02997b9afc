package logging

import "time"

// #region annotation-entry
// AnnotationEntry is a single row in the annotation_log table.
type AnnotationEntry struct {
	SessionID    string
	Sequence     int
	Speaker      string
	Text         string
	BundleJSON   string
	FeedbackJSON string
	ScoresJSON   string
	Phase        string
	Applied      bool
	Diagnostic   string
	CreatedAt    time.Time
}
// #endregion annotation-entry

// #region reply-entry
// ReplyEntry is a single row in the reply_log table.
type ReplyEntry struct {
	SessionID     string
	Strategy      string
	Text          string
	ReasoningJSON string
	CreatedAt     time.Time
}

// StrategyCount is how often one strategy was used across logged replies.
type StrategyCount struct {
	Strategy string `json:"strategy"`
	Count    int    `json:"count"`
}
// #endregion reply-entry
