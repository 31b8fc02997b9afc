package state

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
)

// ErrNotFound is returned when a session or version does not exist.
var ErrNotFound = errors.New("not found")

// #region state-record
// StateRecord is one committed version of a session's conversation state.
type StateRecord struct {
	VersionID string
	SessionID string
	ParentID  string
	State     engine.State
	CreatedAt time.Time
}
// #endregion state-record

// #region session-record
// SessionRecord is a row of the sessions table.
type SessionRecord struct {
	SessionID       string
	ActiveVersionID string
	Status          string // "active" | "ended"
	StartedAt       time.Time
	EndedAt         time.Time
	TurnCount       int
	Phase           string
}

const (
	StatusActive = "active"
	StatusEnded  = "ended"
)
// #endregion session-record
