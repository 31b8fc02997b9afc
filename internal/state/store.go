package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id        TEXT PRIMARY KEY,
	active_version_id TEXT,
	status            TEXT NOT NULL DEFAULT 'active',
	started_at        TEXT NOT NULL,
	ended_at          TEXT
);

CREATE TABLE IF NOT EXISTS state_versions (
	version_id    TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	parent_id     TEXT,
	state_json    TEXT NOT NULL,
	turn_count    INTEGER NOT NULL,
	phase         TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id),
	FOREIGN KEY (parent_id) REFERENCES state_versions(version_id)
);

CREATE INDEX IF NOT EXISTS idx_state_versions_session
ON state_versions(session_id, created_at);

CREATE TABLE IF NOT EXISTS annotation_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	sequence      INTEGER NOT NULL,
	speaker       TEXT NOT NULL,
	text          TEXT NOT NULL,
	bundle_json   TEXT,
	feedback_json TEXT,
	scores_json   TEXT,
	phase         TEXT NOT NULL,
	applied       INTEGER NOT NULL,
	diagnostic    TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reply_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL,
	strategy       TEXT NOT NULL,
	text           TEXT NOT NULL,
	reasoning_json TEXT,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_reports (
	session_id   TEXT PRIMARY KEY,
	overall      REAL NOT NULL,
	level        TEXT NOT NULL,
	report_json  TEXT NOT NULL,
	created_at   TEXT NOT NULL
);
`
// #endregion schema

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store keeps versioned per-session conversation state in SQLite, plus the
// annotation/reply logs and end-of-session reports.
type Store struct {
	db  *sql.DB
	now func() time.Time
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion close

// #region create-session
// CreateSession starts (or restarts) a session with st as its first version.
// Restarting keeps the old versions for inspection but moves the active pointer.
func (s *Store) CreateSession(sessionID string, st engine.State) (StateRecord, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return StateRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	_, err = tx.Exec(
		`INSERT INTO sessions (session_id, status, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET status = excluded.status, started_at = excluded.started_at, ended_at = NULL`,
		sessionID, StatusActive, now.Format(timeLayout),
	)
	if err != nil {
		return StateRecord{}, fmt.Errorf("upsert session: %w", err)
	}

	rec := StateRecord{VersionID: uuid.New().String(), SessionID: sessionID, State: st, CreatedAt: now}
	if err := insertVersion(tx, rec); err != nil {
		return StateRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return StateRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}
// #endregion create-session

// #region commit-state
// CommitState appends a new version to an active session and moves the
// active pointer to it atomically.
func (s *Store) CommitState(sessionID string, st engine.State) (StateRecord, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return StateRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRow(
		`SELECT active_version_id FROM sessions WHERE session_id = ? AND status = ?`,
		sessionID, StatusActive,
	).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return StateRecord{}, fmt.Errorf("commit %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return StateRecord{}, fmt.Errorf("get active: %w", err)
	}

	rec := StateRecord{
		VersionID: uuid.New().String(),
		SessionID: sessionID,
		ParentID:  parent.String,
		State:     st,
		CreatedAt: s.now(),
	}
	if err := insertVersion(tx, rec); err != nil {
		return StateRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return StateRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// insertVersion writes rec and points the session at it.
func insertVersion(tx *sql.Tx, rec StateRecord) error {
	stateJSON, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO state_versions (version_id, session_id, parent_id, state_json, turn_count, phase, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, rec.SessionID, nullIfEmpty(rec.ParentID), string(stateJSON),
		rec.State.TurnCount, rec.State.Phase.String(), rec.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	_, err = tx.Exec(`UPDATE sessions SET active_version_id = ? WHERE session_id = ?`, rec.VersionID, rec.SessionID)
	if err != nil {
		return fmt.Errorf("update active: %w", err)
	}
	return nil
}
// #endregion commit-state

// #region get-current
// GetCurrent reads the active version of an active session.
func (s *Store) GetCurrent(sessionID string) (StateRecord, error) {
	var versionID sql.NullString
	err := s.db.QueryRow(
		`SELECT active_version_id FROM sessions WHERE session_id = ? AND status = ?`,
		sessionID, StatusActive,
	).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !versionID.Valid) {
		return StateRecord{}, fmt.Errorf("get current %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return StateRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID.String)
}
// #endregion get-current

// #region get-version
// GetVersion retrieves a specific state version by ID.
func (s *Store) GetVersion(id string) (StateRecord, error) {
	row := s.db.QueryRow(
		`SELECT version_id, session_id, parent_id, state_json, created_at
		 FROM state_versions WHERE version_id = ?`, id,
	)
	rec, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StateRecord{}, fmt.Errorf("get version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return StateRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (StateRecord, error) {
	var rec StateRecord
	var parentID sql.NullString
	var stateJSON, createdStr string
	if err := row.Scan(&rec.VersionID, &rec.SessionID, &parentID, &stateJSON, &createdStr); err != nil {
		return StateRecord{}, err
	}
	rec.ParentID = parentID.String
	if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
		return StateRecord{}, fmt.Errorf("unmarshal state: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return rec, nil
}
// #endregion get-version

// #region rollback
// Rollback points a session back at one of its earlier versions.
func (s *Store) Rollback(sessionID, targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM state_versions WHERE version_id = ? AND session_id = ?`,
		targetVersionID, sessionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s of %s: %w", targetVersionID, sessionID, ErrNotFound)
	}

	_, err = s.db.Exec(`UPDATE sessions SET active_version_id = ? WHERE session_id = ?`, targetVersionID, sessionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
// #endregion rollback

// #region list
// ListVersions returns the most recent versions of a session, newest first.
func (s *Store) ListVersions(sessionID string, limit int) ([]StateRecord, error) {
	rows, err := s.db.Query(
		`SELECT version_id, session_id, parent_id, state_json, created_at
		 FROM state_versions WHERE session_id = ?
		 ORDER BY created_at DESC, turn_count DESC LIMIT ?`, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []StateRecord
	for rows.Next() {
		rec, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListSessions returns every session with its active turn count and phase.
func (s *Store) ListSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(
		`SELECT s.session_id, COALESCE(s.active_version_id, ''), s.status, s.started_at,
		        COALESCE(s.ended_at, ''), COALESCE(v.turn_count, 0), COALESCE(v.phase, '')
		 FROM sessions s LEFT JOIN state_versions v ON v.version_id = s.active_version_id
		 ORDER BY s.started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started, ended string
		if err := rows.Scan(&rec.SessionID, &rec.ActiveVersionID, &rec.Status, &started, &ended, &rec.TurnCount, &rec.Phase); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.StartedAt, _ = time.Parse(timeLayout, started)
		if ended != "" {
			rec.EndedAt, _ = time.Parse(timeLayout, ended)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
// #endregion list

// #region reports
// SaveReport stores the final report of a session and marks it ended.
// Sessions kept in another snapshot backend have no sessions row; the report
// is stored regardless.
func (s *Store) SaveReport(sessionID string, report scoring.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now().Format(timeLayout)
	_, err = tx.Exec(
		`INSERT INTO session_reports (session_id, overall, level, report_json, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET overall = excluded.overall, level = excluded.level,
		   report_json = excluded.report_json, created_at = excluded.created_at`,
		sessionID, report.Overall, report.Level, string(data), now,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	_, err = tx.Exec(`UPDATE sessions SET status = ?, ended_at = ? WHERE session_id = ?`, StatusEnded, now, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return tx.Commit()
}

// GetReport returns the stored report for a session.
func (s *Store) GetReport(sessionID string) (scoring.Report, error) {
	var data string
	err := s.db.QueryRow(`SELECT report_json FROM session_reports WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.Report{}, fmt.Errorf("report %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return scoring.Report{}, fmt.Errorf("get report: %w", err)
	}
	var report scoring.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return scoring.Report{}, fmt.Errorf("unmarshal report: %w", err)
	}
	return report, nil
}
// #endregion reports

// #region snapshot-store
// Save commits st as the session's next version, creating the session on
// first use.
func (s *Store) Save(_ context.Context, sessionID string, st engine.State) error {
	_, err := s.CommitState(sessionID, st)
	if errors.Is(err, ErrNotFound) {
		_, err = s.CreateSession(sessionID, st)
	}
	return err
}

// Load returns the active state of an active session. A missing session
// matches both ErrNotFound and engine.ErrSessionNotFound.
func (s *Store) Load(_ context.Context, sessionID string) (engine.State, error) {
	rec, err := s.GetCurrent(sessionID)
	if errors.Is(err, ErrNotFound) {
		return engine.State{}, fmt.Errorf("%w: %w", engine.ErrSessionNotFound, err)
	}
	if err != nil {
		return engine.State{}, err
	}
	return rec.State, nil
}

// Delete marks the session ended without a report. Its versions are kept.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET status = ?, ended_at = COALESCE(ended_at, ?) WHERE session_id = ?`,
		StatusEnded, s.now().Format(timeLayout), sessionID,
	)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
// #endregion snapshot-store

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
