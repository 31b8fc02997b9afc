package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/negotiation-coach/internal/logging"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
	"github.com/danielpatrickdp/negotiation-coach/internal/state"
)

// #region inspect

func newInspectCmd(a *app) *cobra.Command {
	var dbPath, sessionID string
	var last int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect recorded sessions in the SQLite database",
		Long: `Without --session, lists recent sessions and strategy usage.
With --session, shows the session's versions, turn log and final report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = a.cfg.DBPath
			}
			store, err := state.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if sessionID != "" {
				return runDetailMode(w, store, sessionID, last, jsonOut)
			}
			return runListMode(w, store, last, jsonOut)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database (default from config)")
	cmd.Flags().IntVar(&last, "last", 10, "number of sessions or versions to show")
	cmd.Flags().StringVar(&sessionID, "session", "", "show one session in detail")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

// #endregion inspect

// #region list-mode

type listOutput struct {
	Sessions   []sessionRow            `json:"sessions"`
	Strategies []logging.StrategyCount `json:"strategies"`
}

type sessionRow struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Turns     int    `json:"turns"`
	Phase     string `json:"phase"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
}

func runListMode(w io.Writer, store *state.Store, last int, jsonOut bool) error {
	sessions, err := store.ListSessions(last)
	if err != nil {
		return err
	}
	usage, err := logging.StrategyUsage(store.DB())
	if err != nil {
		return err
	}

	out := listOutput{Sessions: make([]sessionRow, len(sessions)), Strategies: usage}
	for i, s := range sessions {
		out.Sessions[i] = sessionRow{
			SessionID: s.SessionID,
			Status:    s.Status,
			Turns:     s.TurnCount,
			Phase:     s.Phase,
			StartedAt: formatTime(s.StartedAt),
			EndedAt:   formatTime(s.EndedAt),
		}
	}
	if jsonOut {
		return writeJSON(w, out)
	}

	fmt.Fprintf(w, "%-10s %-8s %-6s %-12s %s\n", "SESSION", "STATUS", "TURNS", "PHASE", "STARTED")
	for _, s := range out.Sessions {
		fmt.Fprintf(w, "%-10s %-8s %-6d %-12s %s\n", shortID(s.SessionID), s.Status, s.Turns, s.Phase, s.StartedAt)
	}
	if len(usage) > 0 {
		fmt.Fprintf(w, "\nStrategy usage:\n")
		for _, u := range usage {
			fmt.Fprintf(w, "  %-24s %d\n", u.Strategy, u.Count)
		}
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	SessionID string                    `json:"session_id"`
	Versions  []versionRow              `json:"versions"`
	Turns     []logging.AnnotationEntry `json:"turns"`
	Report    *scoring.Report           `json:"report,omitempty"`
}

type versionRow struct {
	VersionID string  `json:"version_id"`
	ParentID  string  `json:"parent_id"`
	Turns     int     `json:"turns"`
	Phase     string  `json:"phase"`
	Overall   float64 `json:"overall"`
	Trust     float64 `json:"trust"`
	CreatedAt string  `json:"created_at"`
}

func runDetailMode(w io.Writer, store *state.Store, sessionID string, last int, jsonOut bool) error {
	versions, err := store.ListVersions(sessionID, last)
	if err != nil {
		return err
	}
	turns, err := logging.ListAnnotations(store.DB(), sessionID)
	if err != nil {
		return err
	}
	if len(versions) == 0 && len(turns) == 0 {
		return fmt.Errorf("session %s: %w", sessionID, state.ErrNotFound)
	}

	out := detailOutput{SessionID: sessionID, Versions: make([]versionRow, len(versions)), Turns: turns}
	for i, v := range versions {
		out.Versions[i] = versionRow{
			VersionID: v.VersionID,
			ParentID:  v.ParentID,
			Turns:     v.State.TurnCount,
			Phase:     v.State.Phase.String(),
			Overall:   v.State.Overall(),
			Trust:     v.State.TrustLevel,
			CreatedAt: formatTime(v.CreatedAt),
		}
	}
	report, err := store.GetReport(sessionID)
	switch {
	case err == nil:
		out.Report = &report
	case !errors.Is(err, state.ErrNotFound):
		return err
	}
	if jsonOut {
		return writeJSON(w, out)
	}

	fmt.Fprintf(w, "Session: %s\n\n", sessionID)
	fmt.Fprintf(w, "%-10s %-10s %-6s %-12s %-8s %-6s\n", "VERSION", "PARENT", "TURNS", "PHASE", "OVERALL", "TRUST")
	for _, v := range out.Versions {
		fmt.Fprintf(w, "%-10s %-10s %-6d %-12s %-8.2f %-6.2f\n",
			shortID(v.VersionID), shortID(v.ParentID), v.Turns, v.Phase, v.Overall, v.Trust)
	}

	fmt.Fprintf(w, "\n%-5s %-8s %-12s %-8s %s\n", "SEQ", "SPEAKER", "PHASE", "APPLIED", "TEXT")
	for _, t := range turns {
		applied := "yes"
		if !t.Applied {
			applied = "no"
		}
		fmt.Fprintf(w, "%-5d %-8s %-12s %-8s %s\n", t.Sequence, t.Speaker, t.Phase, applied, truncate(t.Text, 60))
	}

	if r := out.Report; r != nil {
		fmt.Fprintf(w, "\nReport:\n")
		fmt.Fprintf(w, "  Overall:      %.2f (%s)\n", r.Overall, r.Level)
		fmt.Fprintf(w, "  Claiming:     %.2f\n", r.Scores.ClaimingValue)
		fmt.Fprintf(w, "  Creating:     %.2f\n", r.Scores.CreatingValue)
		fmt.Fprintf(w, "  Relationship: %.2f\n", r.Scores.RelationshipManagement)
		fmt.Fprintf(w, "  Final phase:  %s\n", r.FinalPhase)
		fmt.Fprintf(w, "  Trust:        %.2f\n", r.TrustLevel)
		for _, tip := range r.Tips {
			fmt.Fprintf(w, "  - %s\n", tip)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// #endregion output
