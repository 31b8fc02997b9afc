package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/negotiation-coach/internal/logging"
	"github.com/danielpatrickdp/negotiation-coach/internal/replay"
	"github.com/danielpatrickdp/negotiation-coach/internal/state"
)

// #region replay

func newReplayCmd(a *app) *cobra.Command {
	var dbPath, sessionID string
	var fixtures []string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay fixtures or a recorded session and compare outcomes",
		Long: `Replays turns through a fresh engine and prints a comparison table.

  negotiator replay --fixture path/to/fixture.json [--fixture ...]
  negotiator replay --db negotiation.db --session <id>

Exit status is 1 when any row diverges and 2 on usage errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch {
			case len(fixtures) > 0 && sessionID == "":
				return a.replayFixtures(w, fixtures)
			case len(fixtures) == 0 && sessionID != "":
				if dbPath == "" {
					dbPath = a.cfg.DBPath
				}
				return a.replaySession(w, dbPath, sessionID)
			}
			return exitError{code: 2, msg: "usage: replay --fixture <file> | replay --db <path> --session <id>"}
		},
	}
	cmd.Flags().StringArrayVar(&fixtures, "fixture", nil, "fixture JSON (repeatable)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database (default from config)")
	cmd.Flags().StringVar(&sessionID, "session", "", "recorded session to replay")
	return cmd
}

func (a *app) replayFixtures(w io.Writer, paths []string) error {
	diverged := 0
	for _, path := range paths {
		f, err := replay.LoadFixture(path)
		if err != nil {
			return exitError{code: 2, msg: err.Error()}
		}
		rows, sum, err := f.Run()
		if err != nil {
			return exitError{code: 2, msg: err.Error()}
		}
		fmt.Fprintf(w, "== %s", path)
		if f.Description != "" {
			fmt.Fprintf(w, " (%s)", f.Description)
		}
		fmt.Fprintln(w)
		diverged += printComparison(w, rows, sum)
	}
	if diverged > 0 {
		return exitError{code: 1, msg: fmt.Sprintf("%d rows diverged", diverged)}
	}
	return nil
}

func (a *app) replaySession(w io.Writer, dbPath, sessionID string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return exitError{code: 2, msg: err.Error()}
	}
	defer store.Close()

	entries, err := logging.ListAnnotations(store.DB(), sessionID)
	if err != nil {
		return exitError{code: 2, msg: err.Error()}
	}
	if len(entries) == 0 {
		return exitError{code: 2, msg: fmt.Sprintf("no annotations recorded for session %s", sessionID)}
	}

	eng, err := a.engine()
	if err != nil {
		return exitError{code: 2, msg: err.Error()}
	}
	turns, expected := replay.FromLog(entries)
	results, final := replay.Replay(eng, turns)
	sum := replay.Summarize(eng, results, final)
	rows := replay.Compare(results, expected)

	// An ended session has a stored report to hold the final scores against.
	if report, err := store.GetReport(sessionID); err == nil {
		scores := report.Scores
		trust := report.TrustLevel
		rows = append(rows, replay.CompareFinal(sum, &replay.FinalExpectation{
			Scores:     &scores,
			Phase:      report.FinalPhase.String(),
			TrustLevel: &trust,
			Level:      report.Level,
		})...)
	}

	fmt.Fprintf(w, "== session %s\n", sessionID)
	if n := printComparison(w, rows, sum); n > 0 {
		return exitError{code: 1, msg: fmt.Sprintf("%d rows diverged", n)}
	}
	return nil
}

// printComparison writes the comparison table and returns the divergence count.
func printComparison(w io.Writer, rows []replay.Comparison, sum replay.ReplaySummary) int {
	fmt.Fprintf(w, "%-16s| %-22s| %-22s| %s\n", "Turn", "Expected", "Replayed", "Match")
	fmt.Fprintf(w, "%-16s+%-23s+%-23s+%s\n",
		"----------------", "-----------------------", "-----------------------", "------")
	for _, r := range rows {
		match := color.RedString("DIFF")
		if r.Match {
			match = color.GreenString("OK")
		}
		fmt.Fprintf(w, "%-16s| %-22s| %-22s| %s\n", r.Label, r.Expected, r.Replayed, match)
	}
	diverge := replay.Diverged(rows)
	fmt.Fprintf(w, "\nSummary: %d turns (%d applied, %d rejected), %d rows, %d match, %d diverge\n\n",
		sum.TotalTurns, sum.Applied, sum.Rejected, len(rows), len(rows)-diverge, diverge)
	return diverge
}

// #endregion replay
