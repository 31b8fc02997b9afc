package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/negotiation-coach/internal/logging"
	"github.com/danielpatrickdp/negotiation-coach/internal/replay"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
	"github.com/danielpatrickdp/negotiation-coach/internal/state"
)

// #region export

func newExportCmd(a *app) *cobra.Command {
	var dbPath, sessionID, outPath, description string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a recorded session as a replay fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" || outPath == "" {
				return exitError{code: 2, msg: "usage: export --session <id> --out <fixture.json> [--db <path>]"}
			}
			if dbPath == "" {
				dbPath = a.cfg.DBPath
			}
			store, err := state.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := logging.ListAnnotations(store.DB(), sessionID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("session %s: %w", sessionID, state.ErrNotFound)
			}
			var report *scoring.Report
			r, err := store.GetReport(sessionID)
			switch {
			case err == nil:
				report = &r
			case !errors.Is(err, state.ErrNotFound):
				return err
			}
			if description == "" {
				description = "recorded session " + sessionID
			}
			if err := replay.FixtureFromLog(description, entries, report).Save(outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d turns to %s\n", len(entries), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database (default from config)")
	cmd.Flags().StringVar(&sessionID, "session", "", "session to export")
	cmd.Flags().StringVar(&outPath, "out", "", "output fixture JSON path")
	cmd.Flags().StringVar(&description, "description", "", "fixture description")
	return cmd
}

// #endregion export
