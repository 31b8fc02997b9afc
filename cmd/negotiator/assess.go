package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/negotiation-coach/internal/character"
	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
	"github.com/danielpatrickdp/negotiation-coach/internal/strategy"
)

// #region assess

type assessOutput struct {
	Transcript string          `json:"transcript"`
	Report     scoring.Report  `json:"report"`
	Reply      *strategy.Reply `json:"reply,omitempty"`
}

func newAssessCmd(a *app) *cobra.Command {
	var profilePath, instructions string
	cmd := &cobra.Command{
		Use:   "assess <transcript.json>...",
		Short: "Score complete transcripts and print their reports as JSON",
		Long: `Scores one or more complete transcripts in a single batch. A transcript is a
JSON array of turns or an object with a "turns" array.

With --profile, the counterpart's next reply is generated from the final state.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			transcripts := make([][]conversation.Turn, len(args))
			for i, path := range args {
				if transcripts[i], err = conversation.LoadTranscript(path); err != nil {
					return err
				}
			}
			reports, err := eng.AssessMany(cmd.Context(), transcripts)
			if err != nil {
				return err
			}

			out := make([]assessOutput, len(args))
			for i := range args {
				out[i] = assessOutput{Transcript: args[i], Report: reports[i]}
			}
			if profilePath != "" {
				profile, err := character.Load(profilePath)
				if err != nil {
					return err
				}
				in := character.ParseInstructions(instructions)
				for i, turns := range transcripts {
					st, _ := eng.Run(turns)
					reply := eng.Reply(st, profile, in)
					out[i].Reply = &reply
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "character profile JSON; enables reply generation")
	cmd.Flags().StringVar(&instructions, "instructions", "", "confidential instructions (JSON or plain text)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// #endregion assess
