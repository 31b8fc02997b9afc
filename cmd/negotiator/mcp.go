package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/negotiation-coach/internal/character"
	"github.com/danielpatrickdp/negotiation-coach/internal/coach"
	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
)

const mcpVersion = "1.0.0"

// #region command

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the coach as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, closeAll, err := a.service(ctx)
			if err != nil {
				return err
			}
			defer closeAll()
			if err := newMCPServer(svc).Run(ctx, &mcp.StdioTransport{}); err != nil {
				return fmt.Errorf("negotiator-mcp: %w", err)
			}
			return nil
		},
	}
}

func newMCPServer(svc *coach.Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "negotiator-mcp",
		Version: mcpVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_session",
		Description: "Start (or restart) a practice session. Returns the session ID; an empty ID gets a fresh one.",
	}, startSessionHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "process_turn",
		Description: "Score one conversation turn. Returns detected signals, feedback, running scores, phase and trust.",
	}, processTurnHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_reply",
		Description: "Generate the counterpart's next reply from the session state and a character profile.",
	}, generateReplyHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "end_session",
		Description: "End a session and return its final performance report.",
	}, endSessionHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_session",
		Description: "Return the current conversation state of a live session.",
	}, getSessionHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "assess",
		Description: "Score a complete transcript in one call without creating a session.",
	}, assessHandler(svc))

	return server
}

// #endregion command

// #region inputs

type sessionInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"Session ID. Optional for start_session."`
}

type turnInput struct {
	SessionID     string `json:"session_id"          jsonschema:"Session ID returned by start_session"`
	SequenceIndex int    `json:"sequence_index"      jsonschema:"Position of the turn in the conversation, strictly increasing"`
	Speaker       string `json:"speaker"             jsonschema:"self (the learner) or counterpart; you/user/ai/assistant are accepted"`
	Text          string `json:"text"                jsonschema:"What was said"`
	Timestamp     string `json:"timestamp,omitempty" jsonschema:"Optional RFC3339 timestamp"`
}

type replyInput struct {
	SessionID    string `json:"session_id"             jsonschema:"Session ID"`
	Profile      string `json:"profile,omitempty"      jsonschema:"Character profile as JSON (personality, behavior_parameters, interests, styles)"`
	Instructions string `json:"instructions,omitempty" jsonschema:"Confidential scenario instructions, JSON or plain text"`
}

type assessInput struct {
	Transcript string `json:"transcript" jsonschema:"Transcript JSON: an array of turns or an object with a turns array"`
}

// #endregion inputs

// #region handlers

func startSessionHandler(svc *coach.Service) func(context.Context, *mcp.CallToolRequest, sessionInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input sessionInput) (*mcp.CallToolResult, any, error) {
		id, err := svc.StartSession(ctx, input.SessionID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{
			"session_id": id,
			"status":     "started",
		})), nil, nil
	}
}

func processTurnHandler(svc *coach.Service) func(context.Context, *mcp.CallToolRequest, turnInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input turnInput) (*mcp.CallToolResult, any, error) {
		turn := conversation.Turn{SequenceIndex: input.SequenceIndex, Text: input.Text}
		_ = turn.Speaker.UnmarshalText([]byte(input.Speaker))
		if input.Timestamp != "" {
			ts, err := time.Parse(time.RFC3339, input.Timestamp)
			if err != nil {
				return textResult(fmt.Sprintf("error: invalid timestamp: %v", err)), nil, nil
			}
			turn.Timestamp = ts
		}
		ann, err := svc.ProcessTurn(ctx, input.SessionID, turn)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(ann)), nil, nil
	}
}

func generateReplyHandler(svc *coach.Service) func(context.Context, *mcp.CallToolRequest, replyInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input replyInput) (*mcp.CallToolResult, any, error) {
		var profile character.Profile
		if input.Profile != "" {
			if err := json.Unmarshal([]byte(input.Profile), &profile); err != nil {
				return textResult(fmt.Sprintf("error: invalid profile: %v", err)), nil, nil
			}
		}
		reply, err := svc.GenerateReply(ctx, input.SessionID, coach.ReplyRequest{
			Profile:      profile,
			Instructions: input.Instructions,
		})
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(reply)), nil, nil
	}
}

func endSessionHandler(svc *coach.Service) func(context.Context, *mcp.CallToolRequest, sessionInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input sessionInput) (*mcp.CallToolResult, any, error) {
		report, err := svc.EndSession(ctx, input.SessionID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(report)), nil, nil
	}
}

func getSessionHandler(svc *coach.Service) func(context.Context, *mcp.CallToolRequest, sessionInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input sessionInput) (*mcp.CallToolResult, any, error) {
		st, err := svc.Session(ctx, input.SessionID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(st)), nil, nil
	}
}

func assessHandler(svc *coach.Service) func(context.Context, *mcp.CallToolRequest, assessInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input assessInput) (*mcp.CallToolResult, any, error) {
		turns, err := conversation.ParseTranscript([]byte(input.Transcript))
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(svc.Assess(ctx, turns))), nil, nil
	}
}

// #endregion handlers

// #region helpers

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonString(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal: %v"}`, err)
	}
	return string(data)
}

// #endregion helpers
