package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/negotiation-coach/internal/character"
	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
	"github.com/danielpatrickdp/negotiation-coach/internal/scoring"
	"github.com/danielpatrickdp/negotiation-coach/internal/strategy"
)

// #region client-struct
// Client calls a remote CoachService.
type Client struct {
	conn *grpc.ClientConn
}
// #endregion client-struct

// #region constructor
// NewClient connects to a CoachService at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
// #endregion constructor

// #region calls
// StartSession starts or resets a session. An empty id asks the server to mint one.
func (c *Client) StartSession(ctx context.Context, id string) (string, error) {
	var resp sessionResponse
	if err := c.call(ctx, "StartSession", sessionRequest{SessionID: id}, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

// ProcessTurn sends one turn and returns its annotation.
func (c *Client) ProcessTurn(ctx context.Context, id string, turn conversation.Turn) (engine.Annotation, error) {
	var ann engine.Annotation
	err := c.call(ctx, "ProcessTurn", processRequest{SessionID: id, Turn: turn}, &ann)
	return ann, err
}

// GenerateReply asks for the counterpart's next utterance.
func (c *Client) GenerateReply(ctx context.Context, id string, profile character.Profile, instructions string) (strategy.Reply, error) {
	var reply strategy.Reply
	err := c.call(ctx, "GenerateReply", replyRequest{SessionID: id, Profile: profile, Instructions: instructions}, &reply)
	return reply, err
}

// EndSession closes a session and returns its report.
func (c *Client) EndSession(ctx context.Context, id string) (scoring.Report, error) {
	var report scoring.Report
	err := c.call(ctx, "EndSession", sessionRequest{SessionID: id}, &report)
	return report, err
}

// Assess scores a whole transcript remotely.
func (c *Client) Assess(ctx context.Context, turns []conversation.Turn) (scoring.Report, error) {
	var report scoring.Report
	err := c.call(ctx, "Assess", assessRequest{Turns: turns}, &report)
	return report, err
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s: %w: %s", method, engine.ErrSessionNotFound, status.Convert(err).Message())
		}
		return fmt.Errorf("%s rpc: %w", method, err)
	}
	return fromStruct(out, resp)
}
// #endregion calls
