package rpc

import (
	"github.com/danielpatrickdp/negotiation-coach/internal/character"
	"github.com/danielpatrickdp/negotiation-coach/internal/conversation"
)

// #region messages
type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type processRequest struct {
	SessionID string            `json:"session_id"`
	Turn      conversation.Turn `json:"turn"`
}

type replyRequest struct {
	SessionID    string            `json:"session_id"`
	Profile      character.Profile `json:"profile"`
	Instructions string            `json:"instructions,omitempty"`
}

type assessRequest struct {
	Turns []conversation.Turn `json:"turns"`
}
// #endregion messages
