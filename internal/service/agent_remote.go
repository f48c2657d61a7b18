package service

import (
	"context"
	"strings"

	"salesbridge/pkg/dpk"

	"github.com/sirupsen/logrus"
)

// DPKClient is the remote agent proxy surface.
type DPKClient interface {
	Chat(ctx context.Context, req dpk.ChatRequest) (*dpk.ChatResponse, error)
}

// RemoteAgent answers turns by forwarding them to the DPK proxy with a
// rendered history context.
type RemoteAgent struct {
	client       DPKClient
	history      HistoryStore
	historyLimit int
	logger       *logrus.Logger
}

func NewRemoteAgent(client DPKClient, history HistoryStore, historyLimit int, logger *logrus.Logger) *RemoteAgent {
	return &RemoteAgent{
		client:       client,
		history:      history,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

func (a *RemoteAgent) Reply(ctx context.Context, sessionID, text, messageID string) AgentResult {
	phone, err := PhoneFromSessionID(sessionID)
	if err != nil {
		return Failed(err)
	}

	// History failures degrade to an empty context rather than losing
	// the turn.
	historyContext, err := BuildHistoryContext(ctx, a.history, phone, a.historyLimit)
	if err != nil {
		a.logger.WithError(err).WithField(LogFieldSession, SanitizeSessionID(sessionID)).
			Warn("Failed to build history context, sending turn without it")
		historyContext = ""
	}

	resp, err := a.client.Chat(ctx, dpk.ChatRequest{
		SessionID: sessionID,
		Text:      text,
		MessageID: messageID,
		Context:   historyContext,
	})
	if err != nil {
		return Failed(err)
	}

	reply := strings.TrimSpace(resp.Reply)
	if reply == "" {
		return NoReply()
	}
	return Replied(reply)
}
