package service

import (
	"context"
	"fmt"
	"strings"

	"salesbridge/internal/models"
)

// SessionIDPrefix prefixes the phone number to build the stable
// conversation session id shared with the payment flow.
const SessionIDPrefix = "wa_id_"

// SessionID derives the session id for a phone number. The mapping is
// deterministic so it survives restarts and round-trips through the
// Asaas externalReference field.
func SessionID(phone string) string {
	return SessionIDPrefix + phone
}

// PhoneFromSessionID recovers the phone number from a session id.
func PhoneFromSessionID(sessionID string) (string, error) {
	phone, ok := strings.CutPrefix(sessionID, SessionIDPrefix)
	if !ok || phone == "" {
		return "", fmt.Errorf("malformed session id: %q", sessionID)
	}
	return phone, nil
}

// AgentOutcome classifies what the agent did with a turn.
type AgentOutcome int

const (
	// AgentReplied means Text holds a non-empty answer to deliver.
	AgentReplied AgentOutcome = iota
	// AgentNoReply means the agent deliberately stayed silent.
	AgentNoReply
	// AgentFailed means the turn could not be completed; Err says why.
	AgentFailed
)

// AgentResult is the tri-state outcome of one agent turn. Silence and
// failure are different things: silence is a choice, failure is logged
// and (except for the local agent's apology) invisible to the customer.
type AgentResult struct {
	Outcome AgentOutcome
	Text    string
	Err     error
}

func Replied(text string) AgentResult {
	return AgentResult{Outcome: AgentReplied, Text: text}
}

func NoReply() AgentResult {
	return AgentResult{Outcome: AgentNoReply}
}

func Failed(err error) AgentResult {
	return AgentResult{Outcome: AgentFailed, Err: err}
}

// AgentBridge produces a reply for one inbound user turn.
type AgentBridge interface {
	Reply(ctx context.Context, sessionID, text, messageID string) AgentResult
}

// HistoryStore provides the recent messages used to build agent context.
type HistoryStore interface {
	GetRecentMessages(ctx context.Context, phone string, limit int) ([]models.Message, error)
}

// BuildHistoryContext renders the last messages for a phone as USER:/
// AGENT: lines, oldest first. Rows sent by the customer render as USER;
// rows the agent authored carry the system sender and render as AGENT.
func BuildHistoryContext(ctx context.Context, store HistoryStore, phone string, limit int) (string, error) {
	messages, err := store.GetRecentMessages(ctx, phone, limit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	// Newest-first from the store; render oldest-first.
	var lines []string
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Content == nil || *msg.Content == "" {
			continue
		}
		role := "USER"
		if msg.FromPhone != phone {
			role = "AGENT"
		}
		lines = append(lines, role+": "+*msg.Content)
	}

	return strings.Join(lines, "\n"), nil
}
