package service

import (
	"context"
	"strings"

	"salesbridge/pkg/llm"

	"github.com/sirupsen/logrus"
)

const localAgentSystemPrompt = `Você é um assistente de vendas de uma revenda de veículos no WhatsApp.
Responda sempre em português, de forma curta e cordial.
Use as ferramentas disponíveis para listar ofertas, gerar o link da taxa de cadastro e consultar CPF/CNPJ quando o cliente pedir.
Nunca invente preços ou dados cadastrais: se uma ferramenta falhar, diga que não foi possível no momento.`

const localAgentApology = "Desculpe, tive um problema para processar sua mensagem. Pode tentar de novo em instantes?"

// LLMClient is the chat-completion surface LocalAgent drives.
type LLMClient interface {
	ChatCompletion(ctx context.Context, messages []llm.ChatMessage, tools []llm.Tool) (*llm.ChatMessage, error)
}

// LocalAgent answers with a single model turn plus at most one tool
// round. Tool calls in the follow-up response are not executed; the
// conversation continues with whatever text the model produced.
type LocalAgent struct {
	client       LLMClient
	toolbox      *Toolbox
	history      HistoryStore
	historyLimit int
	logger       *logrus.Logger
}

func NewLocalAgent(client LLMClient, toolbox *Toolbox, history HistoryStore, historyLimit int, logger *logrus.Logger) *LocalAgent {
	return &LocalAgent{
		client:       client,
		toolbox:      toolbox,
		history:      history,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

func (a *LocalAgent) Reply(ctx context.Context, sessionID, text, messageID string) AgentResult {
	phone, err := PhoneFromSessionID(sessionID)
	if err != nil {
		return Failed(err)
	}

	messages := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: localAgentSystemPrompt},
	}

	historyContext, err := BuildHistoryContext(ctx, a.history, phone, a.historyLimit)
	if err != nil {
		a.logger.WithError(err).WithField(LogFieldSession, SanitizeSessionID(sessionID)).
			Warn("Failed to load conversation history, continuing without it")
	} else if historyContext != "" {
		messages = append(messages, llm.ChatMessage{
			Role:    llm.RoleSystem,
			Content: "Histórico recente da conversa:\n" + historyContext,
		})
	}

	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: text})

	reply, err := a.client.ChatCompletion(ctx, messages, a.toolbox.Declarations())
	if err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldSession:   SanitizeSessionID(sessionID),
			LogFieldMessageID: SanitizeMessageID(messageID),
		}).Error("Model call failed")
		return Replied(localAgentApology)
	}

	if len(reply.ToolCalls) > 0 {
		messages = append(messages, *reply)
		for _, call := range reply.ToolCalls {
			a.logger.WithFields(logrus.Fields{
				"tool":          call.Function.Name,
				LogFieldSession: SanitizeSessionID(sessionID),
			}).Info("Executing tool call")
			result := a.toolbox.Execute(ctx, sessionID, call)
			messages = append(messages, llm.ChatMessage{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}

		reply, err = a.client.ChatCompletion(ctx, messages, a.toolbox.Declarations())
		if err != nil {
			a.logger.WithError(err).WithField(LogFieldSession, SanitizeSessionID(sessionID)).
				Error("Follow-up model call failed")
			return Replied(localAgentApology)
		}
		if len(reply.ToolCalls) > 0 {
			a.logger.WithFields(logrus.Fields{
				LogFieldSession: SanitizeSessionID(sessionID),
				LogFieldCount:   len(reply.ToolCalls),
			}).Warn("Ignoring tool calls in follow-up response")
		}
	}

	answer := strings.TrimSpace(reply.Content)
	if answer == "" {
		return NoReply()
	}
	return Replied(answer)
}
