package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"salesbridge/internal/database"
	"salesbridge/internal/dedup"
	apperrors "salesbridge/internal/errors"
	"salesbridge/internal/models"
	"salesbridge/internal/tracing"
	"salesbridge/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MessageStore is the persistence surface the pipeline writes to.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	UpdateMessageProcessing(ctx context.Context, providerMessageID string, status models.ProcessingStatus, agentReply *string) error
	SaveMessageStatus(ctx context.Context, status *models.MessageStatus) error
	SaveWebhookLog(ctx context.Context, log *models.WebhookLog) (int64, error)
	UpdateWebhookLogOutcome(ctx context.Context, id int64, outcome models.WebhookOutcome, errorMessage *string) error
}

// Pipeline turns acknowledged webhook envelopes into persisted
// messages and agent replies. HandleWhatsAppWebhook returns as soon as
// the envelope is recorded and the work is scheduled; processing
// happens on the dispatcher.
type Pipeline struct {
	store      MessageStore
	guard      *dedup.Guard
	tracker    *Tracker
	agent      AgentBridge
	deliverer  *Deliverer
	dispatcher Dispatcher
	logger     *logrus.Logger
}

func NewPipeline(store MessageStore, guard *dedup.Guard, tracker *Tracker, agent AgentBridge, deliverer *Deliverer, dispatcher Dispatcher, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		guard:      guard,
		tracker:    tracker,
		agent:      agent,
		deliverer:  deliverer,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleWhatsAppWebhook records the envelope and schedules processing.
// Envelopes for other products are recorded and skipped without error;
// the sender already got its acknowledgement either way.
func (p *Pipeline) HandleWhatsAppWebhook(ctx context.Context, payload *models.WhatsAppWebhookPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize webhook payload: %w", err)
	}

	logID, err := p.store.SaveWebhookLog(ctx, &models.WebhookLog{
		Source:  models.WebhookSourceWhatsApp,
		Event:   payload.Object,
		Payload: string(raw),
		Outcome: models.WebhookOutcomePending,
	})
	if err != nil {
		return fmt.Errorf("failed to record webhook: %w", err)
	}

	if payload.Object != models.WhatsAppBusinessAccountObject {
		p.logger.WithField("object", payload.Object).Info("Ignoring webhook for unknown object")
		msg := "unsupported object: " + payload.Object
		return p.store.UpdateWebhookLogOutcome(ctx, logID, models.WebhookOutcomeError, &msg)
	}

	p.dispatcher.Dispatch("process whatsapp webhook", func(jobCtx context.Context) error {
		return p.processEnvelope(jobCtx, logID, payload)
	})
	return nil
}

func (p *Pipeline) processEnvelope(ctx context.Context, logID int64, payload *models.WhatsAppWebhookPayload) error {
	var firstErr error
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != models.ChangeFieldMessages {
				continue
			}
			for i := range change.Value.Statuses {
				if err := p.recordStatus(ctx, &change.Value.Statuses[i]); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			for i := range change.Value.Messages {
				if err := p.processMessage(ctx, &change.Value, &change.Value.Messages[i]); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	outcome := models.WebhookOutcomeSuccess
	var errMsg *string
	if firstErr != nil {
		outcome = models.WebhookOutcomeError
		s := firstErr.Error()
		errMsg = &s
		apperrors.LogAtLevel(p.logger, firstErr, "Webhook envelope processing failed")
		tracing.RecordError(ctx, firstErr)
	}
	if err := p.store.UpdateWebhookLogOutcome(ctx, logID, outcome, errMsg); err != nil {
		p.logger.WithError(err).Error("Failed to update webhook log outcome")
	}
	return firstErr
}

func (p *Pipeline) recordStatus(ctx context.Context, status *models.WhatsAppStatus) error {
	err := p.store.SaveMessageStatus(ctx, &models.MessageStatus{
		ProviderMessageID: status.ID,
		RecipientPhone:    status.RecipientID,
		Status:            models.DeliveryStatus(status.Status),
		ProviderTimestamp: status.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to record delivery status: %w", err)
	}
	return nil
}

func (p *Pipeline) processMessage(ctx context.Context, value *models.WhatsAppChangeValue, wm *models.WhatsAppMessage) error {
	if err := validation.ValidateMessageID(wm.ID); err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}
	if err := validation.ValidatePhoneNumber(wm.From); err != nil {
		return fmt.Errorf("invalid sender phone: %w", err)
	}

	LogMessageProcessing(ctx, p.logger, wm.Type, wm.ID, wm.From)

	seen, err := p.guard.Seen(ctx, wm.ID)
	if err != nil {
		return fmt.Errorf("failed to check duplicate: %w", err)
	}
	if seen {
		p.logger.WithField(LogFieldMessageID, SanitizeMessageID(wm.ID)).Info("Skipping duplicate message")
		return nil
	}

	msg := messageFromWebhook(value, wm)
	if err := p.store.SaveMessage(ctx, msg); err != nil {
		if errors.Is(err, database.ErrDuplicateMessage) {
			p.guard.Mark(wm.ID)
			p.logger.WithField(LogFieldMessageID, SanitizeMessageID(wm.ID)).Info("Message already stored, skipping")
			return nil
		}
		return fmt.Errorf("failed to save message: %w", err)
	}
	p.guard.Mark(wm.ID)

	content := ""
	if msg.Content != nil {
		content = *msg.Content
	}
	if err := p.tracker.Touch(ctx, wm.From, content, timestampOrNow(wm.Timestamp)); err != nil {
		p.logger.WithError(err).WithField(LogFieldPhone, SanitizePhoneNumber(wm.From)).
			Warn("Failed to update conversation")
	}

	// Only plain text turns go to the agent. Button taps, media and
	// empty bodies are stored and the conversation is touched, nothing
	// more.
	if msg.Kind != models.MessageKindText || content == "" {
		status := models.ProcessingStatusCompleted
		if err := p.store.UpdateMessageProcessing(ctx, wm.ID, status, nil); err != nil {
			p.logger.WithError(err).Warn("Failed to mark message processed")
		}
		return nil
	}

	return p.runAgent(ctx, value, wm, content)
}

func (p *Pipeline) runAgent(ctx context.Context, value *models.WhatsAppChangeValue, wm *models.WhatsAppMessage, content string) error {
	sessionID := SessionID(wm.From)
	result := p.agent.Reply(ctx, sessionID, content, wm.ID)

	switch result.Outcome {
	case AgentReplied:
		delivered := p.deliverer.Send(ctx, wm.From, result.Text)
		status := models.ProcessingStatusCompleted
		if err := p.store.UpdateMessageProcessing(ctx, wm.ID, status, &result.Text); err != nil {
			p.logger.WithError(err).Warn("Failed to record agent reply")
		}
		if err := p.store.SaveMessage(ctx, replyMessage(value, wm.From, result.Text)); err != nil {
			p.logger.WithError(err).Warn("Failed to save reply message")
		}
		if delivered {
			if err := p.tracker.Touch(ctx, wm.From, result.Text, time.Now()); err != nil {
				p.logger.WithError(err).Warn("Failed to update conversation after reply")
			}
		}
		return nil
	case AgentNoReply:
		if err := p.store.UpdateMessageProcessing(ctx, wm.ID, models.ProcessingStatusCompleted, nil); err != nil {
			p.logger.WithError(err).Warn("Failed to mark message processed")
		}
		return nil
	default:
		if err := p.store.UpdateMessageProcessing(ctx, wm.ID, models.ProcessingStatusFailed, nil); err != nil {
			p.logger.WithError(err).Warn("Failed to mark message failed")
		}
		if result.Err != nil {
			return fmt.Errorf("agent failed: %w", result.Err)
		}
		return fmt.Errorf("agent failed")
	}
}

func messageFromWebhook(value *models.WhatsAppChangeValue, wm *models.WhatsAppMessage) *models.Message {
	status := models.ProcessingStatusPending
	msg := &models.Message{
		ProviderMessageID:  wm.ID,
		FromPhone:          wm.From,
		ChatPhone:          wm.From,
		Kind:               models.MessageKind(wm.Type),
		DisplayPhoneNumber: value.Metadata.DisplayPhoneNumber,
		PhoneNumberID:      value.Metadata.PhoneNumberID,
		ProviderTimestamp:  wm.Timestamp,
		ProcessingStatus:   &status,
	}

	switch {
	case wm.Text != nil:
		body := wm.Text.Body
		msg.Content = &body
	case wm.Button != nil:
		text := wm.Button.Text
		payload := wm.Button.Payload
		msg.Content = &text
		msg.ButtonPayload = &payload
	}
	return msg
}

// replyMessage builds the stored row for a reply the agent authored in
// the conversation with phone. The provider never saw this message, so
// it gets a synthetic id and the send time as its timestamp.
func replyMessage(value *models.WhatsAppChangeValue, phone, text string) *models.Message {
	status := models.ProcessingStatusCompleted
	return &models.Message{
		ProviderMessageID:  "reply-" + uuid.NewString(),
		FromPhone:          models.SystemSender,
		ChatPhone:          phone,
		Kind:               models.MessageKindText,
		Content:            &text,
		DisplayPhoneNumber: value.Metadata.DisplayPhoneNumber,
		PhoneNumberID:      value.Metadata.PhoneNumberID,
		ProviderTimestamp:  strconv.FormatInt(time.Now().Unix(), 10),
		ProcessingStatus:   &status,
	}
}

func timestampOrNow(ts string) time.Time {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now()
	}
	return time.Unix(sec, 0)
}
