package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"salesbridge/internal/models"

	"github.com/sirupsen/logrus"
)

const paymentConfirmedText = "Pagamento confirmado! Recebemos sua taxa de cadastro. " +
	"Para concluir a verificação, envie seu CPF ou CNPJ por aqui."

// TransactionStore persists payment transactions and webhook records.
type TransactionStore interface {
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransactionByProviderID(ctx context.Context, asaasID string) (*models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, asaasID string, status models.TransactionStatus) error
	SaveWebhookLog(ctx context.Context, log *models.WebhookLog) (int64, error)
	UpdateWebhookLogOutcome(ctx context.Context, id int64, outcome models.WebhookOutcome, errorMessage *string) error
}

// PaymentProcessor handles Asaas payment webhooks. Only confirmation
// events produce transactions; everything else is recorded and
// ignored. The external reference must carry the session id minted
// when the payment link was created, otherwise the event cannot be
// tied to a customer and is dropped.
type PaymentProcessor struct {
	store      TransactionStore
	tracker    *Tracker
	deliverer  *Deliverer
	dispatcher Dispatcher
	logger     *logrus.Logger
}

func NewPaymentProcessor(store TransactionStore, tracker *Tracker, deliverer *Deliverer, dispatcher Dispatcher, logger *logrus.Logger) *PaymentProcessor {
	return &PaymentProcessor{
		store:      store,
		tracker:    tracker,
		deliverer:  deliverer,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleAsaasWebhook records the event and, for confirmation events,
// persists the transaction and schedules the customer notification.
func (p *PaymentProcessor) HandleAsaasWebhook(ctx context.Context, payload *models.AsaasWebhookPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize webhook payload: %w", err)
	}

	logID, err := p.store.SaveWebhookLog(ctx, &models.WebhookLog{
		Source:  models.WebhookSourceAsaas,
		Event:   payload.Event,
		Payload: string(raw),
		Outcome: models.WebhookOutcomePending,
	})
	if err != nil {
		return fmt.Errorf("failed to record webhook: %w", err)
	}

	if payload.Event != models.AsaasEventPaymentReceived && payload.Event != models.AsaasEventPaymentConfirmed {
		p.logger.WithField(LogFieldEvent, payload.Event).Info("Ignoring payment event")
		return p.store.UpdateWebhookLogOutcome(ctx, logID, models.WebhookOutcomeSuccess, nil)
	}

	if err := p.processConfirmation(ctx, payload); err != nil {
		msg := err.Error()
		if updateErr := p.store.UpdateWebhookLogOutcome(ctx, logID, models.WebhookOutcomeError, &msg); updateErr != nil {
			p.logger.WithError(updateErr).Error("Failed to update webhook log outcome")
		}
		return err
	}
	return p.store.UpdateWebhookLogOutcome(ctx, logID, models.WebhookOutcomeSuccess, nil)
}

func (p *PaymentProcessor) processConfirmation(ctx context.Context, payload *models.AsaasWebhookPayload) error {
	payment := payload.Payment
	if payment == nil {
		return fmt.Errorf("payment event %s has no payment object", payload.Event)
	}
	if payment.Customer == nil || payment.Customer.ExternalReference == "" {
		return fmt.Errorf("payment %s has no external reference, cannot match customer", payment.ID)
	}

	phone, err := PhoneFromSessionID(payment.Customer.ExternalReference)
	if err != nil {
		return fmt.Errorf("payment %s has malformed external reference: %w", payment.ID, err)
	}

	// Asaas redelivers events, and a payment can fire both RECEIVED and
	// CONFIRMED. A transaction already marked confirmed was fully
	// handled, including the customer notification.
	existing, err := p.store.GetTransactionByProviderID(ctx, payment.ID)
	if err != nil {
		return fmt.Errorf("failed to look up transaction: %w", err)
	}
	if existing != nil {
		if existing.Status == models.TransactionStatusConfirmed {
			p.logger.WithField("payment_id", payment.ID).Info("Payment already confirmed, skipping")
			return nil
		}
		if err := p.store.UpdateTransactionStatus(ctx, payment.ID, models.TransactionStatusConfirmed); err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}
		p.notifyConfirmed(phone, payment.ID)
		return nil
	}

	var description *string
	if payment.Description != "" {
		d := payment.Description
		description = &d
	}
	tx := &models.Transaction{
		AsaasID:     payment.ID,
		PhoneNumber: phone,
		AmountCents: int64(math.Round(payment.Value * 100)),
		Status:      models.TransactionStatusConfirmed,
		Description: description,
	}
	if err := p.store.SaveTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		LogFieldPhone: SanitizePhoneNumber(phone),
		"payment_id":  payment.ID,
		"amount":      tx.AmountCents,
	}).Info("Payment confirmed")

	p.notifyConfirmed(phone, payment.ID)
	return nil
}

func (p *PaymentProcessor) notifyConfirmed(phone, paymentID string) {
	p.dispatcher.Dispatch("notify payment confirmed", func(jobCtx context.Context) error {
		if !p.deliverer.Send(jobCtx, phone, paymentConfirmedText) {
			return fmt.Errorf("failed to notify customer of payment %s", paymentID)
		}
		if err := p.tracker.Touch(jobCtx, phone, paymentConfirmedText, time.Now()); err != nil {
			p.logger.WithError(err).Warn("Failed to update conversation after payment")
		}
		return nil
	})
}
