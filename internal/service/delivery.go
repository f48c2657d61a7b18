package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// MessageSender delivers outbound text through the provider.
type MessageSender interface {
	Configured() bool
	SendText(ctx context.Context, to, body string) (string, error)
}

// Deliverer sends agent replies to customers. Delivery never fails the
// processing pipeline: an unconfigured provider or a send error yields
// false and a log line, nothing more.
type Deliverer struct {
	sender MessageSender
	logger *logrus.Logger
}

func NewDeliverer(sender MessageSender, logger *logrus.Logger) *Deliverer {
	return &Deliverer{sender: sender, logger: logger}
}

// Send delivers text to phone. Returns whether the provider accepted
// the message.
func (d *Deliverer) Send(ctx context.Context, phone, text string) bool {
	if !d.sender.Configured() {
		d.logger.WithField(LogFieldPhone, SanitizePhoneNumber(phone)).
			Warn("Provider credentials missing, reply not delivered")
		return false
	}

	providerID, err := d.sender.SendText(ctx, phone, text)
	if err != nil {
		d.logger.WithError(err).WithField(LogFieldPhone, SanitizePhoneNumber(phone)).
			Error("Failed to deliver reply")
		return false
	}

	content := SanitizeContent(text)
	if IsVerboseLogging(ctx) {
		content = text
	}
	d.logger.WithFields(logrus.Fields{
		LogFieldPhone:     SanitizePhoneNumber(phone),
		LogFieldMessageID: SanitizeMessageID(providerID),
		"content":         content,
	}).Info("Reply delivered")
	return true
}
