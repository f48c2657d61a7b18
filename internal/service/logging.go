package service

import (
	"context"
	"strings"

	"salesbridge/internal/constants"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// SanitizePhoneNumber masks phone numbers for log output
func SanitizePhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	cleaned := strings.TrimPrefix(phone, "+")

	if len(cleaned) > constants.DefaultPhoneMaskLength {
		return "***" + cleaned[len(cleaned)-constants.DefaultPhoneMaskLength:]
	}
	return "***"
}

// SanitizeMessageID shortens provider message ids for log output
func SanitizeMessageID(msgID string) string {
	if msgID == "" {
		return ""
	}

	if len(msgID) > constants.DefaultMessageIDLength {
		return msgID[:constants.DefaultMessageIDLength] + "..."
	}
	return msgID
}

// SanitizeSessionID masks the phone embedded in a wa_id_<phone> session id
func SanitizeSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}

	if phone, ok := strings.CutPrefix(sessionID, "wa_id_"); ok {
		return "wa_id_" + SanitizePhoneNumber(phone)
	}
	return SanitizeMessageID(sessionID)
}

// SanitizeContent completely hides message content for privacy
func SanitizeContent(content string) string {
	if content == "" {
		return ""
	}
	return "[hidden]"
}

// LogMessageProcessing logs inbound message handling with privacy controls
func LogMessageProcessing(ctx context.Context, logger *logrus.Logger, kind, msgID, sender string) {
	if IsVerboseLogging(ctx) {
		logger.WithFields(logrus.Fields{
			"kind":   kind,
			"msgID":  msgID,
			"sender": sender,
		}).Info("Processing message")
	} else {
		logger.WithFields(logrus.Fields{
			"kind":   kind,
			"msgID":  SanitizeMessageID(msgID),
			"sender": SanitizePhoneNumber(sender),
		}).Info("Processing message")
	}
}
