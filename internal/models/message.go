package models

import (
	"time"
)

type MessageKind string

const (
	MessageKindText     MessageKind = "text"
	MessageKindButton   MessageKind = "button"
	MessageKindImage    MessageKind = "image"
	MessageKindDocument MessageKind = "document"
	MessageKindAudio    MessageKind = "audio"
	MessageKindVideo    MessageKind = "video"
)

type ProcessingStatus string

const (
	ProcessingStatusPending   ProcessingStatus = "pending"
	ProcessingStatusCompleted ProcessingStatus = "completed"
	ProcessingStatusFailed    ProcessingStatus = "failed"
)

type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// SystemSender is the sender recorded on reply rows the agent authored,
// in place of a phone number.
const SystemSender = "system"

// Message is one stored WhatsApp message, inbound or a reply we sent.
// ChatPhone is always the customer's phone, so one conversation can be
// read back regardless of who sent each row. ProviderTimestamp is kept
// as the raw string the Cloud API delivered; it is never parsed, only
// echoed and used for ordering statuses.
type Message struct {
	ID                 int64             `db:"id"`
	ProviderMessageID  string            `db:"provider_message_id"`
	FromPhone          string            `db:"from_phone"`
	ChatPhone          string            `db:"chat_phone"`
	Kind               MessageKind       `db:"kind"`
	Content            *string           `db:"content"`
	ButtonPayload      *string           `db:"button_payload"`
	DisplayPhoneNumber string            `db:"display_phone_number"`
	PhoneNumberID      string            `db:"phone_number_id"`
	ProviderTimestamp  string            `db:"provider_timestamp"`
	AgentReply         *string           `db:"agent_reply"`
	ProcessingStatus   *ProcessingStatus `db:"processing_status"`
	CreatedAt          time.Time         `db:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at"`
}

// MessageStatus is one delivery-state event for a message. Rows are
// append-only; history is reconstructed by sorting on ProviderTimestamp.
type MessageStatus struct {
	ID                int64          `db:"id"`
	ProviderMessageID string         `db:"provider_message_id"`
	RecipientPhone    string         `db:"recipient_phone"`
	Status            DeliveryStatus `db:"status"`
	ProviderTimestamp string         `db:"provider_timestamp"`
	CreatedAt         time.Time      `db:"created_at"`
}

type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "active"
	ConversationStatusClosed   ConversationStatus = "closed"
	ConversationStatusArchived ConversationStatus = "archived"
)

type Conversation struct {
	ID            int64              `db:"id"`
	PhoneNumber   string             `db:"phone_number"`
	Status        ConversationStatus `db:"status"`
	LastMessage   *string            `db:"last_message"`
	LastMessageAt *time.Time         `db:"last_message_at"`
	CreatedAt     time.Time          `db:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at"`
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// Transaction mirrors an Asaas payment. Amount is stored in cents to
// avoid float drift on a money column.
type Transaction struct {
	ID          int64             `db:"id"`
	AsaasID     string            `db:"asaas_id"`
	PhoneNumber string            `db:"phone_number"`
	AmountCents int64             `db:"amount_cents"`
	Status      TransactionStatus `db:"status"`
	Description *string           `db:"description"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
}

type WebhookSource string

const (
	WebhookSourceWhatsApp WebhookSource = "whatsapp"
	WebhookSourceAsaas    WebhookSource = "asaas"
)

type WebhookOutcome string

const (
	WebhookOutcomePending WebhookOutcome = "pending"
	WebhookOutcomeSuccess WebhookOutcome = "success"
	WebhookOutcomeError   WebhookOutcome = "error"
)

// WebhookLog is the audit row written for every delivered envelope,
// updated after processing with the final outcome.
type WebhookLog struct {
	ID           int64          `db:"id"`
	Source       WebhookSource  `db:"source"`
	Event        string         `db:"event"`
	Payload      string         `db:"payload"`
	Outcome      WebhookOutcome `db:"outcome"`
	ErrorMessage *string        `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
}
