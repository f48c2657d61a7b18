package models

import "encoding/json"

// WhatsApp Cloud API envelope object tag. Anything else is rejected
// before the ack.
const WhatsAppBusinessAccountObject = "whatsapp_business_account"

// Change field carrying inbound messages and statuses.
const ChangeFieldMessages = "messages"

// WhatsAppWebhookPayload is the Cloud API delivery envelope.
type WhatsAppWebhookPayload struct {
	Object string          `json:"object"`
	Entry  []WhatsAppEntry `json:"entry"`
}

type WhatsAppEntry struct {
	ID      string           `json:"id"`
	Changes []WhatsAppChange `json:"changes"`
}

type WhatsAppChange struct {
	Field string              `json:"field"`
	Value WhatsAppChangeValue `json:"value"`
}

type WhatsAppChangeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WhatsAppMetadata  `json:"metadata"`
	Contacts         []WhatsAppContact `json:"contacts,omitempty"`
	Messages         []WhatsAppMessage `json:"messages,omitempty"`
	Statuses         []WhatsAppStatus  `json:"statuses,omitempty"`
}

type WhatsAppMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WhatsAppContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WhatsAppMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Button *struct {
		Text    string `json:"text"`
		Payload string `json:"payload"`
	} `json:"button,omitempty"`
	Image    *WhatsAppMedia `json:"image,omitempty"`
	Document *WhatsAppMedia `json:"document,omitempty"`
	Audio    *WhatsAppMedia `json:"audio,omitempty"`
	Video    *WhatsAppMedia `json:"video,omitempty"`
}

type WhatsAppMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type WhatsAppStatus struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
}

// Asaas payment webhook events we act on. Everything else is ack'd
// and logged as ignored.
const (
	AsaasEventPaymentReceived  = "PAYMENT_RECEIVED"
	AsaasEventPaymentConfirmed = "PAYMENT_CONFIRMED"
)

type AsaasWebhookPayload struct {
	Event   string        `json:"event"`
	Payment *AsaasPayment `json:"payment,omitempty"`
}

type AsaasPayment struct {
	ID          string         `json:"id"`
	Value       float64        `json:"value"`
	Status      string         `json:"status"`
	Description string         `json:"description,omitempty"`
	Customer    *AsaasCustomer `json:"customer,omitempty"`
}

// Customer arrives either as an expanded object or as a bare id string;
// UnmarshalJSON accepts both shapes.
type AsaasCustomer struct {
	ID                string `json:"id"`
	ExternalReference string `json:"externalReference"`
}

func (c *AsaasCustomer) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		c.ID = string(data[1 : len(data)-1])
		return nil
	}
	type alias AsaasCustomer
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = AsaasCustomer(a)
	return nil
}
