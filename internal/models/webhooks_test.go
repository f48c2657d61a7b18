package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsaasCustomerUnmarshalObject(t *testing.T) {
	var payment AsaasPayment
	raw := `{
		"id": "pay_1",
		"value": 14.90,
		"customer": {"id": "cus_1", "externalReference": "wa_id_5511999887766"}
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payment))

	require.NotNil(t, payment.Customer)
	assert.Equal(t, "cus_1", payment.Customer.ID)
	assert.Equal(t, "wa_id_5511999887766", payment.Customer.ExternalReference)
}

func TestAsaasCustomerUnmarshalBareString(t *testing.T) {
	var payment AsaasPayment
	raw := `{"id": "pay_2", "value": 14.90, "customer": "cus_000005219613"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payment))

	require.NotNil(t, payment.Customer)
	assert.Equal(t, "cus_000005219613", payment.Customer.ID)
	assert.Empty(t, payment.Customer.ExternalReference)
}

func TestAsaasCustomerUnmarshalInvalid(t *testing.T) {
	var customer AsaasCustomer
	assert.Error(t, json.Unmarshal([]byte(`42`), &customer))
}

func TestWhatsAppWebhookPayloadDecode(t *testing.T) {
	raw := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "5511000000000", "phone_number_id": "123"},
					"messages": [{
						"id": "wamid.1",
						"from": "5511999887766",
						"timestamp": "1724900000",
						"type": "button",
						"button": {"text": "Quero assinar", "payload": "SIGNUP"}
					}],
					"statuses": [{
						"id": "wamid.2",
						"recipient_id": "5511999887766",
						"status": "delivered",
						"timestamp": "1724900100"
					}]
				}
			}]
		}]
	}`

	var payload WhatsAppWebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	require.Len(t, payload.Entry, 1)
	require.Len(t, payload.Entry[0].Changes, 1)
	change := payload.Entry[0].Changes[0]
	assert.Equal(t, "messages", change.Field)

	require.Len(t, change.Value.Messages, 1)
	msg := change.Value.Messages[0]
	assert.Equal(t, "button", msg.Type)
	require.NotNil(t, msg.Button)
	assert.Equal(t, "Quero assinar", msg.Button.Text)
	assert.Equal(t, "SIGNUP", msg.Button.Payload)

	require.Len(t, change.Value.Statuses, 1)
	assert.Equal(t, "delivered", change.Value.Statuses[0].Status)
}
