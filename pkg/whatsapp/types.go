package whatsapp

// ClientConfig configures the Graph API client.
type ClientConfig struct {
	BaseURL       string
	GraphVersion  string
	AccessToken   string
	PhoneNumberID string
	TimeoutSec    int
}

// SendMessageRequest is the Graph API text message body.
type SendMessageRequest struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             MessageText `json:"text"`
}

type MessageText struct {
	Body string `json:"body"`
}

// SendMessageResponse is the subset of the Graph API response we use.
type SendMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}
