package whatsapp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://graph.facebook.com"

// Client talks to the WhatsApp Cloud (Graph) API.
type Client struct {
	httpClient    *resty.Client
	graphVersion  string
	phoneNumberID string
	configured    bool
}

// NewClient builds a Graph API client. Missing credentials do not fail
// construction: the service must keep ingesting webhooks even when it
// cannot send, so an unconfigured client reports itself as such and
// SendText becomes a no-op for the caller to log.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.TimeoutSec
	if timeout <= 0 {
		timeout = 30
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(time.Duration(timeout) * time.Second)

	return &Client{
		httpClient:    httpClient,
		graphVersion:  cfg.GraphVersion,
		phoneNumberID: cfg.PhoneNumberID,
		configured:    cfg.AccessToken != "" && cfg.PhoneNumberID != "",
	}
}

// Configured reports whether the client holds usable credentials.
func (c *Client) Configured() bool {
	return c.configured
}

// SendText delivers a plain text message and returns the provider
// message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	if !c.configured {
		return "", fmt.Errorf("whatsapp client is not configured")
	}

	url := fmt.Sprintf("/%s/%s/messages", c.graphVersion, c.phoneNumberID)

	var result SendMessageResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(SendMessageRequest{
			MessagingProduct: "whatsapp",
			To:               to,
			Type:             "text",
			Text:             MessageText{Body: body},
		}).
		SetResult(&result).
		Post(url)

	if err != nil {
		return "", fmt.Errorf("graph API send request failed: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("graph API send error: status %s, body: %s", resp.Status(), resp.String())
	}

	if len(result.Messages) == 0 {
		return "", fmt.Errorf("graph API send returned no message id")
	}

	return result.Messages[0].ID, nil
}
